package llm

import "context"

// ExtractedData is the canonical extraction record for one document.
// All fields are optional; absent fields stay empty. Equality is structural
// (plain ==), which the reviewer boundary uses to detect human edits.
type ExtractedData struct {
	Date            string `json:"date,omitempty"` // YYYY-MM-DD
	Contact         string `json:"contact,omitempty"`
	Description     string `json:"description,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	DocumentSubtype string `json:"document_subtype,omitempty"`
	Category        string `json:"category,omitempty"`
	Subcategory     string `json:"subcategory,omitempty"`
}

// IsZero reports whether no field of the record is set.
func (d ExtractedData) IsZero() bool {
	return d == ExtractedData{}
}

// ImagePayload is a compressed, upload-ready rendition of the normalized page.
type ImagePayload struct {
	MIMEType string
	Data     string // base64
}

// Extractor performs one multimodal generation call and returns the raw
// response body for decoding.
type Extractor interface {
	GenerateContent(ctx context.Context, prompt string, payload ImagePayload) ([]byte, error)
}
