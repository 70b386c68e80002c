package llm

import (
	"encoding/json"
	"strings"

	"github.com/docsift/docsift/internal/common"
)

// envelope mirrors the service's standard response structure: a list of
// candidates, each with content made of parts, each part carrying inline text.
type envelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// DecodeEnvelope unwraps the raw response body and returns the first
// candidate's first part's text.
func DecodeEnvelope(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", common.NewAppError(common.CodeEnvelopeDecodeError, "response is not a valid envelope", err)
	}
	if len(env.Candidates) == 0 {
		return "", common.NewAppError(common.CodeEnvelopeDecodeError, "envelope has no candidates", common.ErrEnvelopeDecode)
	}
	parts := env.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", common.NewAppError(common.CodeEnvelopeDecodeError, "first candidate has no parts", common.ErrEnvelopeDecode)
	}
	return parts[0].Text, nil
}

// StripFences removes Markdown code-block delimiters the model tends to wrap
// its JSON in (```json ... ``` or plain ``` ... ```).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// DecodePayload cleans the inner text and decodes it into the canonical
// extraction record. Unknown fields are ignored; missing fields stay empty.
// There is no partial-success mode.
func DecodePayload(text string) (ExtractedData, error) {
	cleaned := StripFences(text)
	raw := []byte(cleaned)

	if err := ValidateJSONAgainstSchema(BuildExtractionJSONSchema(), raw); err != nil {
		return ExtractedData{}, common.NewAppError(common.CodePayloadDecodeError, "payload is not a valid extraction record", err)
	}
	var out ExtractedData
	if err := json.Unmarshal(raw, &out); err != nil {
		return ExtractedData{}, common.NewAppError(common.CodePayloadDecodeError, "unmarshal extraction record", err)
	}
	return out, nil
}

// DecodeResponse performs the full two-layer decode: envelope, then payload.
func DecodeResponse(raw []byte) (ExtractedData, error) {
	text, err := DecodeEnvelope(raw)
	if err != nil {
		return ExtractedData{}, err
	}
	return DecodePayload(text)
}
