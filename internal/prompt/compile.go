// Package prompt renders the final prompt text sent to the multimodal
// endpoint from the configured template, the taxonomy lists, and past
// correction examples.
package prompt

import "strings"

// Placeholders recognized in the prompt template.
const (
	PlaceholderDocumentTypes      = "{{DOCUMENT_TYPES_LIST}}"
	PlaceholderCategories         = "{{CATEGORIES_LIST}}"
	PlaceholderCorrectionExamples = "{{CORRECTION_EXAMPLES}}"
	PlaceholderFileCreationDate   = "{{FILE_CREATION_DATE}}"
	PlaceholderDocumentText       = "{{DOCUMENT_TEXT}}"
)

// Compile performs the four literal placeholder substitutions. The
// substitutions are independent and order-insensitive; a placeholder absent
// from the template is simply not replaced. {{DOCUMENT_TEXT}} is blanked
// unconditionally: the model reads the image directly and needs no separate
// OCR text channel.
func Compile(template string, documentTypes, categories []string, examplesText, fallbackDate string) string {
	out := template
	out = strings.ReplaceAll(out, PlaceholderDocumentTypes, strings.Join(documentTypes, "\n"))
	out = strings.ReplaceAll(out, PlaceholderCategories, strings.Join(categories, "\n"))
	out = strings.ReplaceAll(out, PlaceholderCorrectionExamples, examplesText)
	out = strings.ReplaceAll(out, PlaceholderFileCreationDate, fallbackDate)
	out = strings.ReplaceAll(out, PlaceholderDocumentText, "")
	return out
}
