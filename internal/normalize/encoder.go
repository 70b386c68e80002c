package normalize

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/llm"
)

// DefaultJPEGQuality matches a 0.8 compression quality factor.
const DefaultJPEGQuality = 80

// EncodeJPEG compresses the normalized page image into a base64 JPEG upload
// payload. Output is deterministic for a given image and compression backend;
// exact bytes are not portable across image libraries, but "non-empty, valid
// JPEG" is the contract.
func EncodeJPEG(img image.Image, quality int) (llm.ImagePayload, error) {
	if img == nil {
		return llm.ImagePayload{}, common.NewAppError(common.CodeEncodingFailed,
			"no image to encode", common.ErrEncodingFailed)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return llm.ImagePayload{}, common.NewAppError(common.CodeEncodingFailed,
			"jpeg compression failed", err)
	}
	if buf.Len() == 0 {
		return llm.ImagePayload{}, common.NewAppError(common.CodeEncodingFailed,
			"jpeg compression yielded empty output", common.ErrEncodingFailed)
	}

	return llm.ImagePayload{
		MIMEType: "image/jpeg",
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
