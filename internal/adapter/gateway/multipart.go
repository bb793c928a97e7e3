package gateway

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path"
	"strings"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
)

// imageField is the multipart field name the classifier reads.
const imageField = "image"

var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// encodeImage builds the multipart body for /classify. The backend rejects
// uploads whose filename extension is not png, jpg, or jpeg.
func encodeImage(img domain.Image) ([]byte, string, error) {
	ext := strings.ToLower(path.Ext(img.Name))
	defaultType, ok := allowedExtensions[ext]
	if !ok {
		return nil, "", fmt.Errorf("unsupported image file %q", img.Name)
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = defaultType
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, imageField, path.Base(img.Name)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
