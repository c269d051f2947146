package stow

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BuildMultipart frames the encoded instances into one
// multipart/related body per the STOW-RS convention and returns the
// body together with the Content-Type header value carrying the
// boundary. Part order follows the input order exactly; the
// Content-Location names are cosmetic but stable and unique within
// the request.
func BuildMultipart(parts [][]byte) ([]byte, string) {
	boundary := "Boundary" + strings.ReplaceAll(uuid.New().String(), "-", "")

	var buf bytes.Buffer
	for i, part := range parts {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: application/dicom\r\n")
		fmt.Fprintf(&buf, "Content-Location: instance-%d\r\n", i+1)
		buf.WriteString("\r\n")
		buf.Write(part)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	contentType := fmt.Sprintf("multipart/related; type=%q; boundary=%s", "application/dicom", boundary)
	return buf.Bytes(), contentType
}
