package dicomgen

import (
	"image"
	"path/filepath"
	"strings"
	"time"
)

// SOP class UIDs for the two supported instance kinds.
const (
	EncapsulatedPDFStorage  = "1.2.840.10008.5.1.4.1.1.104.1"
	SecondaryCaptureStorage = "1.2.840.10008.5.1.4.1.1.7"
)

// Kind discriminates the two instance variants.
type Kind int

const (
	KindEncapsulatedPDF Kind = iota
	KindSecondaryCapture
)

// Instance is one fully-populated DICOM instance awaiting encoding.
// Document-only fields are set for KindEncapsulatedPDF, pixel fields
// for KindSecondaryCapture; the shared identity fields are always set.
type Instance struct {
	Kind Kind

	SOPClassUID    string
	SOPInstanceUID string
	Modality       string
	InstanceNumber int

	Patient PatientContext
	Study   StudyContext
	Series  SeriesContext

	// CreationDate/CreationTime stamp the moment of construction.
	CreationDate string
	CreationTime string

	// Document variant.
	Document      []byte
	DocumentTitle string
	MIMEType      string

	// Image variant: interleaved 8-bit RGB.
	Pixels []byte
	Rows   int
	Cols   int
}

// BuildEncapsulatedDocument produces the encapsulated-PDF instance for
// one source document. The PDF bytes are embedded verbatim; the title
// is the source file's base name with the extension stripped. The
// document instance is always number 1 within its series.
func BuildEncapsulatedDocument(pdf []byte, sourcePath string, sopUID string, patient PatientContext, study StudyContext, series SeriesContext) Instance {
	now := time.Now()
	base := filepath.Base(sourcePath)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	return Instance{
		Kind:           KindEncapsulatedPDF,
		SOPClassUID:    EncapsulatedPDFStorage,
		SOPInstanceUID: sopUID,
		Modality:       "DOC",
		InstanceNumber: 1,
		Patient:        patient,
		Study:          study,
		Series:         series,
		CreationDate:   now.Format("20060102"),
		CreationTime:   now.Format("150405"),
		Document:       pdf,
		DocumentTitle:  title,
		MIMEType:       "application/pdf",
	}
}

// BuildSecondaryCapture produces a secondary-capture instance from one
// rendered page bitmap. The alpha channel is dropped; the payload is
// interleaved 8-bit RGB matching the pixel geometry fields.
func BuildSecondaryCapture(img *image.RGBA, instanceNumber int, sopUID string, patient PatientContext, study StudyContext, series SeriesContext) Instance {
	now := time.Now()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := img.PixOffset(x, y)
			pixels = append(pixels, img.Pix[o], img.Pix[o+1], img.Pix[o+2])
		}
	}
	return Instance{
		Kind:           KindSecondaryCapture,
		SOPClassUID:    SecondaryCaptureStorage,
		SOPInstanceUID: sopUID,
		Modality:       "SC",
		InstanceNumber: instanceNumber,
		Patient:        patient,
		Study:          study,
		Series:         series,
		CreationDate:   now.Format("20060102"),
		CreationTime:   now.Format("150405"),
		Pixels:         pixels,
		Rows:           h,
		Cols:           w,
	}
}
