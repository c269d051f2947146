package dicomgen

import (
	"bytes"
	"image"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func testContexts() (PatientContext, StudyContext, SeriesContext) {
	patient := PatientContext{Name: "Rossi^Mario", ID: "PID0001", BirthDate: "19800305"}
	study := NewStudyContext("2.25.111", "Documenti", "Bianchi^Anna", "ACC42")
	series := SeriesContext{SeriesUID: "2.25.222", Number: 1, Description: "PDF Upload"}
	return patient, study, series
}

func stringValue(t *testing.T, ds dicom.Dataset, tg tag.Tag) string {
	t.Helper()
	el, err := ds.FindElementByTag(tg)
	if err != nil {
		t.Fatalf("element %v not found: %v", tg, err)
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		t.Fatalf("element %v is not a string value: %v", tg, el.Value)
	}
	return vals[0]
}

func TestEncodeEncapsulatedDocumentRoundTrip(t *testing.T) {
	patient, study, series := testContexts()
	pdf := []byte("%PDF-1.4\nfake document body\n%%EOF\n")

	inst := BuildEncapsulatedDocument(pdf, "/tmp/referto finale.pdf", "2.25.333", patient, study, series)
	if inst.DocumentTitle != "referto finale" {
		t.Fatalf("unexpected document title %q", inst.DocumentTitle)
	}
	if inst.InstanceNumber != 1 {
		t.Fatalf("document instance number must be 1, got %d", inst.InstanceNumber)
	}

	encoded, err := Encode(inst)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ds, err := dicom.Parse(bytes.NewReader(encoded), int64(len(encoded)), nil)
	if err != nil {
		t.Fatalf("parse encoded instance: %v", err)
	}

	el, err := ds.FindElementByTag(tag.EncapsulatedDocument)
	if err != nil {
		t.Fatalf("EncapsulatedDocument not found: %v", err)
	}
	got, ok := el.Value.GetValue().([]byte)
	if !ok {
		t.Fatalf("EncapsulatedDocument is not a byte value: %v", el.Value)
	}
	// Odd-length payloads are padded to even length on the wire.
	if len(got) < len(pdf) || !bytes.Equal(got[:len(pdf)], pdf) {
		t.Fatalf("payload did not survive the round trip: %d bytes vs %d", len(got), len(pdf))
	}

	if v := stringValue(t, ds, tag.SOPClassUID); v != EncapsulatedPDFStorage {
		t.Errorf("SOPClassUID = %q", v)
	}
	if v := stringValue(t, ds, tag.MediaStorageSOPClassUID); v != EncapsulatedPDFStorage {
		t.Errorf("file meta SOP class %q does not mirror the data set", v)
	}
	if v := stringValue(t, ds, tag.MediaStorageSOPInstanceUID); v != "2.25.333" {
		t.Errorf("file meta SOP instance %q does not mirror the data set", v)
	}
	if v := stringValue(t, ds, tag.TransferSyntaxUID); v != explicitVRLittleEndian {
		t.Errorf("TransferSyntaxUID = %q", v)
	}
	if v := stringValue(t, ds, tag.PatientName); v != "Rossi^Mario" {
		t.Errorf("PatientName = %q", v)
	}
	if v := stringValue(t, ds, tag.PatientBirthDate); v != "19800305" {
		t.Errorf("PatientBirthDate = %q", v)
	}
	if v := stringValue(t, ds, tag.MIMETypeOfEncapsulatedDocument); v != "application/pdf" {
		t.Errorf("MIME type = %q", v)
	}
	if v := stringValue(t, ds, tag.Modality); v != "DOC" {
		t.Errorf("Modality = %q", v)
	}
	if v := stringValue(t, ds, tag.StudyInstanceUID); v != "2.25.111" {
		t.Errorf("StudyInstanceUID = %q", v)
	}
}

// assertAscendingTagOrder parses an encoded instance and checks that
// the data set elements appear in strictly ascending tag order, as
// PS3.5 requires. The file meta group is ordered by the writer itself.
func assertAscendingTagOrder(t *testing.T, encoded []byte) {
	t.Helper()
	ds, err := dicom.Parse(bytes.NewReader(encoded), int64(len(encoded)), nil)
	if err != nil {
		t.Fatalf("parse encoded instance: %v", err)
	}
	prev := uint32(0)
	for _, el := range ds.Elements {
		if el.Tag.Group == 0x0002 {
			continue
		}
		cur := uint32(el.Tag.Group)<<16 | uint32(el.Tag.Element)
		if cur <= prev {
			t.Errorf("data set element %v appears after (%04x,%04x)",
				el.Tag, prev>>16, prev&0xffff)
		}
		prev = cur
	}
}

func TestEncodeDataSetTagOrder(t *testing.T) {
	patient, study, series := testContexts()

	doc := BuildEncapsulatedDocument([]byte("%PDF-1.4\n%%EOF\n"), "/tmp/r.pdf", "2.25.555", patient, study, series)
	encoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode document: %v", err)
	}
	assertAscendingTagOrder(t, encoded)

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	sc := BuildSecondaryCapture(img, 2, "2.25.556", patient, study, series)
	encoded, err = Encode(sc)
	if err != nil {
		t.Fatalf("Encode capture: %v", err)
	}
	assertAscendingTagOrder(t, encoded)
}

func TestEncodeSecondaryCapture(t *testing.T) {
	patient, study, series := testContexts()

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}

	inst := BuildSecondaryCapture(img, 2, "2.25.444", patient, study, series)
	if inst.Rows != 2 || inst.Cols != 4 {
		t.Fatalf("pixel geometry %dx%d", inst.Cols, inst.Rows)
	}
	if len(inst.Pixels) != 4*2*3 {
		t.Fatalf("expected %d RGB bytes, got %d", 4*2*3, len(inst.Pixels))
	}
	// Alpha stripped: first pixel is RGBA 0,1,2,3 in the source.
	if inst.Pixels[0] != 0 || inst.Pixels[1] != 1 || inst.Pixels[2] != 2 || inst.Pixels[3] != 4 {
		t.Fatalf("alpha channel not stripped: % d", inst.Pixels[:6])
	}

	encoded, err := Encode(inst)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ds, err := dicom.Parse(bytes.NewReader(encoded), int64(len(encoded)), nil)
	if err != nil {
		t.Fatalf("parse encoded instance: %v", err)
	}

	if v := stringValue(t, ds, tag.SOPClassUID); v != SecondaryCaptureStorage {
		t.Errorf("SOPClassUID = %q", v)
	}
	if v := stringValue(t, ds, tag.Modality); v != "SC" {
		t.Errorf("Modality = %q", v)
	}
	if v := stringValue(t, ds, tag.ConversionType); v != "WSD" {
		t.Errorf("ConversionType = %q", v)
	}
	if v := stringValue(t, ds, tag.PhotometricInterpretation); v != "RGB" {
		t.Errorf("PhotometricInterpretation = %q", v)
	}
	if v := stringValue(t, ds, tag.InstanceNumber); v != "2" {
		t.Errorf("InstanceNumber = %q", v)
	}

	rows, err := ds.FindElementByTag(tag.Rows)
	if err != nil {
		t.Fatalf("Rows not found: %v", err)
	}
	if got := rows.Value.GetValue().([]int); got[0] != 2 {
		t.Errorf("Rows = %d", got[0])
	}
	cols, err := ds.FindElementByTag(tag.Columns)
	if err != nil {
		t.Fatalf("Columns not found: %v", err)
	}
	if got := cols.Value.GetValue().([]int); got[0] != 4 {
		t.Errorf("Columns = %d", got[0])
	}
}
