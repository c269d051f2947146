package dicomgen

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"

	implementationClassUID    = "1.2.826.0.1.3680043.9.9999.2"
	implementationVersionName = "PDF2PACS"
)

// elementList accumulates data elements, keeping only the first
// construction error so call sites stay flat.
type elementList struct {
	elems []*dicom.Element
	err   error
}

func (l *elementList) add(t tag.Tag, value interface{}) {
	if l.err != nil {
		return
	}
	e, err := dicom.NewElement(t, value)
	if err != nil {
		l.err = fmt.Errorf("element %s: %w", t, err)
		return
	}
	l.elems = append(l.elems, e)
}

// Encode serializes one instance into the DICOM file format: 128-byte
// preamble, file meta group with the Explicit VR Little Endian
// transfer syntax and the instance's own SOP identifiers mirrored in,
// then the data set. Encoding problems are fatal for the instance and
// surface as an error.
func Encode(inst Instance) ([]byte, error) {
	l := &elementList{}

	// File meta group. dicom.Write derives the remaining meta
	// elements and the group length from these.
	l.add(tag.MediaStorageSOPClassUID, []string{inst.SOPClassUID})
	l.add(tag.MediaStorageSOPInstanceUID, []string{inst.SOPInstanceUID})
	l.add(tag.TransferSyntaxUID, []string{explicitVRLittleEndian})
	l.add(tag.ImplementationClassUID, []string{implementationClassUID})
	l.add(tag.ImplementationVersionName, []string{implementationVersionName})

	l.add(tag.SpecificCharacterSet, []string{"ISO_IR 100"})
	l.add(tag.SOPClassUID, []string{inst.SOPClassUID})
	l.add(tag.SOPInstanceUID, []string{inst.SOPInstanceUID})
	l.add(tag.Modality, []string{inst.Modality})

	l.add(tag.PatientName, []string{inst.Patient.Name})
	l.add(tag.PatientID, []string{inst.Patient.ID})
	if inst.Patient.BirthDate != "" {
		l.add(tag.PatientBirthDate, []string{inst.Patient.BirthDate})
	}

	l.add(tag.StudyInstanceUID, []string{inst.Study.StudyUID})
	l.add(tag.StudyDate, []string{inst.Study.Date})
	l.add(tag.StudyTime, []string{inst.Study.Time})
	l.add(tag.StudyDescription, []string{inst.Study.Description})
	l.add(tag.ReferringPhysicianName, []string{inst.Study.ReferringPhysician})
	l.add(tag.AccessionNumber, []string{inst.Study.AccessionNumber})

	l.add(tag.SeriesInstanceUID, []string{inst.Series.SeriesUID})
	l.add(tag.SeriesNumber, []string{strconv.Itoa(inst.Series.Number)})
	l.add(tag.SeriesDescription, []string{inst.Series.Description})

	l.add(tag.InstanceNumber, []string{strconv.Itoa(inst.InstanceNumber)})
	l.add(tag.InstanceCreationDate, []string{inst.CreationDate})
	l.add(tag.InstanceCreationTime, []string{inst.CreationTime})
	l.add(tag.BurnedInAnnotation, []string{"NO"})

	switch inst.Kind {
	case KindEncapsulatedPDF:
		l.add(tag.ContentDate, []string{inst.CreationDate})
		l.add(tag.ContentTime, []string{inst.CreationTime})
		l.add(tag.DocumentTitle, []string{inst.DocumentTitle})
		l.add(tag.MIMETypeOfEncapsulatedDocument, []string{inst.MIMEType})
		l.add(tag.EncapsulatedDocument, inst.Document)
	case KindSecondaryCapture:
		l.add(tag.ImageType, []string{"DERIVED", "SECONDARY"})
		l.add(tag.ConversionType, []string{"WSD"})
		l.add(tag.Rows, []int{inst.Rows})
		l.add(tag.Columns, []int{inst.Cols})
		l.add(tag.SamplesPerPixel, []int{3})
		l.add(tag.PhotometricInterpretation, []string{"RGB"})
		l.add(tag.PlanarConfiguration, []int{0})
		l.add(tag.BitsAllocated, []int{8})
		l.add(tag.BitsStored, []int{8})
		l.add(tag.HighBit, []int{7})
		l.add(tag.PixelRepresentation, []int{0})
		l.add(tag.PixelData, pixelDataInfo(inst))
	default:
		return nil, fmt.Errorf("unknown instance kind %d", inst.Kind)
	}

	if l.err != nil {
		return nil, fmt.Errorf("build data set for %s: %w", inst.SOPInstanceUID, l.err)
	}

	// PS3.5 requires data elements in ascending tag order and
	// dicom.Write emits the slice as given.
	sort.Slice(l.elems, func(i, j int) bool {
		a, b := l.elems[i].Tag, l.elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: l.elems}); err != nil {
		return nil, fmt.Errorf("encode instance %s: %w", inst.SOPInstanceUID, err)
	}
	return buf.Bytes(), nil
}

// pixelDataInfo wraps the interleaved RGB payload in a single native,
// unencapsulated frame.
func pixelDataInfo(inst Instance) dicom.PixelDataInfo {
	nf := frame.NewNativeFrame[uint8](8, inst.Rows, inst.Cols, inst.Rows*inst.Cols, 3)
	copy(nf.RawData, inst.Pixels)
	return dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{Encapsulated: false, NativeData: nf},
		},
	}
}
