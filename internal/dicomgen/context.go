// Package dicomgen builds in-memory DICOM instances from PDF documents
// and rendered page bitmaps, and serializes them into the DICOM file
// format. Exactly two instance kinds exist: the encapsulated PDF
// document and the secondary-capture page image.
package dicomgen

import "time"

// PatientContext carries the patient-level identity shared by every
// instance of a batch. It is immutable once a send starts.
type PatientContext struct {
	// Name in DICOM PN form, family^given.
	Name string
	// ID is the patient identifier, caller-supplied or generated.
	ID string
	// BirthDate in YYYYMMDD form, or empty when unknown.
	BirthDate string
}

// StudyContext groups every instance of one send operation under a
// single study, together with the batch-wide descriptive defaults.
type StudyContext struct {
	StudyUID           string
	Description        string
	ReferringPhysician string
	AccessionNumber    string
	// Date and Time stamp the study in DICOM DA/TM form.
	Date string
	Time string
}

// NewStudyContext stamps a fresh study with the given UID and the
// current wall clock.
func NewStudyContext(studyUID, description, referringPhysician, accessionNumber string) StudyContext {
	now := time.Now()
	return StudyContext{
		StudyUID:           studyUID,
		Description:        description,
		ReferringPhysician: referringPhysician,
		AccessionNumber:    accessionNumber,
		Date:               now.Format("20060102"),
		Time:               now.Format("150405"),
	}
}

// SeriesContext identifies one series within the study. Number is a
// positive series number, constant 1 under the shared-series policy
// and incrementing per source PDF otherwise.
type SeriesContext struct {
	SeriesUID   string
	Number      int
	Description string
}
