// Package models holds the types shared between the API and storage
// layers.
package models

import "time"

// SendRecord is the journal entry for one completed send operation.
// It records the outcome only; the DICOM entities themselves are never
// persisted.
type SendRecord struct {
	StudyUID  string    `json:"studyUid"`
	PatientID string    `json:"patientId"`
	Instances int       `json:"instances"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
