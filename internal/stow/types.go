package stow

import "encoding/json"

// Result is the outcome of one Store call. Upload failures are data,
// not Go errors: OK is false and Message carries the diagnostic text.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Sent is the number of instances in the request.
	Sent int `json:"sent"`
	// Succeeded/Failed are the acknowledgment tallies, when the
	// service returned a parseable DICOM-JSON body.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// storeResponse mirrors the Success/Failed arrays of a STOW-RS
// acknowledgment as Orthanc emits them. Elements are kept raw: only
// the counts and, on failure, the verbatim details matter here.
type storeResponse struct {
	Success []json.RawMessage `json:"Success"`
	Failed  []json.RawMessage `json:"Failed"`
}
