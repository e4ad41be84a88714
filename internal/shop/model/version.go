package model

// Fingerprint is the build descriptor served by GET /api/version.
type Fingerprint struct {
	Version   string `json:"version"`
	AppHash   string `json:"appHash"`
	BuildTime string `json:"buildTime"`
	Timestamp string `json:"timestamp,omitempty"`
}
