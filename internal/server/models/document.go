package models

import "time"

// Chunk is one slice of a scanned license document arriving on the
// image-stream queue. Chunks for an owner may arrive out of order or
// duplicated; exactly one carries Final=true and marks the highest sequence
// number the producer emitted.
type Chunk struct {
	OwnerID        string `json:"userId"`
	SequenceNumber int    `json:"sequenceNumber"`
	Payload        []byte `json:"content"`
	Final          bool   `json:"endOfFile"`
	FileName       string `json:"fileName"`
}

// Document is a fully assembled license image ready for object storage.
type Document struct {
	OwnerID  string
	FileName string
	Bytes    []byte
}

// PresignedURL is the time-bounded access descriptor for a rider's stored
// document. At most one row exists per rider; ObjectName is globally unique.
// The descriptor is valid while Expiry is in the future.
type PresignedURL struct {
	ID         string
	ObjectName string
	URL        string
	Expiry     time.Time
	RiderID    string
}

// Valid reports whether the descriptor can still be served to callers.
func (p *PresignedURL) Valid(now time.Time) bool {
	return p.Expiry.After(now)
}
