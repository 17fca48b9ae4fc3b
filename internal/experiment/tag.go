package experiment

import "github.com/google/uuid"

// NewSessionTag returns a fresh random tag that joins one run's analytics
// with external measurements. It is written to customData5.
func NewSessionTag() string {
	return uuid.NewString()
}
