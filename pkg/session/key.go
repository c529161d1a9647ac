package session

import "github.com/segmentio/ksuid"

// NewAPIKey returns a random base62 secret.
func NewAPIKey() string {
	return ksuid.New().String()
}
