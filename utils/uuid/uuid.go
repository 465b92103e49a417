// Package uuid generates the random identifiers used for
// in-process addresses, request IDs and temporary store paths.
package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a new random UUID string. It panics
// if the system's random source fails.
func MustUUID() string {
	return google_uuid.Must(google_uuid.NewRandom()).String()
}
