// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Version 7 identifiers embed a millisecond
// timestamp in their leading bits, so they sort by creation time; budget
// lookups rely on this for a stable "lowest id wins" tie-break.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates s and returns it in canonical lower-case form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
