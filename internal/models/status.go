package models

import "fmt"

// Status is the canonical incident status used inside ChangeRecords. The
// procedural-relational schema stores lowercase codes instead; the mapping
// between the two lives here and nowhere else, and is total in both
// directions. An unknown value is an error, never a silent default.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusClosed     Status = "Closed"
)

// CanonicalStatuses lists every valid canonical label
func CanonicalStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusClosed}
}

var statusToCode = map[Status]string{
	StatusOpen:       "open",
	StatusInProgress: "in_progress",
	StatusClosed:     "closed",
}

var codeToStatus = map[string]Status{
	"open":        StatusOpen,
	"in_progress": StatusInProgress,
	"closed":      StatusClosed,
}

// ToStorageCode translates a canonical status label to the storage code set
func ToStorageCode(s Status) (string, error) {
	code, ok := statusToCode[s]
	if !ok {
		return "", fmt.Errorf("status %q has no storage code", s)
	}
	return code, nil
}

// FromStorageCode translates a storage code back to its canonical label
func FromStorageCode(code string) (Status, error) {
	s, ok := codeToStatus[code]
	if !ok {
		return "", fmt.Errorf("storage code %q has no canonical status", code)
	}
	return s, nil
}

// Valid reports whether s is one of the canonical labels
func (s Status) Valid() bool {
	_, ok := statusToCode[s]
	return ok
}
