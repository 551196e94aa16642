package domain

import "strings"

// Status is the play status of a game inside a watchlist. Values are stored
// with the catalog's original labels.
type Status string

const (
	StatusNotPlayed Status = "AINDA NAO JOGADO"
	StatusPlayed    Status = "JOGADO"
	StatusDropped   Status = "DROPADO"
)

// DefaultStatus is assigned to new memberships.
const DefaultStatus = StatusNotPlayed

var statusCodes = map[Status]string{
	StatusNotPlayed: "NOT_PLAYED",
	StatusPlayed:    "PLAYED",
	StatusDropped:   "DROPPED",
}

// Valid reports whether s is one of the closed set of statuses.
func (s Status) Valid() bool {
	_, ok := statusCodes[s]
	return ok
}

// Code returns the API code for s (PLAYED, NOT_PLAYED, DROPPED), or "" when
// s is not a valid status.
func (s Status) Code() string { return statusCodes[s] }

// ParseStatus accepts either the API code or the stored label, ignoring case,
// surrounding spaces, and the separator ('_', '-' or ' ').
func ParseStatus(v string) (Status, bool) {
	key := strings.ToUpper(strings.TrimSpace(v))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	switch key {
	case "NOT PLAYED", string(StatusNotPlayed):
		return StatusNotPlayed, true
	case "PLAYED", string(StatusPlayed):
		return StatusPlayed, true
	case "DROPPED", string(StatusDropped):
		return StatusDropped, true
	}
	return "", false
}
