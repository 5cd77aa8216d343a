package opensky

import (
	"regexp"
	"strings"
)

// Validation statuses returned by ValidateCallsigns.
const (
	StatusValid  = "valid"
	StatusNoData = "no-data"
)

var (
	callsignPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)
	icao24Pattern   = regexp.MustCompile(`^[a-fA-F0-9]{6}$`)
)

// NormalizeCallsign trims and uppercases a callsign for matching.
func NormalizeCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// IsValidCallsign reports whether the input, trimmed and uppercased, is a
// plausible callsign: 2 to 8 alphanumeric characters.
func IsValidCallsign(input string) bool {
	return callsignPattern.MatchString(NormalizeCallsign(input))
}

// IsValidIcao24 reports whether the input is a 6-character hex ICAO24
// address. Case-insensitive; matching elsewhere lowercases.
func IsValidIcao24(input string) bool {
	return icao24Pattern.MatchString(input)
}

// CallsignStatus is the per-identifier outcome of a batch validity check.
type CallsignStatus struct {
	Callsign string `json:"callsign"`
	Status   string `json:"status"`
}
