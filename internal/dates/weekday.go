package dates

import "time"

// Weekday codes as they appear in the institution's tables, indexed by
// ISO weekday (1=Monday .. 7=Sunday). "S" is ambiguous in the source
// material and is handled in resolve.go.
var weekdayCodes = [...]string{"M", "T", "W", "Th", "F", "S", "Su"}

var weekdayNames = [...]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// RFC 5545 two-letter day codes, indexed by ISO weekday - 1.
var rfcCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// CodeToISO maps a source weekday code ("M", "Th", ...) to its ISO
// weekday number.
func CodeToISO(code string) (int, bool) {
	for i, c := range weekdayCodes {
		if c == code {
			return i + 1, true
		}
	}
	return 0, false
}

// ISOWeekday returns the ISO weekday number of t (1=Monday .. 7=Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// RFCCode returns the RFC 5545 day code for an ISO weekday number.
func RFCCode(iso int) string {
	return rfcCodes[iso-1]
}

// ISOFromRFC maps an RFC 5545 day code back to its ISO weekday number.
func ISOFromRFC(code string) (int, bool) {
	for i, c := range rfcCodes {
		if c == code {
			return i + 1, true
		}
	}
	return 0, false
}

// ValidRFCCode reports whether code is one of the 7 canonical day codes.
func ValidRFCCode(code string) bool {
	_, ok := ISOFromRFC(code)
	return ok
}

// DateOf truncates t to its calendar date, normalized to UTC midnight.
// All date-keyed maps in this module use this normalization.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
