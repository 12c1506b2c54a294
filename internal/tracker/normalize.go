// Package tracker extracts one flight's timeline from the tracking page's
// embedded data blob.
package tracker

import (
	"regexp"
	"strings"
	"time"
)

const (
	// marketingPrefix is the two-letter code dashboard users type.
	marketingPrefix = "UA"

	// icaoPrefix is the three-letter code the tracking page keys flights by.
	icaoPrefix = "UAL"
)

// designatorPattern is what a normalized designator must look like: ICAO
// carrier code, 1-4 digit flight number, optional single-letter suffix.
var designatorPattern = regexp.MustCompile(`^[A-Z]{3}\d{1,4}[A-Z]?$`)

// NormalizeDesignator canonicalizes a caller-supplied flight designator.
//
// Whitespace is stripped and the input upper-cased. A UA prefix is rewritten
// to UAL unless the input already starts with UAL, and a bare 1-4 digit
// flight number gets UAL prepended. The result is not guaranteed valid; use
// ValidDesignator.
func NormalizeDesignator(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return ""
	}

	if isDigits(s) && len(s) <= 4 {
		return icaoPrefix + s
	}

	if strings.HasPrefix(s, marketingPrefix) && !strings.HasPrefix(s, icaoPrefix) {
		return icaoPrefix + s[len(marketingPrefix):]
	}

	return s
}

// ValidDesignator reports whether a normalized designator is well-formed.
func ValidDesignator(s string) bool {
	return designatorPattern.MatchString(s)
}

// ISOFromEpoch converts upstream epoch seconds to an ISO-8601 UTC string.
// Absent or zero epochs become the empty string, never "1970-01-01...".
func ISOFromEpoch(sec *int64) string {
	if sec == nil || *sec == 0 {
		return ""
	}
	return time.Unix(*sec, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
