// Package uid generates DICOM identifiers and normalizes the
// free-text patient fields that end up inside them.
package uid

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a globally unique DICOM UID under the 2.25 UUID arc
// (a random UUID rendered as a single decimal integer). The result
// stays within the 64-character UID limit and uses only [0-9.].
func New() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

// NewPatientID builds a time-derived patient identifier, prefix plus a
// second-resolution timestamp. Callers that need a stable ID supply
// their own instead.
func NewPatientID(prefix string) string {
	return prefix + time.Now().Format("20060102150405")
}

// ParseBirthDate normalizes a human-entered birth date to the DICOM
// DA form YYYYMMDD. It accepts DD/MM/YYYY, YYYY/MM/DD or 8 raw digits,
// with '.', '-' and spaces treated as '/' separators. Anything that
// does not parse, or fails the range checks (day 1-31, month 1-12,
// year 1800-2200), yields the empty string.
func ParseBirthDate(human string) string {
	s := strings.TrimSpace(human)
	if s == "" {
		return ""
	}
	r := strings.NewReplacer(".", "/", "-", "/", " ", "")
	s = r.Replace(s)
	if len(s) == 8 && isDigits(s) {
		// Raw digits are either YYYYMMDD or DDMMYYYY; a plausible
		// leading year disambiguates.
		if y, _ := strconv.Atoi(s[:4]); y >= 1800 && y <= 2200 {
			return canonical(s[:4], s[4:6], s[6:])
		}
		return canonical(s[4:], s[2:4], s[:2])
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ""
	}
	if len(parts[0]) == 4 && isDigits(parts[0]) {
		return canonical(parts[0], parts[1], parts[2])
	}
	return canonical(parts[2], parts[1], parts[0])
}

// canonical validates year/month/day strings and returns YYYYMMDD, or
// "" when the values are out of range or not a real calendar date
// (31/02 passes the coarse ranges but not this check).
func canonical(ys, ms, ds string) string {
	y, err := strconv.Atoi(ys)
	if err != nil {
		return ""
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return ""
	}
	d, err := strconv.Atoi(ds)
	if err != nil {
		return ""
	}
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1800 || y > 2200 {
		return ""
	}
	norm := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if norm.Year() != y || norm.Month() != time.Month(m) || norm.Day() != d {
		return ""
	}
	pad := func(n, width int) string {
		s := strconv.Itoa(n)
		for len(s) < width {
			s = "0" + s
		}
		return s
	}
	return pad(y, 4) + pad(m, 2) + pad(d, 2)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ToPersonName converts "Family Given ..." free text into the DICOM PN
// form "Family^Given". Input already containing the component
// separator passes through untouched; empty input gets the anonymous
// placeholder; a single token becomes the family name with an empty
// given component.
func ToPersonName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "Anon^Anon"
	}
	if strings.Contains(s, "^") {
		return s
	}
	parts := strings.Fields(s)
	if len(parts) == 1 {
		return parts[0] + "^"
	}
	return parts[0] + "^" + strings.Join(parts[1:], " ")
}
