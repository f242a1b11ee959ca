package core

import "strings"

// Severity indicates the importance of a validation issue or telemetry frame.
type Severity string

// Severity levels, ordered from least to most important.
const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRanks orders severities for comparison. Success shares info's
// rank: it is a presentation variant, not a more important level.
var severityRanks = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeveritySuccess:  1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Rank returns the numeric rank of the severity and whether it is a
// known level. Unranked severities are still counted by aggregates but
// never become a running maximum.
func (s Severity) Rank() (int, bool) {
	r, ok := severityRanks[Severity(strings.ToLower(string(s)))]
	return r, ok
}

// AtLeast reports whether s ranks at or above min. An unranked severity
// never satisfies a ranked minimum.
func (s Severity) AtLeast(min Severity) bool {
	sr, ok := s.Rank()
	if !ok {
		return false
	}
	mr, ok := min.Rank()
	if !ok {
		return false
	}
	return sr >= mr
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityInfo and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRanks[sev]; ok {
		return sev, true
	}
	return SeverityInfo, false
}

// MaxSeverity returns the higher-ranked of a and b. If either side is
// unranked the other wins; two unranked severities yield a.
func MaxSeverity(a, b Severity) Severity {
	ar, aok := a.Rank()
	br, bok := b.Rank()
	switch {
	case !aok && !bok:
		return a
	case !aok:
		return b
	case !bok:
		return a
	case br > ar:
		return b
	default:
		return a
	}
}
