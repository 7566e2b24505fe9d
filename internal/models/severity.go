package models

// Severity is the ordinal urgency level of a rule or alert.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// severityRank orders severities for min_severity filtering and escalation.
// Higher number = more severe.
var severityRank = map[Severity]int{
	SeverityInfo:      0,
	SeverityWarning:   1,
	SeverityCritical:  2,
	SeverityEmergency: 3,
}

// severityNext maps each severity to the next higher level for escalation.
// Emergency has no next level.
var severityNext = map[Severity]Severity{
	SeverityInfo:     SeverityWarning,
	SeverityWarning:  SeverityCritical,
	SeverityCritical: SeverityEmergency,
}

// Rank returns the numeric ordering of a severity. Unknown values rank
// lowest so a malformed row is filtered rather than treated as urgent.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Next returns the severity one level up and whether escalation is possible.
func (s Severity) Next() (Severity, bool) {
	next, ok := severityNext[s]
	return next, ok
}

// IsValid reports whether s is one of the four known levels.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}
