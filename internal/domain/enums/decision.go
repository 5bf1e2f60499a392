package enums

import "strings"

type Decision string

const (
	DecisionLike Decision = "like"
	DecisionPass Decision = "pass"
)

// ParseDecision accepts "like" and "pass" in any case; "dislike" is kept as
// an alias because older clients send it.
func ParseDecision(raw string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(DecisionLike):
		return DecisionLike, true
	case string(DecisionPass), "dislike":
		return DecisionPass, true
	default:
		return "", false
	}
}

func (d Decision) Valid() bool {
	return d == DecisionLike || d == DecisionPass
}

func (d Decision) Opposite() Decision {
	if d == DecisionLike {
		return DecisionPass
	}
	return DecisionLike
}
