package canonical

import "strings"

// Urgency is the ordered severity scale attached to every canonical message:
// routine < urgent < stat < critical.
type Urgency string

const (
	UrgencyRoutine  Urgency = "routine"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyStat     Urgency = "stat"
	UrgencyCritical Urgency = "critical"
)

// urgencyRank orders the scale for comparisons. Unknown values rank below
// routine so a garbage token can never elevate a message.
var urgencyRank = map[Urgency]int{
	UrgencyRoutine:  1,
	UrgencyUrgent:   2,
	UrgencyStat:     3,
	UrgencyCritical: 4,
}

// Rank returns the numeric position of u on the urgency scale, 0 for
// unrecognized values.
func (u Urgency) Rank() int {
	return urgencyRank[u]
}

// MaxUrgency returns the highest-severity urgency among the given values,
// defaulting to routine when none rank.
func MaxUrgency(urgencies ...Urgency) Urgency {
	max := UrgencyRoutine
	for _, u := range urgencies {
		if u.Rank() > max.Rank() {
			max = u
		}
	}
	return max
}

// Flag is the per-value abnormality marker on a lab result.
type Flag string

const (
	FlagNormal   Flag = "normal"
	FlagAbnormal Flag = "abnormal"
	FlagCritical Flag = "critical"
	FlagUnknown  Flag = "unknown"
)

// FlagFromCode normalizes an HL7 table 0078 abnormal-flag code (also used by
// FHIR interpretation codings) to the three-tier flag scale. High/low/
// abnormal map to abnormal; the panic-range codes (high-high, low-low,
// critical-abnormal) map to critical; blank or an explicit normal indicator
// maps to normal; anything else is unknown.
func FlagFromCode(code string) Flag {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "N", "NORMAL":
		return FlagNormal
	case "H", "L", "A", "ABNORMAL", "HIGH", "LOW":
		return FlagAbnormal
	case "HH", "LL", "AA", "CC", "CRITICAL", "PANIC":
		return FlagCritical
	default:
		return FlagUnknown
	}
}

// UrgencyFromFlags returns the urgency implied by a set of per-value flags:
// critical if any flag is critical, urgent if any is abnormal, else routine.
func UrgencyFromFlags(flags []Flag) Urgency {
	out := UrgencyRoutine
	for _, f := range flags {
		switch f {
		case FlagCritical:
			return UrgencyCritical
		case FlagAbnormal:
			out = MaxUrgency(out, UrgencyUrgent)
		}
	}
	return out
}

// UrgencyFromPriority maps a source order-priority token (HL7 priority codes
// or FHIR request priority values) onto the urgency scale. Unrecognized
// tokens map to routine.
func UrgencyFromPriority(token string) Urgency {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "S", "STAT":
		return UrgencyStat
	case "A", "ASAP", "U", "URGENT":
		return UrgencyUrgent
	default:
		return UrgencyRoutine
	}
}

// Classify combines per-value flags and a source priority token into the
// single message-level urgency: the critical-flag rule wins outright, then
// the higher of the flag-derived and priority-derived urgencies applies.
func Classify(flags []Flag, priority string) Urgency {
	fromFlags := UrgencyFromFlags(flags)
	if fromFlags == UrgencyCritical {
		return UrgencyCritical
	}
	return MaxUrgency(fromFlags, UrgencyFromPriority(priority))
}
