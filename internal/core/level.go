package core

// ThreatLevel is the three-valued ordinal derived from a threat score.
// The mapping is the single source of truth consumed by the CLI, reports
// and clustering alike.
type ThreatLevel int

const (
	LevelLow ThreatLevel = iota
	LevelMedium
	LevelHigh
)

// Score thresholds for the level mapping.
const (
	MediumThreshold = 4.0
	HighThreshold   = 7.0
)

// LevelForScore maps a [0,10] score to its threat level.
func LevelForScore(score float64) ThreatLevel {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func (l ThreatLevel) String() string {
	switch l {
	case LevelHigh:
		return "HIGH"
	case LevelMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Icon returns the traffic-light rendering of the level.
func (l ThreatLevel) Icon() string {
	switch l {
	case LevelHigh:
		return "🔴"
	case LevelMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// MarshalText renders the level name for JSON output.
func (l ThreatLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the level name, defaulting to LOW for anything
// unrecognized.
func (l *ThreatLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "HIGH":
		*l = LevelHigh
	case "MEDIUM":
		*l = LevelMedium
	default:
		*l = LevelLow
	}
	return nil
}
