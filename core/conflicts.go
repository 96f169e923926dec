package core

import (
	"math"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

const (
	// ConflictDistance is the separation below which two trains on the same
	// track are considered close enough to conflict.
	ConflictDistance = 20.0
	// MinConflictRelativeSpeed is the closing speed a pair must exceed to be
	// flagged.
	MinConflictRelativeSpeed = 0.5

	highRiskThreshold   = 0.1
	mediumRiskThreshold = 0.05
)

// Severity grades a conflict by its risk score.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is an unordered pair of trains on the same track that are close
// together and moving at different speeds. Train1 always precedes Train2 in
// the fleet ordering the detector was given.
type Conflict struct {
	Train1        string   `json:"train1"`
	Train2        string   `json:"train2"`
	Distance      float64  `json:"distance"`
	RelativeSpeed float64  `json:"relative_speed"`
	Severity      Severity `json:"severity"`

	// Risk is relative_speed / distance. It is +Inf for coincident trains,
	// so it stays off the wire.
	Risk float64 `json:"-"`
}

// Involves reports whether id is one of the two trains in the conflict.
func (c Conflict) Involves(id string) bool {
	return c.Train1 == id || c.Train2 == id
}

// DetectConflicts scans every pair of trains sharing a track and reports the
// ones within ConflictDistance whose speeds differ by more than
// MinConflictRelativeSpeed. Each pair is reported once.
func DetectConflicts(trains []model.Train) []Conflict {
	var conflicts []Conflict
	for i := range trains {
		for j := i + 1; j < len(trains); j++ {
			a, b := trains[i], trains[j]
			if a.Track != b.Track {
				continue
			}
			distance := math.Abs(a.Position - b.Position)
			relSpeed := math.Abs(a.Speed - b.Speed)
			if distance >= ConflictDistance || relSpeed <= MinConflictRelativeSpeed {
				continue
			}
			risk := riskScore(distance, relSpeed)
			conflicts = append(conflicts, Conflict{
				Train1:        a.ID,
				Train2:        b.ID,
				Distance:      distance,
				RelativeSpeed: relSpeed,
				Severity:      ClassifySeverity(risk),
				Risk:          risk,
			})
		}
	}
	return conflicts
}

// ClassifySeverity maps a risk score onto a Severity.
func ClassifySeverity(risk float64) Severity {
	switch {
	case risk > highRiskThreshold:
		return SeverityHigh
	case risk > mediumRiskThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func riskScore(distance, relSpeed float64) float64 {
	if distance == 0 {
		return math.Inf(1)
	}
	return relSpeed / distance
}
