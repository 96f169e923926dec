package core

import (
	"math"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

const (
	// trackCapacity normalises per-track counts into a congestion level.
	trackCapacity = 100.0

	mainTrackUtilisationCap      = 10.0
	secondaryTrackUtilisationCap = 8.0
)

// PriorityDistribution counts trains per priority class.
type PriorityDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// TrackUtilization is the fraction of each track's nominal capacity in use.
type TrackUtilization struct {
	Main      float64 `json:"main"`
	Secondary float64 `json:"secondary"`
}

// TrafficAnalysis is a point-in-time summary of corridor traffic.
type TrafficAnalysis struct {
	TotalTrains          int                  `json:"total_trains"`
	CongestionLevel      float64              `json:"congestion_level"`
	AvgDelay             float64              `json:"avg_delay"`
	PriorityDistribution PriorityDistribution `json:"priority_distribution"`
	TrackUtilization     TrackUtilization     `json:"track_utilization"`
	PotentialConflicts   []Conflict           `json:"potential_conflicts"`
}

// Analyze summarises the fleet. Junctions are accepted for symmetry with the
// optimizer but do not influence any figure today.
func Analyze(trains []model.Train, _ []model.Junction) TrafficAnalysis {
	var (
		main, secondary int
		totalDelay      int
		dist            PriorityDistribution
	)

	for _, t := range trains {
		switch t.Track {
		case model.TrackMain:
			main++
		case model.TrackSecondary:
			secondary++
		}
		switch t.Priority {
		case model.PriorityHigh:
			dist.High++
		case model.PriorityMedium:
			dist.Medium++
		default:
			dist.Low++
		}
		totalDelay += t.Delay
	}

	avgDelay := 0.0
	if len(trains) > 0 {
		avgDelay = float64(totalDelay) / float64(len(trains))
	}

	conflicts := DetectConflicts(trains)
	if conflicts == nil {
		conflicts = []Conflict{}
	}

	return TrafficAnalysis{
		TotalTrains:          len(trains),
		CongestionLevel:      (float64(main)/trackCapacity + float64(secondary)/trackCapacity) / 2,
		AvgDelay:             avgDelay,
		PriorityDistribution: dist,
		TrackUtilization: TrackUtilization{
			Main:      math.Min(float64(main)/mainTrackUtilisationCap, 1),
			Secondary: math.Min(float64(secondary)/secondaryTrackUtilisationCap, 1),
		},
		PotentialConflicts: conflicts,
	}
}
