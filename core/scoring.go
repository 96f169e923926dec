package core

import (
	"math"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// Hand-tuned linear weights for ScoreTrack. They are fixed; nothing in the
// system adjusts them.
const (
	baseTrackScore      = 0.5
	congestionPenalty   = 0.1
	proximityPenalty    = 0.15
	proximityZone       = 25.0
	highPriorityBonus   = 0.2
	mediumPriorityBonus = 0.1
	delayPenaltyPerHour = 0.1
	minutesPerHour      = 60.0
)

// ScoreTrack rates how favourable track is for train given the rest of the
// fleet. Higher is better and the result never drops below zero.
//
// Every other train already on track costs congestionPenalty, and each of
// those within proximityZone of train costs proximityPenalty on top. Priority
// earns a bonus and accumulated delay a small penalty.
func ScoreTrack(train model.Train, all []model.Train, track model.Track) float64 {
	score := baseTrackScore

	for _, other := range all {
		if other.ID == train.ID || other.Track != track {
			continue
		}
		score -= congestionPenalty
		if math.Abs(train.Position-other.Position) < proximityZone {
			score -= proximityPenalty
		}
	}

	score += priorityBonus(train.Priority)
	score -= (float64(train.Delay) / minutesPerHour) * delayPenaltyPerHour

	return math.Max(score, 0)
}

func priorityBonus(p model.Priority) float64 {
	switch p {
	case model.PriorityHigh:
		return highPriorityBonus
	case model.PriorityMedium:
		return mediumPriorityBonus
	case model.PriorityLow:
		return 0
	default:
		return 0
	}
}
