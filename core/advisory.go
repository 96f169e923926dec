package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

const (
	congestionAdvisoryLevel = 0.7
	avgDelayAdvisoryMinutes = 15.0
	priorityDelayMinutes    = 10
)

// Advisories turns a traffic analysis into operator-facing text. Lines are
// emitted in a fixed order: congestion, average delay, delayed high-priority
// trains, then conflicts. Conditions that do not hold produce no line.
func Advisories(analysis TrafficAnalysis, trains []model.Train) []string {
	advisories := make([]string, 0, 4)

	if analysis.CongestionLevel > congestionAdvisoryLevel {
		advisories = append(advisories, "High congestion detected. Consider implementing dynamic scheduling.")
	}

	if analysis.AvgDelay > avgDelayAdvisoryMinutes {
		advisories = append(advisories, "Average delay is high. Optimize signal timing and junction switching.")
	}

	var delayed []string
	for _, t := range trains {
		if t.Priority == model.PriorityHigh && t.Delay > priorityDelayMinutes {
			delayed = append(delayed, "'"+t.ID+"'")
		}
	}
	if len(delayed) > 0 {
		advisories = append(advisories, fmt.Sprintf("Priority trains [%s] experiencing delays.", strings.Join(delayed, ", ")))
	}

	if n := len(analysis.PotentialConflicts); n > 0 {
		advisories = append(advisories, fmt.Sprintf("Detected %d potential conflicts requiring attention.", n))
	}

	return advisories
}

// Recommend analyses the fleet and returns its advisories in one step.
func Recommend(trains []model.Train, junctions []model.Junction) []string {
	return Advisories(Analyze(trains, junctions), trains)
}
