package core

import "github.com/signalsfoundry/rail-corridor-sim/model"

const (
	delayPerTrainOnTrack = 0.5
	delayPerPriorityStep = 2.0
	priorityCeiling      = 4
)

// PredictDelays forecasts each train's delay in whole minutes from its
// current delay, the number of trains sharing its track (itself included)
// and its priority. Lower priorities pick up more additional delay.
func PredictDelays(trains []model.Train) map[string]int {
	perTrack := make(map[model.Track]int, 2)
	for _, t := range trains {
		perTrack[t.Track]++
	}

	predictions := make(map[string]int, len(trains))
	for _, t := range trains {
		congestion := float64(perTrack[t.Track]) * delayPerTrainOnTrack
		priority := float64(priorityCeiling-int(t.Priority)) * delayPerPriorityStep
		predictions[t.ID] = int(float64(t.Delay) + congestion + priority)
	}
	return predictions
}
