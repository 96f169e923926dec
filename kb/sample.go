package kb

import (
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// SampleFleet is the demonstration corridor used when no fleet file is
// configured: five trains, three junctions and three signals.
func SampleFleet(now time.Time) Fleet {
	return Fleet{
		Trains: []model.Train{
			{
				ID: "EXP-001", Type: model.TrainExpress, Position: 10, Speed: 2.0,
				Priority: model.PriorityHigh, Delay: 15, Track: model.TrackMain,
				Destination: "Delhi", ScheduleTime: now.Add(2 * time.Hour), Passengers: 450,
			},
			{
				ID: "PAS-102", Type: model.TrainPassenger, Position: 35, Speed: 1.5,
				Priority: model.PriorityMedium, Delay: 8, Track: model.TrackMain,
				Destination: "Pune", ScheduleTime: now.Add(time.Hour), Passengers: 280,
			},
			{
				ID: "FRT-203", Type: model.TrainFreight, Position: 60, Speed: 1.0,
				Priority: model.PriorityLow, Delay: 5, Track: model.TrackSecondary,
				Destination: "Nashik", ScheduleTime: now.Add(4 * time.Hour), CargoWeight: 1200.5,
			},
			{
				ID: "EXP-002", Type: model.TrainExpress, Position: 25, Speed: 2.0,
				Priority: model.PriorityHigh, Delay: 10, Track: model.TrackMain,
				Destination: "Bangalore", ScheduleTime: now.Add(3 * time.Hour), Passengers: 520,
			},
			{
				ID: "PAS-103", Type: model.TrainPassenger, Position: 50, Speed: 1.5,
				Priority: model.PriorityMedium, Delay: 12, Track: model.TrackSecondary,
				Destination: "Nagpur", ScheduleTime: now.Add(2*time.Hour + 30*time.Minute), Passengers: 320,
			},
		},
		Junctions: []model.Junction{
			{ID: "junction1", Position: 25, MainToSecondary: true},
			{ID: "junction2", Position: 50, MainToSecondary: false},
			{ID: "junction3", Position: 75, MainToSecondary: true},
		},
		Signals: []model.Signal{
			{ID: "signal1", Position: 20, State: model.SignalRed, ControlledByAI: true},
			{ID: "signal2", Position: 45, State: model.SignalYellow, ControlledByAI: true},
			{ID: "signal3", Position: 70, State: model.SignalGreen, ControlledByAI: true},
		},
	}
}
