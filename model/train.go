package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// CorridorLength is the length of the one-dimensional corridor. Positions
// live in [0, CorridorLength).
const CorridorLength = 100.0

// ErrInvalidTrain indicates a train failed validation.
var ErrInvalidTrain = errors.New("invalid train")

// TrainType classifies a train's service.
type TrainType string

const (
	TrainExpress   TrainType = "express"
	TrainPassenger TrainType = "passenger"
	TrainFreight   TrainType = "freight"
)

// Valid reports whether t is a known train type.
func (t TrainType) Valid() bool {
	switch t {
	case TrainExpress, TrainPassenger, TrainFreight:
		return true
	default:
		return false
	}
}

// ParseTrainType maps a wire string onto a TrainType.
func ParseTrainType(s string) (TrainType, error) {
	t := TrainType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown train type %q", ErrInvalidTrain, s)
	}
	return t, nil
}

// Track is one of the two track classes running the length of the corridor.
type Track string

const (
	TrackMain      Track = "main"
	TrackSecondary Track = "secondary"
)

// Valid reports whether t is a known track class.
func (t Track) Valid() bool {
	switch t {
	case TrackMain, TrackSecondary:
		return true
	default:
		return false
	}
}

// Opposite returns the other track class. Unknown tracks map to main.
func (t Track) Opposite() Track {
	switch t {
	case TrackMain:
		return TrackSecondary
	case TrackSecondary:
		return TrackMain
	default:
		return TrackMain
	}
}

// ParseTrack maps a wire string onto a Track.
func ParseTrack(s string) (Track, error) {
	t := Track(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown track %q", ErrInvalidTrain, s)
	}
	return t, nil
}

// Priority is the ordinal importance of a train. It marshals as its
// integer value (1..3).
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Valid reports whether p is one of the three defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Train is a single train running on the corridor.
type Train struct {
	ID           string    `json:"id"`
	Type         TrainType `json:"type"`
	Position     float64   `json:"position"`
	Speed        float64   `json:"speed"`
	Priority     Priority  `json:"priority"`
	Delay        int       `json:"delay"` // minutes
	Track        Track     `json:"track"`
	Destination  string    `json:"destination"`
	ScheduleTime time.Time `json:"schedule_time"`
	Passengers   int       `json:"passengers"`
	CargoWeight  float64   `json:"cargo_weight"`
}

// Validate checks the train's fields against the corridor invariants.
func (t Train) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidTrain)
	case !t.Type.Valid():
		return fmt.Errorf("%w: train %q has unknown type %q", ErrInvalidTrain, t.ID, t.Type)
	case !t.Track.Valid():
		return fmt.Errorf("%w: train %q has unknown track %q", ErrInvalidTrain, t.ID, t.Track)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: train %q has unknown priority %d", ErrInvalidTrain, t.ID, int(t.Priority))
	case !InCorridor(t.Position):
		return fmt.Errorf("%w: train %q position %v outside [0,%v)", ErrInvalidTrain, t.ID, t.Position, CorridorLength)
	case t.Speed < 0 || math.IsNaN(t.Speed) || math.IsInf(t.Speed, 0):
		return fmt.Errorf("%w: train %q speed %v must be finite and >= 0", ErrInvalidTrain, t.ID, t.Speed)
	case t.Delay < 0:
		return fmt.Errorf("%w: train %q delay %d must be >= 0", ErrInvalidTrain, t.ID, t.Delay)
	case t.Passengers < 0:
		return fmt.Errorf("%w: train %q passengers %d must be >= 0", ErrInvalidTrain, t.ID, t.Passengers)
	case t.CargoWeight < 0:
		return fmt.Errorf("%w: train %q cargo weight %v must be >= 0", ErrInvalidTrain, t.ID, t.CargoWeight)
	}
	return nil
}

// InCorridor reports whether p is a finite position in [0, CorridorLength).
func InCorridor(p float64) bool {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return false
	}
	return p >= 0 && p < CorridorLength
}
