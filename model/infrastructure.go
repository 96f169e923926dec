package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJunction indicates a junction failed validation.
	ErrInvalidJunction = errors.New("invalid junction")
	// ErrInvalidSignal indicates a signal failed validation.
	ErrInvalidSignal = errors.New("invalid signal")
)

// Junction is a crossover between the main and secondary tracks.
// Only Active is ever meant to change at runtime, and nothing in the
// engine flips it today.
type Junction struct {
	ID              string  `json:"id"`
	Position        float64 `json:"position"`
	Active          bool    `json:"active"`
	MainToSecondary bool    `json:"main_to_secondary"`
	SwitchTime      float64 `json:"switch_time"`
}

// Validate checks the junction's identity and placement.
func (j Junction) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidJunction)
	}
	if !InCorridor(j.Position) {
		return fmt.Errorf("%w: junction %q position %v outside [0,%v)", ErrInvalidJunction, j.ID, j.Position, CorridorLength)
	}
	if j.SwitchTime < 0 {
		return fmt.Errorf("%w: junction %q switch time %v must be >= 0", ErrInvalidJunction, j.ID, j.SwitchTime)
	}
	return nil
}

// SignalState is the aspect shown by a signal.
type SignalState string

const (
	SignalRed    SignalState = "red"
	SignalYellow SignalState = "yellow"
	SignalGreen  SignalState = "green"
)

// Valid reports whether s is a known aspect.
func (s SignalState) Valid() bool {
	switch s {
	case SignalRed, SignalYellow, SignalGreen:
		return true
	default:
		return false
	}
}

// Signal is a lineside signal at a fixed corridor position.
type Signal struct {
	ID             string      `json:"id"`
	Position       float64     `json:"position"`
	State          SignalState `json:"state"`
	ControlledByAI bool        `json:"controlled_by_ai"`
}

// Validate checks the signal's identity, placement and aspect.
func (s Signal) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSignal)
	}
	if !InCorridor(s.Position) {
		return fmt.Errorf("%w: signal %q position %v outside [0,%v)", ErrInvalidSignal, s.ID, s.Position, CorridorLength)
	}
	if !s.State.Valid() {
		return fmt.Errorf("%w: signal %q has unknown state %q", ErrInvalidSignal, s.ID, s.State)
	}
	return nil
}
