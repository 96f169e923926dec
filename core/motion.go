package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// DefaultStepFraction is the share of a train's speed covered per tick.
const DefaultStepFraction = 0.1

// Motion model names accepted by ParseMotionModel.
const (
	MotionLinear = "linear"
	MotionStatic = "static"
)

// ErrUnknownMotionModel is returned by ParseMotionModel for an unsupported name.
var ErrUnknownMotionModel = errors.New("unknown motion model")

// MotionModel advances a train by one simulation tick and reports whether
// the train moved.
type MotionModel interface {
	Advance(t *model.Train) bool
}

// StaticMotionModel leaves every train where it is.
type StaticMotionModel struct{}

// Advance for static motion does nothing.
func (StaticMotionModel) Advance(*model.Train) bool {
	return false
}

// ParseMotionModel returns the motion model called name. An empty name
// selects linear motion.
func ParseMotionModel(name string) (MotionModel, error) {
	switch strings.ToLower(name) {
	case "", MotionLinear:
		return NewLinearMotionModel(DefaultStepFraction), nil
	case MotionStatic:
		return StaticMotionModel{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMotionModel, name)
	}
}

// LinearMotionModel moves each running train forward by Speed*StepFraction
// and sends it back to the start of the corridor once it reaches the end.
// Trains are not aware of each other; two can end up at the same position.
type LinearMotionModel struct {
	StepFraction float64
}

// NewLinearMotionModel returns a LinearMotionModel, defaulting the step
// fraction when step is not positive.
func NewLinearMotionModel(step float64) *LinearMotionModel {
	if step <= 0 {
		step = DefaultStepFraction
	}
	return &LinearMotionModel{StepFraction: step}
}

// Advance moves t in place.
func (m *LinearMotionModel) Advance(t *model.Train) bool {
	if t == nil || t.Speed <= 0 {
		return false
	}
	t.Position += t.Speed * m.StepFraction
	if t.Position >= model.CorridorLength || t.Position < 0 {
		t.Position = 0
	}
	return true
}
