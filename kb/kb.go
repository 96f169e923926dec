package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

var (
	// ErrTrainExists indicates a train with the same ID is already stored.
	ErrTrainExists = errors.New("train already exists")
	// ErrTrainNotFound indicates a requested train was not found.
	ErrTrainNotFound = errors.New("train not found")
	// ErrJunctionExists indicates a junction with the same ID is already stored.
	ErrJunctionExists = errors.New("junction already exists")
	// ErrSignalExists indicates a signal with the same ID is already stored.
	ErrSignalExists = errors.New("signal already exists")
)

// KnowledgeBase is an in-memory, thread-safe store for the corridor fleet:
// trains, junctions and signals. Entities keep their insertion order, which
// is the order every List* call returns them in.
type KnowledgeBase struct {
	mu sync.RWMutex

	trains     []*model.Train
	trainIndex map[string]int

	junctions []model.Junction
	signals   []*model.Signal

	junctionIDs map[string]struct{}
	signalIDs   map[string]struct{}
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		trainIndex:  make(map[string]int),
		junctionIDs: make(map[string]struct{}),
		signalIDs:   make(map[string]struct{}),
	}
}

// AddTrain validates and appends a train.
func (kb *KnowledgeBase) AddTrain(t model.Train) error {
	if err := t.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.trainIndex[t.ID]; exists {
		return fmt.Errorf("%w: %q", ErrTrainExists, t.ID)
	}
	kb.trainIndex[t.ID] = len(kb.trains)
	kb.trains = append(kb.trains, &t)
	return nil
}

// AddJunction validates and appends a junction.
func (kb *KnowledgeBase) AddJunction(j model.Junction) error {
	if err := j.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.junctionIDs[j.ID]; exists {
		return fmt.Errorf("%w: %q", ErrJunctionExists, j.ID)
	}
	kb.junctionIDs[j.ID] = struct{}{}
	kb.junctions = append(kb.junctions, j)
	return nil
}

// AddSignal validates and appends a signal.
func (kb *KnowledgeBase) AddSignal(s model.Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.signalIDs[s.ID]; exists {
		return fmt.Errorf("%w: %q", ErrSignalExists, s.ID)
	}
	kb.signalIDs[s.ID] = struct{}{}
	kb.signals = append(kb.signals, &s)
	return nil
}

// GetTrain returns a copy of the train with the given ID.
func (kb *KnowledgeBase) GetTrain(id string) (model.Train, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	idx, ok := kb.trainIndex[id]
	if !ok {
		return model.Train{}, fmt.Errorf("%w: %q", ErrTrainNotFound, id)
	}
	return *kb.trains[idx], nil
}

// ListTrains returns a snapshot slice of all trains.
func (kb *KnowledgeBase) ListTrains() []model.Train {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Train, 0, len(kb.trains))
	for _, t := range kb.trains {
		res = append(res, *t)
	}
	return res
}

// ListJunctions returns a snapshot slice of all junctions.
func (kb *KnowledgeBase) ListJunctions() []model.Junction {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	return append([]model.Junction(nil), kb.junctions...)
}

// ListSignals returns a snapshot slice of all signals.
func (kb *KnowledgeBase) ListSignals() []model.Signal {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Signal, 0, len(kb.signals))
	for _, s := range kb.signals {
		res = append(res, *s)
	}
	return res
}

// Counts returns the number of stored trains, junctions and signals.
func (kb *KnowledgeBase) Counts() (trains, junctions, signals int) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.trains), len(kb.junctions), len(kb.signals)
}

// UpdateTrain applies fn to the stored train with the given ID.
func (kb *KnowledgeBase) UpdateTrain(id string, fn func(*model.Train)) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	idx, ok := kb.trainIndex[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTrainNotFound, id)
	}
	fn(kb.trains[idx])
	return nil
}

// UpdateAllTrains applies fn to every stored train in order.
func (kb *KnowledgeBase) UpdateAllTrains(fn func(*model.Train)) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, t := range kb.trains {
		fn(t)
	}
}

// UpdateAllSignals applies fn to every stored signal in order.
func (kb *KnowledgeBase) UpdateAllSignals(fn func(*model.Signal)) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, s := range kb.signals {
		fn(s)
	}
}
