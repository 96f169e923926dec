// kb/loader.go
package kb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// Fleet is an initial snapshot of the corridor handed to the KB at startup.
type Fleet struct {
	Trains    []model.Train
	Junctions []model.Junction
	Signals   []model.Signal
}

// FleetSummary is a small summary of what was loaded.
// It’s mainly useful for logging from main().
type FleetSummary struct {
	TrainIDs    []string
	JunctionIDs []string
	SignalIDs   []string
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type fleetJSON struct {
	Trains    []trainJSON      `json:"trains"`
	Junctions []model.Junction `json:"junctions"`
	Signals   []signalJSON     `json:"signals"`
}

type trainJSON struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Position    float64 `json:"position"`
	Speed       float64 `json:"speed"`
	Priority    int     `json:"priority"`
	Delay       int     `json:"delay"`
	Track       string  `json:"track"`
	Destination string  `json:"destination"`
	Passengers  int     `json:"passengers"`
	CargoWeight float64 `json:"cargo_weight"`

	// Exactly one of these is expected. ScheduleIn is a Go duration relative
	// to the load time, e.g. "2h30m".
	ScheduleTime *time.Time `json:"schedule_time"`
	ScheduleIn   string     `json:"schedule_in"`
}

type signalJSON struct {
	ID             string  `json:"id"`
	Position       float64 `json:"position"`
	State          string  `json:"state"`
	ControlledByAI *bool   `json:"controlled_by_ai"` // optional; defaults to true
}

// LoadFleet reads a JSON fleet snapshot from r, populates the KB and returns
// a summary of what was loaded. Relative schedule times are resolved against
// now.
func LoadFleet(kb *KnowledgeBase, r io.Reader, now time.Time) (*FleetSummary, error) {
	if kb == nil {
		return nil, fmt.Errorf("LoadFleet: kb is nil")
	}

	var payload fleetJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadFleet: decode failed: %w", err)
	}

	fleet := Fleet{Junctions: payload.Junctions}
	for _, jsT := range payload.Trains {
		t, err := jsT.toModel(now)
		if err != nil {
			return nil, fmt.Errorf("LoadFleet: %w", err)
		}
		fleet.Trains = append(fleet.Trains, t)
	}
	for _, jsS := range payload.Signals {
		controlled := true
		if jsS.ControlledByAI != nil {
			controlled = *jsS.ControlledByAI
		}
		fleet.Signals = append(fleet.Signals, model.Signal{
			ID:             jsS.ID,
			Position:       jsS.Position,
			State:          model.SignalState(jsS.State),
			ControlledByAI: controlled,
		})
	}

	return Populate(kb, fleet)
}

// LoadFleetFile loads the fleet snapshot at path into the KB. An empty path
// seeds SampleFleet instead.
func LoadFleetFile(kb *KnowledgeBase, path string, now time.Time) (*FleetSummary, error) {
	if path == "" {
		return Populate(kb, SampleFleet(now))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fleet %q: %w", path, err)
	}
	defer f.Close()
	return LoadFleet(kb, f, now)
}

// Populate adds every entity of fleet to the KB, stopping at the first
// failure.
func Populate(kb *KnowledgeBase, fleet Fleet) (*FleetSummary, error) {
	result := &FleetSummary{
		TrainIDs:    make([]string, 0, len(fleet.Trains)),
		JunctionIDs: make([]string, 0, len(fleet.Junctions)),
		SignalIDs:   make([]string, 0, len(fleet.Signals)),
	}

	for _, t := range fleet.Trains {
		if err := kb.AddTrain(t); err != nil {
			return nil, fmt.Errorf("add train: %w", err)
		}
		result.TrainIDs = append(result.TrainIDs, t.ID)
	}
	for _, j := range fleet.Junctions {
		if err := kb.AddJunction(j); err != nil {
			return nil, fmt.Errorf("add junction: %w", err)
		}
		result.JunctionIDs = append(result.JunctionIDs, j.ID)
	}
	for _, s := range fleet.Signals {
		if err := kb.AddSignal(s); err != nil {
			return nil, fmt.Errorf("add signal: %w", err)
		}
		result.SignalIDs = append(result.SignalIDs, s.ID)
	}
	return result, nil
}

func (t trainJSON) toModel(now time.Time) (model.Train, error) {
	typ, err := model.ParseTrainType(t.Type)
	if err != nil {
		return model.Train{}, err
	}
	track, err := model.ParseTrack(t.Track)
	if err != nil {
		return model.Train{}, err
	}

	schedule := now
	switch {
	case t.ScheduleTime != nil:
		schedule = *t.ScheduleTime
	case t.ScheduleIn != "":
		d, err := time.ParseDuration(t.ScheduleIn)
		if err != nil {
			return model.Train{}, fmt.Errorf("%w: train %q schedule_in: %v", model.ErrInvalidTrain, t.ID, err)
		}
		schedule = now.Add(d)
	}

	return model.Train{
		ID:           t.ID,
		Type:         typ,
		Position:     t.Position,
		Speed:        t.Speed,
		Priority:     model.Priority(t.Priority),
		Delay:        t.Delay,
		Track:        track,
		Destination:  t.Destination,
		ScheduleTime: schedule,
		Passengers:   t.Passengers,
		CargoWeight:  t.CargoWeight,
	}, nil
}
