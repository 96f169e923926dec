package state

import (
	"testing"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
)

var sampleEpoch = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

// newSampleFleetState returns a FleetState seeded with the sample corridor.
func newSampleFleetState(t *testing.T, opts ...FleetStateOption) *FleetState {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if _, err := kb.Populate(store, kb.SampleFleet(sampleEpoch)); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	return NewFleetState(store, logging.Noop(), opts...)
}
