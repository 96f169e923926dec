package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

func train(id string, track model.Track, pos, speed float64) model.Train {
	return model.Train{
		ID:       id,
		Type:     model.TrainPassenger,
		Position: pos,
		Speed:    speed,
		Priority: model.PriorityMedium,
		Track:    track,
	}
}

func TestDetectConflicts_FlagsCloseDifferentSpeeds(t *testing.T) {
	trains := []model.Train{
		train("a", model.TrackMain, 10, 2.0),
		train("b", model.TrackMain, 15, 1.0),
	}

	conflicts := DetectConflicts(trains)
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Train1 != "a" || c.Train2 != "b" {
		t.Fatalf("conflict pair = (%s,%s), want (a,b)", c.Train1, c.Train2)
	}
	if c.Distance != 5 || c.RelativeSpeed != 1 {
		t.Fatalf("distance/relative speed = %v/%v, want 5/1", c.Distance, c.RelativeSpeed)
	}
	// risk = 1/5 = 0.2
	if c.Severity != SeverityHigh {
		t.Fatalf("severity = %s, want high", c.Severity)
	}
}

func TestDetectConflicts_IgnoresOtherTracksAndEqualSpeeds(t *testing.T) {
	trains := []model.Train{
		train("a", model.TrackMain, 10, 2.0),
		train("b", model.TrackMain, 8, 2.0),       // same speed
		train("c", model.TrackSecondary, 11, 0.5), // other track
		train("d", model.TrackMain, 30, 0.1),      // exactly 20 from a, 22 from b
	}

	if got := DetectConflicts(trains); len(got) != 0 {
		t.Fatalf("DetectConflicts() = %+v, want none", got)
	}
}

func TestDetectConflicts_Symmetric(t *testing.T) {
	forward := []model.Train{
		train("a", model.TrackMain, 10, 3.0),
		train("b", model.TrackMain, 28, 1.0),
		train("c", model.TrackMain, 20, 0.2),
	}
	reverse := []model.Train{forward[2], forward[1], forward[0]}

	key := func(c Conflict) [2]string {
		if c.Train1 < c.Train2 {
			return [2]string{c.Train1, c.Train2}
		}
		return [2]string{c.Train2, c.Train1}
	}

	fwd := make(map[[2]string]Severity)
	for _, c := range DetectConflicts(forward) {
		fwd[key(c)] = c.Severity
	}
	rev := make(map[[2]string]Severity)
	for _, c := range DetectConflicts(reverse) {
		rev[key(c)] = c.Severity
	}

	if len(fwd) == 0 {
		t.Fatalf("expected at least one conflict in fixture")
	}
	if len(fwd) != len(rev) {
		t.Fatalf("conflict count differs: forward=%d reverse=%d", len(fwd), len(rev))
	}
	for k, sev := range fwd {
		if rev[k] != sev {
			t.Fatalf("severity for %v = %s forward, %s reverse", k, sev, rev[k])
		}
	}
}

func TestDetectConflicts_CoincidentTrainsAreHighSeverity(t *testing.T) {
	conflicts := DetectConflicts([]model.Train{
		train("a", model.TrackSecondary, 40, 2.0),
		train("b", model.TrackSecondary, 40, 0.0),
	})
	if len(conflicts) != 1 {
		t.Fatalf("len(conflicts) = %d, want 1", len(conflicts))
	}
	if !math.IsInf(conflicts[0].Risk, 1) {
		t.Fatalf("risk = %v, want +Inf", conflicts[0].Risk)
	}
	if conflicts[0].Severity != SeverityHigh {
		t.Fatalf("severity = %s, want high", conflicts[0].Severity)
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		risk float64
		want Severity
	}{
		{0.2, SeverityHigh},
		{0.1, SeverityMedium},
		{0.06, SeverityMedium},
		{0.05, SeverityLow},
		{0.01, SeverityLow},
	}
	for _, tc := range tests {
		if got := ClassifySeverity(tc.risk); got != tc.want {
			t.Fatalf("ClassifySeverity(%v) = %s, want %s", tc.risk, got, tc.want)
		}
	}
}
