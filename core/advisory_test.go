package core

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

func TestAnalyze(t *testing.T) {
	a := train("a", model.TrackMain, 10, 2.0)
	a.Priority = model.PriorityHigh
	a.Delay = 15
	b := train("b", model.TrackMain, 15, 1.0)
	b.Delay = 5
	c := train("c", model.TrackSecondary, 60, 1.0)
	c.Priority = model.PriorityLow
	c.Delay = 10

	got := Analyze([]model.Train{a, b, c}, nil)

	if got.TotalTrains != 3 {
		t.Fatalf("TotalTrains = %d, want 3", got.TotalTrains)
	}
	if !approxEqual(got.CongestionLevel, (2.0/100+1.0/100)/2) {
		t.Fatalf("CongestionLevel = %v", got.CongestionLevel)
	}
	if !approxEqual(got.AvgDelay, 10) {
		t.Fatalf("AvgDelay = %v, want 10", got.AvgDelay)
	}
	if got.PriorityDistribution != (PriorityDistribution{High: 1, Medium: 1, Low: 1}) {
		t.Fatalf("PriorityDistribution = %+v", got.PriorityDistribution)
	}
	if !approxEqual(got.TrackUtilization.Main, 0.2) || !approxEqual(got.TrackUtilization.Secondary, 0.125) {
		t.Fatalf("TrackUtilization = %+v", got.TrackUtilization)
	}
	if len(got.PotentialConflicts) != 1 {
		t.Fatalf("PotentialConflicts = %+v, want 1", got.PotentialConflicts)
	}
}

func TestAnalyze_EmptyFleet(t *testing.T) {
	got := Analyze(nil, nil)
	if got.AvgDelay != 0 || got.CongestionLevel != 0 || got.TotalTrains != 0 {
		t.Fatalf("Analyze(nil) = %+v, want zero figures", got)
	}
	if got.PotentialConflicts == nil {
		t.Fatalf("PotentialConflicts should be an empty slice, not nil")
	}
}

func TestTrackUtilizationCaps(t *testing.T) {
	var trains []model.Train
	for i := 0; i < 12; i++ {
		trains = append(trains, train(fmt.Sprintf("m%d", i), model.TrackMain, float64(i*8), 1))
	}
	got := Analyze(trains, nil)
	if got.TrackUtilization.Main != 1 {
		t.Fatalf("main utilization = %v, want capped at 1", got.TrackUtilization.Main)
	}
}

func TestAdvisories_Order(t *testing.T) {
	analysis := TrafficAnalysis{
		CongestionLevel:    0.75,
		AvgDelay:           20,
		PotentialConflicts: []Conflict{{Train1: "a", Train2: "b"}, {Train1: "a", Train2: "c"}},
	}
	hp := train("EXP-001", model.TrackMain, 10, 2)
	hp.Priority = model.PriorityHigh
	hp.Delay = 15
	hp2 := train("EXP-002", model.TrackMain, 25, 2)
	hp2.Priority = model.PriorityHigh
	hp2.Delay = 11

	got := Advisories(analysis, []model.Train{hp, hp2})
	want := []string{
		"High congestion detected. Consider implementing dynamic scheduling.",
		"Average delay is high. Optimize signal timing and junction switching.",
		"Priority trains ['EXP-001', 'EXP-002'] experiencing delays.",
		"Detected 2 potential conflicts requiring attention.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Advisories() =\n%q\nwant\n%q", got, want)
	}
}

func TestAdvisories_OmitsAbsentConditions(t *testing.T) {
	hp := train("EXP-001", model.TrackMain, 10, 2)
	hp.Priority = model.PriorityHigh
	hp.Delay = 10 // not strictly above the threshold

	got := Advisories(TrafficAnalysis{CongestionLevel: 0.7, AvgDelay: 15}, []model.Train{hp})
	if len(got) != 0 {
		t.Fatalf("Advisories() = %q, want none", got)
	}
}

func TestRecommend_SampleLikeFleet(t *testing.T) {
	hp := train("EXP-001", model.TrackMain, 10, 2.0)
	hp.Priority = model.PriorityHigh
	hp.Delay = 15
	pas := train("PAS-102", model.TrackMain, 25, 1.0)
	pas.Delay = 8

	got := Recommend([]model.Train{hp, pas}, nil)
	want := []string{
		"Priority trains ['EXP-001'] experiencing delays.",
		"Detected 1 potential conflicts requiring attention.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Recommend() = %q, want %q", got, want)
	}
}
