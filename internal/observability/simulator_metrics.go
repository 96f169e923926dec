package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorCollector exposes movement-simulator Prometheus metrics.
type SimulatorCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	TicksTotal   prometheus.Counter
	TrainsMoved  prometheus.Counter
	SimTimeLag   prometheus.Gauge
}

// NewSimulatorCollector registers simulator metrics against the provided registerer.
func NewSimulatorCollector(reg prometheus.Registerer) (*SimulatorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulator_tick_duration_seconds",
		Help:    "Wall-clock duration of one movement tick.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "simulator_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_ticks_total",
		Help: "Cumulative number of movement ticks processed.",
	})
	ticks, err = registerCounter(reg, ticks, "simulator_ticks_total")
	if err != nil {
		return nil, err
	}

	moved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_train_moves_total",
		Help: "Cumulative number of single-train position updates applied by the simulator.",
	})
	moved, err = registerCounter(reg, moved, "simulator_train_moves_total")
	if err != nil {
		return nil, err
	}

	lag := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_sim_time_offset_seconds",
		Help: "Simulation time minus wall-clock time at the last tick.",
	})
	lag, err = registerGauge(reg, lag, "simulator_sim_time_offset_seconds")
	if err != nil {
		return nil, err
	}

	return &SimulatorCollector{
		gatherer:     gatherer,
		TickDuration: tickHistogram,
		TicksTotal:   ticks,
		TrainsMoved:  moved,
		SimTimeLag:   lag,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulatorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one movement tick.
func (c *SimulatorCollector) ObserveTick(d time.Duration, moved int) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.TicksTotal != nil {
		c.TicksTotal.Inc()
	}
	if c.TrainsMoved != nil && moved > 0 {
		c.TrainsMoved.Add(float64(moved))
	}
}

// SetSimTimeOffset records how far simulation time has drifted from the wall clock.
func (c *SimulatorCollector) SetSimTimeOffset(simTime, wall time.Time) {
	if c == nil || c.SimTimeLag == nil {
		return
	}
	c.SimTimeLag.Set(simTime.Sub(wall).Seconds())
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
