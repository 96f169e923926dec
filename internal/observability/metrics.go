package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Optimization outcomes used as the "outcome" label.
const (
	OutcomeApplied  = "applied"
	OutcomeNoAction = "no_action"
	OutcomeDisabled = "ai_disabled"
	OutcomeFailed   = "failed"
)

// CorridorCollector bundles Prometheus metrics for the corridor server and
// provides helpers to wire them into HTTP routers and gRPC servers.
type CorridorCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	FleetTrains       prometheus.Gauge
	FleetMovingTrains prometheus.Gauge
	FleetAIEnabled    prometheus.Gauge
	FleetConflicts    prometheus.Gauge

	OptimizationRuns     *prometheus.CounterVec
	OptimizationActions  *prometheus.CounterVec
	OptimizationDuration prometheus.Histogram
	EmergencyOverrides   prometheus.Counter
}

// NewCorridorCollector registers corridor Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewCorridorCollector(reg prometheus.Registerer) (*CorridorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}), "corridor_http_requests_total")
	if err != nil {
		return nil, err
	}
	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corridor_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"}), "corridor_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	rpcRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "corridor_grpc_requests_total")
	if err != nil {
		return nil, err
	}
	rpcDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corridor_grpc_request_duration_seconds",
		Help:    "gRPC call latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "corridor_grpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	trains, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corridor_fleet_trains",
		Help: "Current number of trains in the corridor.",
	}), "corridor_fleet_trains")
	if err != nil {
		return nil, err
	}
	moving, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corridor_fleet_moving_trains",
		Help: "Current number of trains with a non-zero speed.",
	}), "corridor_fleet_moving_trains")
	if err != nil {
		return nil, err
	}
	aiEnabled, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corridor_ai_enabled",
		Help: "1 when AI optimization is enabled, 0 in manual mode.",
	}), "corridor_ai_enabled")
	if err != nil {
		return nil, err
	}
	conflicts, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corridor_potential_conflicts",
		Help: "Number of potential conflicts found by the most recent analysis.",
	}), "corridor_potential_conflicts")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_optimization_runs_total",
		Help: "Optimization runs, labeled by outcome.",
	}, []string{"outcome"}), "corridor_optimization_runs_total")
	if err != nil {
		return nil, err
	}
	actions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corridor_optimization_actions_total",
		Help: "Optimization actions, labeled by result (executed or skipped).",
	}, []string{"result"}), "corridor_optimization_actions_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "corridor_optimization_duration_seconds",
		Help:    "Wall-clock duration of optimization planning.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "corridor_optimization_duration_seconds")
	if err != nil {
		return nil, err
	}
	overrides, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "corridor_emergency_overrides_total",
		Help: "Number of emergency overrides issued.",
	}), "corridor_emergency_overrides_total")
	if err != nil {
		return nil, err
	}

	return &CorridorCollector{
		gatherer:             gatherer,
		HTTPRequests:         httpRequests,
		HTTPDurations:        httpDurations,
		RPCRequests:          rpcRequests,
		RPCDurations:         rpcDurations,
		FleetTrains:          trains,
		FleetMovingTrains:    moving,
		FleetAIEnabled:       aiEnabled,
		FleetConflicts:       conflicts,
		OptimizationRuns:     runs,
		OptimizationActions:  actions,
		OptimizationDuration: duration,
		EmergencyOverrides:   overrides,
	}, nil
}

// HTTPMiddleware records request counts and durations. Routes are labelled
// with the chi route pattern so path parameters do not explode cardinality.
func (c *CorridorCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	})
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *CorridorCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CorridorCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetFleetCounts satisfies state.FleetMetricsRecorder so the FleetState can
// drive gauge values directly from its mutators.
func (c *CorridorCollector) SetFleetCounts(trains, moving int, aiEnabled bool) {
	if c == nil {
		return
	}
	if c.FleetTrains != nil {
		c.FleetTrains.Set(float64(trains))
	}
	if c.FleetMovingTrains != nil {
		c.FleetMovingTrains.Set(float64(moving))
	}
	if c.FleetAIEnabled != nil {
		v := 0.0
		if aiEnabled {
			v = 1
		}
		c.FleetAIEnabled.Set(v)
	}
}

// SetConflicts updates the potential conflicts gauge.
func (c *CorridorCollector) SetConflicts(n int) {
	if c == nil || c.FleetConflicts == nil {
		return
	}
	c.FleetConflicts.Set(float64(n))
}

// ObserveOptimization records one optimization run.
func (c *CorridorCollector) ObserveOptimization(outcome string, d time.Duration, executed, skipped int) {
	if c == nil {
		return
	}
	if c.OptimizationRuns != nil {
		c.OptimizationRuns.WithLabelValues(outcome).Inc()
	}
	if c.OptimizationDuration != nil && d > 0 {
		c.OptimizationDuration.Observe(d.Seconds())
	}
	if c.OptimizationActions != nil {
		if executed > 0 {
			c.OptimizationActions.WithLabelValues("executed").Add(float64(executed))
		}
		if skipped > 0 {
			c.OptimizationActions.WithLabelValues("skipped").Add(float64(skipped))
		}
	}
}

// IncEmergencyOverrides increments the override counter.
func (c *CorridorCollector) IncEmergencyOverrides() {
	if c == nil || c.EmergencyOverrides == nil {
		return
	}
	c.EmergencyOverrides.Inc()
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
