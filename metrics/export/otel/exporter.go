package otel

import (
	"context"
	"errors"
	"fmt"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/bloodlink/donorauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Session gauge names. The state gauge reports 1 for the current state and 0
// for the others, keyed by the "state" attribute.
const (
	SessionStateName   = "donorauth_session_state"
	SessionLoadingName = "donorauth_session_loading"
	SessionStaleName   = "donorauth_session_stale"
)

var sessionStates = []donorAuth.State{
	donorAuth.StateUnknown,
	donorAuth.StateAuthenticated,
	donorAuth.StateAnonymous,
}

// source is what the exporter reads at every collection. *donorAuth.Controller
// satisfies it.
type source interface {
	MetricsSnapshot() donorAuth.MetricsSnapshot
	AuditDropped() uint64
	Current() donorAuth.Snapshot
}

type latencyInstruments struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []attribute.Set
}

// OTelExporter publishes controller counters, the backend latency histogram
// and the live session state as observable instruments. Close unregisters
// the collection callback.
type OTelExporter struct {
	src          source
	registration metric.Registration

	counters     map[donorAuth.MetricID]metric.Int64ObservableCounter
	latency      map[donorAuth.MetricID]latencyInstruments
	auditDropped metric.Int64ObservableCounter

	state   metric.Int64ObservableGauge
	loading metric.Int64ObservableGauge
	stale   metric.Int64ObservableGauge
	byState []attribute.Set
}

// NewOTelExporter registers instruments on meter that read from c at every
// collection.
func NewOTelExporter(meter metric.Meter, c *donorAuth.Controller) (*OTelExporter, error) {
	if c == nil {
		return nil, ErrNilSource
	}
	return newExporter(meter, c)
}

// NewOTelExporterFromSource is NewOTelExporter for any value exposing the
// same read methods as a controller.
func NewOTelExporterFromSource(meter metric.Meter, src source) (*OTelExporter, error) {
	return newExporter(meter, src)
}

func newExporter(meter metric.Meter, src source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if src == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		src:      src,
		counters: make(map[donorAuth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		latency:  make(map[donorAuth.MetricID]latencyInstruments, len(internaldefs.HistogramDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		li, err := newLatencyInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		e.latency[def.ID] = li
		observables = append(observables, li.buckets, li.count)
	}

	var err error
	if e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp)); err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	if e.state, err = meter.Int64ObservableGauge(SessionStateName,
		metric.WithDescription("1 for the current session state, 0 otherwise.")); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", SessionStateName, err)
	}
	if e.loading, err = meter.Int64ObservableGauge(SessionLoadingName,
		metric.WithDescription("1 while startup reconciliation is pending.")); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", SessionLoadingName, err)
	}
	if e.stale, err = meter.Int64ObservableGauge(SessionStaleName,
		metric.WithDescription("1 when the held profile could not be re-read.")); err != nil {
		return nil, fmt.Errorf("gauge %s: %w", SessionStaleName, err)
	}
	observables = append(observables, e.auditDropped, e.state, e.loading, e.stale)

	for _, s := range sessionStates {
		e.byState = append(e.byState, attribute.NewSet(attribute.String("state", s.String())))
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newLatencyInstruments(meter metric.Meter, def internaldefs.HistogramDef) (latencyInstruments, error) {
	var li latencyInstruments
	var err error
	if li.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound.")); err != nil {
		return li, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
	}
	if li.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples.")); err != nil {
		return li, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}
	for _, le := range internaldefs.HistogramBounds {
		li.bounds = append(li.bounds, attribute.NewSet(attribute.String("le", le)))
	}
	return li, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.src.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}

	for id, li := range e.latency {
		raw, ok := snapshot.Histograms[id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, n := range cumulative {
			o.ObserveInt64(li.buckets, int64(n), metric.WithAttributeSet(li.bounds[i]))
		}
		o.ObserveInt64(li.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.src.AuditDropped()))

	session := e.src.Current()
	for i, s := range sessionStates {
		o.ObserveInt64(e.state, flag(session.State == s), metric.WithAttributeSet(e.byState[i]))
	}
	o.ObserveInt64(e.loading, flag(session.Loading))
	o.ObserveInt64(e.stale, flag(session.Stale))
	return nil
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
