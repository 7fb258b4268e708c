package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	// OutcomeKey distinguishes the counters within one family instrument.
	OutcomeKey = attribute.Key("outcome")
	// BoundKey carries a latency bucket's upper bound in seconds.
	BoundKey = attribute.Key("le")

	auditDroppedName = "procureauth.audit.dropped"
)

type metricsSource interface {
	MetricsSnapshot() procureauth.MetricsSnapshot
	AuditDropped() uint64
}

// member is one engine counter inside a family instrument.
type member struct {
	id      procureauth.MetricID
	outcome metric.ObserveOption
}

type family struct {
	instrument metric.Int64ObservableCounter
	members    []member
}

type latency struct {
	id      procureauth.MetricID
	buckets metric.Int64ObservableGauge
	bounds  []metric.ObserveOption
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine counters as one observable counter per
// operation family (login, refresh, session, MFA enrollment, MFA
// verification, guard rejections) with an outcome attribute. Values are
// read from the engine on each collection, never pushed.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []family
	latencies    []latency
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *procureauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	byName := make(map[string]int, len(internaldefs.Families))
	for _, def := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create family counter %s: %w", def.Name, err)
		}
		byName[def.Name] = len(e.families)
		e.families = append(e.families, family{instrument: ins})
		observables = append(observables, ins)
	}
	for _, def := range internaldefs.CounterDefs {
		i, ok := byName[def.Family]
		if !ok {
			return nil, fmt.Errorf("counter %s: unknown family %q", def.Name, def.Family)
		}
		e.families[i].members = append(e.families[i].members, member{
			id:      def.ID,
			outcome: metric.WithAttributeSet(attribute.NewSet(OutcomeKey.String(def.Outcome))),
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		l := latency{id: def.ID}
		var err error
		if l.buckets, err = meter.Int64ObservableGauge(def.Family+".bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound.")); err != nil {
			return nil, fmt.Errorf("create latency buckets %s: %w", def.Family, err)
		}
		if l.count, err = meter.Int64ObservableGauge(def.Family+".count",
			metric.WithDescription(def.Help+" Total samples.")); err != nil {
			return nil, fmt.Errorf("create latency count %s: %w", def.Family, err)
		}
		for _, bound := range internaldefs.HistogramBounds {
			l.bounds = append(l.bounds, metric.WithAttributeSet(attribute.NewSet(BoundKey.String(bound))))
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count)
	}

	auditDropped, err := meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher queue was full."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, m := range f.members {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[m.id]), m.outcome)
		}
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, bound := range l.bounds {
			o.ObserveInt64(l.buckets, int64(cumulative[i]), bound)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
