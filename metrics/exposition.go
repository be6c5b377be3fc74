package metrics

import (
	"fmt"
	"io"
	"math"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// ContentType is the media type of the text exposition format written by Render.
const ContentType = string(expfmt.FmtText)

// Render writes every registered metric, followed by the families of any
// attached gatherers, in the Prometheus text exposition format.
//
// A metric with labels but no observed tuples is written as its HELP and
// TYPE lines only. Render can run while other goroutines update metrics.
//
// A gatherer family whose name was already written fails the render with
// ErrDuplicateMetricName rather than producing an unparseable exposition.
func (r *Registry) Render(w io.Writer) error {
	seen := make(map[string]struct{})
	for m, samples := range r.Collect() {
		seen[m.Name()] = struct{}{}
		mf, err := toFamily(m, samples)
		if err != nil {
			return err
		}
		if err := writeFamily(w, mf); err != nil {
			return fmt.Errorf("render %s: %w", m.Name(), err)
		}
	}

	for _, g := range r.attachedGatherers() {
		mfs, err := g.Gather()
		if err != nil {
			return fmt.Errorf("gather: %w", err)
		}
		for _, mf := range mfs {
			if _, dup := seen[mf.GetName()]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateMetricName, mf.GetName())
			}
			seen[mf.GetName()] = struct{}{}
			if err := writeFamily(w, mf); err != nil {
				return fmt.Errorf("render %s: %w", mf.GetName(), err)
			}
		}
	}
	return nil
}

func writeFamily(w io.Writer, mf *dto.MetricFamily) error {
	if len(mf.Metric) > 0 {
		_, err := expfmt.MetricFamilyToText(w, mf)
		return err
	}
	// expfmt refuses families without metrics; emit the header lines ourselves.
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n",
		mf.GetName(), escapeHelp(mf.GetHelp()),
		mf.GetName(), strings.ToLower(mf.GetType().String()))
	return err
}

func toFamily(m Metric, samples []Sample) (*dto.MetricFamily, error) {
	mf := &dto.MetricFamily{
		Name:   proto.String(m.Name()),
		Help:   proto.String(m.Help()),
		Metric: make([]*dto.Metric, 0, len(samples)),
	}
	switch m.Kind() {
	case KindCounter:
		mf.Type = dto.MetricType_COUNTER.Enum()
	case KindGauge:
		mf.Type = dto.MetricType_GAUGE.Enum()
	case KindHistogram:
		mf.Type = dto.MetricType_HISTOGRAM.Enum()
	default:
		return nil, fmt.Errorf("metric %s has unknown kind %q", m.Name(), m.Kind())
	}

	names := m.LabelNames()
	for _, s := range samples {
		dm := &dto.Metric{Label: labelPairs(names, s.LabelValues)}
		switch m.Kind() {
		case KindCounter:
			dm.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		case KindGauge:
			dm.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		case KindHistogram:
			h := &dto.Histogram{
				SampleCount: proto.Uint64(s.Count),
				SampleSum:   proto.Float64(s.Sum),
			}
			// expfmt derives the +Inf bucket from SampleCount.
			for _, b := range s.Buckets {
				if math.IsInf(b.UpperBound, 1) {
					continue
				}
				h.Bucket = append(h.Bucket, &dto.Bucket{
					UpperBound:      proto.Float64(b.UpperBound),
					CumulativeCount: proto.Uint64(b.Count),
				})
			}
			dm.Histogram = h
		}
		mf.Metric = append(mf.Metric, dm)
	}
	return mf, nil
}

func labelPairs(names, values []string) []*dto.LabelPair {
	if len(names) == 0 {
		return nil
	}
	pairs := make([]*dto.LabelPair, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		pairs = append(pairs, &dto.LabelPair{Name: proto.String(n), Value: proto.String(v)})
	}
	return pairs
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
