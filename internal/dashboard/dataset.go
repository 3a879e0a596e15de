package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/dashloom/internal/logging"
	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

// Recorder observes refreshes, e.g. to export metrics.
type Recorder interface {
	ObserveRefresh(dataset, outcome string, rows int, elapsed time.Duration)
}

// Refresh outcomes passed to a Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Options controls loading and refresh behavior.
type Options struct {
	// AssetsDir is searched for optional images.
	AssetsDir string
	// TopN bounds "top" panels.
	TopN int
	// HistogramBins is the bin count for histograms.
	HistogramBins int
	// MaxRows limits rows read from the source; 0 means unlimited.
	MaxRows  int
	Logger   logrus.FieldLogger
	Recorder Recorder
}

// DefaultOptions returns the settings the dashboards were designed around.
func DefaultOptions() Options {
	return Options{
		AssetsDir:     ".",
		TopN:          10,
		HistogramBins: 20,
		Logger:        logging.Discard(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AssetsDir == "" {
		o.AssetsDir = d.AssetsDir
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = d.HistogramBins
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Dataset is a loaded, prepared source bound to its definition. It is
// read-only after Open and safe for concurrent refreshes.
type Dataset struct {
	def        *Definition
	source     string
	table      *table.Table
	violations pipeline.Violations
	truncated  bool
	opts       Options
}

// Open loads path (CSV, TSV or XLSX by extension), checks the required
// columns, then normalizes and derives. An empty path selects the built-in
// sample. Records whose derived fields fail are kept and reported through
// Violations.
func Open(def *Definition, path string, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()
	var (
		raw *table.Raw
		err error
	)
	switch {
	case path != "":
		raw, err = table.Load(path, table.Options{MaxRows: opts.MaxRows})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", def.Name, err)
		}
	case def.Sample != nil:
		raw = def.Sample()
	default:
		return nil, fmt.Errorf("%w for %s (expected %s)", ErrNoSource, def.Name, def.Source)
	}
	if err := raw.Require(def.Required...); err != nil {
		return nil, fmt.Errorf("%s: %w", raw.Name, err)
	}
	prep, err := pipeline.Prepare(raw, def.Normalization, def.Derived)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", def.Name, err)
	}

	log := opts.Logger.WithFields(logrus.Fields{"dataset": def.Name, "source": raw.Name})
	if raw.Truncated() {
		log.Warnf("read %d of %d rows (max_rows)", len(raw.Rows), raw.Total)
	}
	if raw.Overlong > 0 {
		log.WithField("overlong", raw.Overlong).Warnf("%d row(s) had more cells than the header; extra cells dropped", raw.Overlong)
	}
	if n := len(prep.Violations); n > 0 {
		log.WithField("violations", n).Warn("some records could not be enriched")
	}
	log.WithField("rows", prep.Table.Len()).Debug("dataset loaded")

	return &Dataset{
		def:        def,
		source:     raw.Name,
		table:      prep.Table,
		violations: prep.Violations,
		truncated:  raw.Truncated(),
		opts:       opts,
	}, nil
}

// Definition returns the dataset's definition.
func (d *Dataset) Definition() *Definition { return d.def }

// Source names the file (or sample) the data came from.
func (d *Dataset) Source() string { return d.source }

// Table returns the prepared, unfiltered table.
func (d *Dataset) Table() *table.Table { return d.table }

// Violations lists records whose derived fields could not be computed.
func (d *Dataset) Violations() pipeline.Violations { return d.violations }

// View applies the selection and returns the filtered table.
func (d *Dataset) View(sel pipeline.Selection) (*table.Table, error) {
	return pipeline.Run(d.table, d.def.Filters, sel)
}

// Refresh runs one full pass for sel: build the predicate, filter, aggregate
// and assemble a Report. Nothing on the Dataset changes.
func (d *Dataset) Refresh(ctx context.Context, sel pipeline.Selection) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	id := uuid.NewString()
	log := d.opts.Logger.WithFields(logrus.Fields{"dataset": d.def.Name, "refresh_id": id})

	view, err := d.View(sel)
	if err != nil {
		d.observe(OutcomeRejected, 0, start)
		log.WithError(err).Warn("refresh rejected")
		return nil, err
	}

	rep := &Report{
		ID:          id,
		Dataset:     d.def.Name,
		Title:       d.def.Title,
		Source:      d.source,
		GeneratedAt: start.UTC(),
		Selection:   d.selectionMap(sel),
		Total:       d.table.Len(),
		Rows:        view.Len(),
		Metrics:     []Metric{},
		Panels:      []Panel{},
	}
	frame := &Frame{Full: d.table, View: view, Selection: sel, Options: d.opts, report: rep}
	if d.def.Build != nil {
		if err := d.def.Build(frame); err != nil {
			d.observe(OutcomeFailed, view.Len(), start)
			log.WithError(err).Error("refresh failed")
			return nil, fmt.Errorf("build %s: %w", d.def.Name, err)
		}
	}
	if n := len(d.violations); n > 0 {
		frame.Notice(Warning, "%d record(s) could not be enriched; first: %v", n, d.violations[0])
	}
	if d.truncated {
		frame.Notice(Info, "Source truncated by max_rows; showing the first %d rows", d.table.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.observe(OutcomeOK, view.Len(), start)
	log.WithFields(logrus.Fields{
		"rows":     rep.Total,
		"filtered": rep.Rows,
		"duration": time.Since(start).String(),
	}).Info("refresh")
	return rep, nil
}

func (d *Dataset) observe(outcome string, rows int, start time.Time) {
	if d.opts.Recorder != nil {
		d.opts.Recorder.ObserveRefresh(d.def.Name, outcome, rows, time.Since(start))
	}
}

// selectionMap lists every declared filter with its effective value.
func (d *Dataset) selectionMap(sel pipeline.Selection) map[string]string {
	out := make(map[string]string, len(d.def.Filters))
	for _, f := range d.def.Filters {
		out[f.Name] = sel.Get(f.Name)
	}
	return out
}

// FilterOption is a filter with the choices the current data offers.
type FilterOption struct {
	pipeline.Filter `yaml:",inline"`
	// Choices lists All followed by the sorted distinct values.
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	// Min and Max bound a threshold slider.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Options returns the choices for each declared filter, computed from the
// full prepared table.
func (d *Dataset) Options() ([]FilterOption, error) {
	out := make([]FilterOption, 0, len(d.def.Filters))
	for _, f := range d.def.Filters {
		opt := FilterOption{Filter: f}
		switch f.Kind {
		case pipeline.AtLeast:
			lo, hi, ok, err := pipeline.Range(d.table, f.Columns[0])
			if err != nil {
				return nil, err
			}
			if ok {
				lo = min(lo, 0)
				opt.Min, opt.Max = &lo, &hi
			}
		default:
			cols := f.Columns[:1]
			if f.Kind == pipeline.Membership {
				cols = f.Columns
			}
			if override, ok := d.def.Choices[f.Name]; ok {
				cols = override
			}
			vals, err := pipeline.Distinct(d.table, cols...)
			if err != nil {
				return nil, err
			}
			opt.Choices = append([]string{pipeline.All}, vals...)
		}
		out = append(out, opt)
	}
	return out, nil
}
