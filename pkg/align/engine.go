package align

import (
	"math"
	"sort"
	"sync"
)

// Engine runs alignments with one fixed configuration. It is safe for
// concurrent use; every run works on fresh state.
type Engine struct {
	cfg     Config
	aligner *Aligner
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := NewAligner(cfg.Thresholds())
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, aligner: a}, nil
}

// Config returns the validated configuration.
func (e *Engine) Config() Config { return e.cfg }

// Resolve converts a raw table using the engine's column strategies unless
// spec carries its own.
func (e *Engine) Resolve(raw RawTable, spec ColumnSpec) (Stream, error) {
	if len(spec.Strategies) == 0 {
		spec.Strategies = e.cfg.ValueColumnStrategies
	}
	return ResolveStream(raw, spec)
}

// Request is the input of one run. Streams not listed in Required are
// optional: they get a column but never remove rows.
type Request struct {
	Streams  map[string]Stream
	Required []string
	Mode     Mode
	// Window overrides the observed span in grid mode.
	Window *Window
}

// Outcome is the result of one run.
type Outcome struct {
	Table      *Table           `json:"table"`
	Coverage   CoverageReport   `json:"coverage"`
	Validation ValidationResult `json:"validation"`
}

// Run builds the table for req, then scores and validates it.
func (e *Engine) Run(req Request) (*Outcome, error) {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	var t *Table
	if mode == ModeJoin {
		t, err = e.Join(req.Streams, req.Required)
	} else {
		t, err = e.AlignGrid(req.Streams, req.Required, req.Window)
	}
	if err != nil {
		return nil, err
	}

	cov := Coverage(t)
	return &Outcome{
		Table:      t,
		Coverage:   cov,
		Validation: Validate(cov, e.cfg.Limits()),
	}, nil
}

// Join inner-joins the required streams on their common instants and
// left-joins every other stream on the same instants. No value is
// interpolated.
func (e *Engine) Join(streams map[string]Stream, required []string) (*Table, error) {
	ordered, err := orderStreams(streams, required)
	if err != nil {
		return nil, err
	}
	tol := e.cfg.TimestampToleranceSeconds
	common, err := CommonTimestamps(streams, required, tol, e.cfg.ToleranceMode)
	if err != nil {
		return nil, err
	}

	// Symmetric matching emits the earliest instant of a tuple, so a
	// stream's sample may sit up to tol away on either side.
	th := e.cfg.Thresholds()
	t := &Table{Mode: ModeJoin, Timestamps: common, Streams: make([]StreamColumn, len(ordered))}
	for i, st := range ordered {
		t.Streams[i] = st.column(joinColumn(st.Samples, common, tol, th))
	}
	return t, nil
}

// AlignGrid aligns every stream to the reference grid spanning window, or
// the observed span of all streams when window is nil. Streams are aligned
// concurrently and merged by position, so the table does not depend on
// scheduling.
func (e *Engine) AlignGrid(streams map[string]Stream, required []string, window *Window) (*Table, error) {
	ordered, err := orderStreams(streams, required)
	if err != nil {
		return nil, err
	}

	t := &Table{Mode: ModeGrid, Timestamps: []float64{}, Streams: make([]StreamColumn, len(ordered))}

	var w Window
	if window != nil {
		w = *window
	} else {
		var ok bool
		if w, ok = observedSpan(ordered); !ok {
			for i, st := range ordered {
				t.Streams[i] = st.column([]Result{})
			}
			return t, nil
		}
	}

	grid, err := BuildGrid(w.Start, w.End, e.cfg.NominalPeriodSeconds, e.cfg.MaxGridPoints)
	if err != nil {
		return nil, err
	}
	t.Timestamps = grid

	results := make([][]Result, len(ordered))
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup
	for i, st := range ordered {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, samples []Sample) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.aligner.Align(samples, grid)
		}(i, st.Samples)
	}
	wg.Wait()

	for i, st := range ordered {
		t.Streams[i] = st.column(results[i])
	}
	return t, nil
}

type orderedStream struct {
	Stream
	required bool
}

func (s orderedStream) column(results []Result) StreamColumn {
	return StreamColumn{
		Stream:   s.Name,
		Column:   s.Column(),
		Required: s.required,
		RawCount: len(s.Samples),
		Results:  results,
	}
}

// orderStreams lists the required streams in caller order followed by the
// optional ones sorted by name. Stream names default to their map key.
func orderStreams(streams map[string]Stream, required []string) ([]orderedStream, error) {
	if len(required) == 0 {
		return nil, invalidf("required signals cannot be empty")
	}

	isRequired := make(map[string]bool, len(required))
	out := make([]orderedStream, 0, len(streams))
	for _, name := range required {
		if isRequired[name] {
			return nil, invalidf("required signal %q listed twice", name)
		}
		s, ok := streams[name]
		if !ok {
			return nil, invalidf("required signal %q not found in streams", name)
		}
		isRequired[name] = true
		s.Name = name
		out = append(out, orderedStream{Stream: s, required: true})
	}

	optional := make([]string, 0, len(streams)-len(required))
	for name := range streams {
		if !isRequired[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		s := streams[name]
		s.Name = name
		out = append(out, orderedStream{Stream: s})
	}

	columns := make(map[string]string, len(out))
	for _, st := range out {
		col := st.Column()
		if col == TimestampColumn {
			return nil, invalidf("stream %q uses reserved column name %q", st.Name, col)
		}
		if prev, dup := columns[col]; dup {
			return nil, invalidf("streams %q and %q both map to column %q", prev, st.Name, col)
		}
		columns[col] = st.Name
	}
	return out, nil
}

// observedSpan returns the earliest and latest valid instant across all
// streams.
func observedSpan(streams []orderedStream) (Window, bool) {
	w := Window{Start: math.Inf(1), End: math.Inf(-1)}
	for _, st := range streams {
		first, last, ok := NewIndex(st.Samples).Span()
		if !ok {
			continue
		}
		w.Start = math.Min(w.Start, first)
		w.End = math.Max(w.End, last)
	}
	return w, finite(w.Start) && finite(w.End)
}
