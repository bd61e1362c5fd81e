package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/ecovision/internal/climate"
	"github.com/i474232898/ecovision/internal/filter"
	"github.com/i474232898/ecovision/internal/gateway"
	"github.com/i474232898/ecovision/internal/normalize"
	"github.com/i474232898/ecovision/internal/store"
)

var (
	// ErrInvalidFilters is returned when a staged edit fails validation.
	ErrInvalidFilters = errors.New("invalid filters")
	// ErrUnknownCommand is returned by Dispatch for unsupported commands.
	ErrUnknownCommand = errors.New("unknown command")
)

// Gateway is the subset of the API gateway the orchestrator depends on.
type Gateway interface {
	Fetch(ctx context.Context, mode climate.AnalysisType, query map[string]string) (gateway.Result, error)
	Locations(ctx context.Context) ([]climate.Location, error)
	Metrics(ctx context.Context) ([]climate.Metric, error)
}

// View is everything a renderer needs, captured at one point in time.
type View struct {
	Locations []climate.Location    `json:"locations"`
	Metrics   []climate.Metric      `json:"metrics"`
	Filters   filter.State          `json:"filters"`
	Series    []climate.Observation `json:"seriesData"`
	Trend     climate.TrendResult   `json:"trendData"`
	Busy      bool                  `json:"busy"`
	LastError string                `json:"lastError,omitempty"`
}

// Orchestrator owns the filter state, the busy flag and the result slots.
// Renderers talk to it through commands and observe it through Subscribe.
type Orchestrator struct {
	gw    Gateway
	log   zerolog.Logger
	slots *store.Slots

	mu        sync.Mutex
	state     filter.State
	applied   filter.State // snapshot taken by the latest Apply
	hasApply  bool
	locations []climate.Location
	metrics   []climate.Metric
	inflight  int
	issued    uint64
	settled   uint64 // newest sequence whose outcome set lastErr
	lastErr   string
	started   bool

	// pubMu orders deliveries: a view is built and delivered under it, so
	// subscribers never receive an older view after a newer one.
	pubMu   sync.Mutex
	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(View)
}

// New creates an Orchestrator with default filters and empty slots.
func New(gw Gateway, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		gw:        gw,
		log:       log.With().Str("component", "orchestrator").Logger(),
		slots:     store.NewSlots(),
		state:     filter.Default(),
		locations: []climate.Location{},
		metrics:   []climate.Metric{},
		subs:      make(map[int]func(View)),
	}
}

// Start loads the reference lists and performs the initial apply. The three
// requests run concurrently and independently; a failure in one does not
// stop the others. Start runs at most once; later calls return nil.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	var g errgroup.Group

	g.Go(func() error {
		locs, err := o.gw.Locations(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("failed to load locations")
			return fmt.Errorf("load locations: %w", err)
		}
		o.mu.Lock()
		o.locations = locs
		o.mu.Unlock()
		o.publish()
		return nil
	})

	g.Go(func() error {
		metrics, err := o.gw.Metrics(ctx)
		if err != nil {
			o.log.Error().Err(err).Msg("failed to load metrics")
			return fmt.Errorf("load metrics: %w", err)
		}
		o.mu.Lock()
		o.metrics = metrics
		o.mu.Unlock()
		o.publish()
		return nil
	})

	g.Go(func() error {
		if err := o.Apply(ctx); err != nil {
			return fmt.Errorf("initial apply: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Command is a request from a renderer.
type Command interface {
	command()
}

// ChangeFilters stages a filter edit without fetching.
type ChangeFilters struct {
	Patch filter.Patch
}

// ApplyFilters fetches the analysis selected by the staged filters.
type ApplyFilters struct{}

// RefreshFilters fetches again the filters of the latest apply. Staged but
// unapplied edits are not sent.
type RefreshFilters struct{}

func (ChangeFilters) command()  {}
func (ApplyFilters) command()   {}
func (RefreshFilters) command() {}

// Dispatch reduces a command into the orchestrator state.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case ChangeFilters:
		return o.Stage(c.Patch)
	case ApplyFilters:
		return o.Apply(ctx)
	case RefreshFilters:
		return o.Refresh(ctx)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// Stage applies p to the filter state. No request is made.
func (o *Orchestrator) Stage(p filter.Patch) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}
	if p.Empty() {
		return nil
	}

	o.mu.Lock()
	o.state = o.state.Apply(p)
	o.mu.Unlock()

	o.publish()
	return nil
}

// Apply fetches the analysis for a snapshot of the current filters and
// stores the result in the slot matching the snapshot's mode. On failure the
// slots keep their previous content. Busy is cleared when the call settles,
// whatever the outcome.
//
// Each call takes a sequence number; a result older than the one already
// held by its slot is dropped.
func (o *Orchestrator) Apply(ctx context.Context) error {
	o.mu.Lock()
	snapshot := o.state
	o.applied = snapshot
	o.hasApply = true
	o.mu.Unlock()

	return o.fetch(ctx, snapshot)
}

// Refresh repeats the latest apply with the filters it used. It does nothing
// before the first apply.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	snapshot, ok := o.applied, o.hasApply
	o.mu.Unlock()

	if !ok {
		o.log.Debug().Msg("nothing applied yet; skipping refresh")
		return nil
	}
	return o.fetch(ctx, snapshot)
}

func (o *Orchestrator) fetch(ctx context.Context, snapshot filter.State) error {
	o.mu.Lock()
	o.issued++
	seq := o.issued
	o.inflight++
	o.mu.Unlock()
	o.publish()

	defer func() {
		o.mu.Lock()
		o.inflight--
		o.mu.Unlock()
		o.publish()
	}()

	log := o.log.With().Uint64("seq", seq).Str("mode", string(snapshot.AnalysisType)).Logger()
	query := filter.BuildQuery(snapshot)

	res, err := o.gw.Fetch(ctx, snapshot.AnalysisType, query)
	if err != nil {
		log.Error().Err(err).Int("status", gateway.StatusCode(err)).Interface("query", query).
			Msg("analysis fetch failed; keeping current data")
		o.settle(seq, err)
		return err
	}

	out, err := normalize.Normalize(res.Mode, res.Payload)
	if err != nil {
		log.Error().Err(err).Msg("cannot normalize analysis response")
		o.settle(seq, err)
		return err
	}
	if out.Shape != nil {
		log.Warn().Err(out.Shape).Str("fallback", out.Fallback.String()).Str("request_id", res.RequestID).
			Msg("response missing expected data; applying fallback")
	}

	var stored bool
	switch out.Slot() {
	case normalize.SlotSeries:
		stored = o.slots.PutSeries(seq, out.Series)
	case normalize.SlotTrend:
		stored = o.slots.PutTrend(seq, out.Trend)
	}

	switch {
	case stored:
		log.Debug().Str("slot", out.Slot().String()).Int("records", len(out.Series)).Msg("slot updated")
	case out.Slot() == normalize.SlotTrend && out.Trend == nil:
		log.Debug().Msg("trend slot left untouched")
	default:
		log.Info().Str("slot", out.Slot().String()).Msg("discarding stale response")
	}

	o.settle(seq, nil)
	return nil
}

// settle records the outcome of apply seq for the error banner, unless a
// newer apply has already settled.
func (o *Orchestrator) settle(seq uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if seq < o.settled {
		return
	}
	o.settled = seq
	if err != nil {
		o.lastErr = err.Error()
	} else {
		o.lastErr = ""
	}
}

// View returns the current state.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	v := View{
		Locations: append([]climate.Location(nil), o.locations...),
		Metrics:   append([]climate.Metric(nil), o.metrics...),
		Filters:   o.state,
		Busy:      o.inflight > 0,
		LastError: o.lastErr,
	}
	o.mu.Unlock()

	if v.Locations == nil {
		v.Locations = []climate.Location{}
	}
	if v.Metrics == nil {
		v.Metrics = []climate.Metric{}
	}
	v.Series = o.slots.Series()
	v.Trend = o.slots.Trend()
	return v
}

// Filters returns the staged filter state.
func (o *Orchestrator) Filters() filter.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether an apply is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight > 0
}

// Subscribe registers fn to receive a fresh View after every state change.
// fn is called synchronously from the goroutine that made the change and
// must not block or dispatch commands. Views reach subscribers in the order
// they were built, so the last one delivered reflects the latest state.
// The returned function removes the subscription.
func (o *Orchestrator) Subscribe(fn func(View)) (unsubscribe func()) {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.subMu.Unlock()

	return func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

func (o *Orchestrator) publish() {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	o.subMu.Lock()
	if len(o.subs) == 0 {
		o.subMu.Unlock()
		return
	}
	fns := make([]func(View), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.Unlock()

	v := o.View()
	for _, fn := range fns {
		fn(v)
	}
}
