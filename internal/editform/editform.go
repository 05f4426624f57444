// Package editform runs the edit lifecycle of one entity: fetch, populate,
// edit, validate, submit, notify and navigate.
//
// A Form is safe for concurrent use. The fetch and the update run without
// holding the form's lock, so edits stay possible while either is pending;
// a populate that lands after an edit overwrites it.
package editform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrodata/agroadmin/internal/form"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/store"
	"github.com/agrodata/agroadmin/internal/validate"
)

// DefaultNavigationDelay is how long a success message stays up before navigating.
const DefaultNavigationDelay = 2500 * time.Millisecond

var (
	ErrNotReady       = errors.New("form is not ready")
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	ErrUnknownField   = errors.New("unknown field")
	ErrReadOnlyField  = errors.New("field is read-only for this user")
	ErrClosed         = errors.New("form is closed")
	// ErrDiscarded is reported by Initialize when a newer load or Close
	// superseded the fetch.
	ErrDiscarded = errors.New("fetch result discarded")
)

// Status is the lifecycle state of a form.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusLoadFailed Status = "load_failed"
	StatusClosed     Status = "closed"
)

// Outcome of a submission as shown to the user.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Glyph is the animation shown next to a notification.
type Glyph string

const (
	GlyphSuccess Glyph = "success"
	GlyphFail    Glyph = "fail"
)

// Notification is a user-visible submission outcome.
type Notification struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Glyph   Glyph   `json:"glyph"`
	Status  int     `json:"status,omitempty"`
}

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Show(n Notification)
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
}

// Recorder observes the lifecycle, e.g. for metrics.
type Recorder interface {
	Loaded(form string, err error)
	Blocked(form string)
	Submitted(form string, status int, ok bool)
}

// Timer is a cancellable scheduled call.
type Timer interface {
	Stop() bool
}

// Config wires a Form to its collaborators.
type Config struct {
	Definition *formdef.Definition
	Store      store.EntityStore
	// Options loads catalogs for option fields. Nil means no catalogs.
	Options   store.OptionSource
	Notifier  Notifier
	Navigator Navigator
	Actor     navigation.Actor
	Logger    *zap.Logger
	Recorder  Recorder
	// NavigationDelay defaults to DefaultNavigationDelay.
	NavigationDelay time.Duration
	// AfterFunc schedules navigation; defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, fn func()) Timer
}

// SubmitResult describes what Submit did.
type SubmitResult struct {
	// Blocked is true when validation failed and the store was not called.
	Blocked bool            `json:"blocked"`
	Errors  validate.Result `json:"errors,omitempty"`
	Status  int             `json:"status,omitempty"`
	OK      bool            `json:"ok"`
	// Destination is the scheduled navigation target of a successful submit.
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Snapshot is a read-only view of the form.
type Snapshot struct {
	Form        string            `json:"form"`
	EntityID    string            `json:"entity_id"`
	Status      Status            `json:"status"`
	Values      map[string]any    `json:"values"`
	Touched     map[string]bool   `json:"touched"`
	Errors      map[string]string `json:"errors"`
	AllErrors   map[string]string `json:"all_errors"`
	Submitting  bool              `json:"submitting"`
	LoadError   string            `json:"load_error,omitempty"`
	Destination string            `json:"destination,omitempty"`
}

// Form is one edit session of one entity.
type Form struct {
	cfg Config
	def *formdef.Definition
	log *zap.Logger

	mu         sync.Mutex
	state      form.State
	status     Status
	loadErr    error
	entityID   string
	original   store.Document
	catalog    form.Catalog
	generation uint64
	submitting bool
	cancel     context.CancelFunc
	nav        Timer
	navTarget  string
	closed     bool
}

// New builds a form in the loading state with every field at its default.
func New(cfg Config) *Form {
	if cfg.NavigationDelay <= 0 {
		cfg.NavigationDelay = DefaultNavigationDelay
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Form{
		cfg:     cfg,
		def:     cfg.Definition,
		log:     cfg.Logger.With(zap.String("form", cfg.Definition.Name)),
		state:   form.NewState(cfg.Definition.Shape),
		status:  StatusLoading,
		catalog: form.Catalog{},
	}
}

// Initialize fetches entity id and its option catalogs in the background and
// populates the form when both resolve. The returned channel yields the load
// error (nil on success) and is then closed. Calling Initialize again retries
// and supersedes any fetch still in flight.
func (f *Form) Initialize(ctx context.Context, id string) <-chan error {
	done := make(chan error, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		done <- ErrClosed
		close(done)
		return done
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	gen := f.generation
	f.entityID = id
	f.status = StatusLoading
	f.loadErr = nil
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		doc, cat, err := f.fetch(fetchCtx, id)
		done <- f.finishLoad(gen, doc, cat, err)
	}()
	return done
}

// Load is Initialize followed by a wait for the result.
func (f *Form) Load(ctx context.Context, id string) error {
	return <-f.Initialize(ctx, id)
}

func (f *Form) fetch(ctx context.Context, id string) (store.Document, form.Catalog, error) {
	g, gctx := errgroup.WithContext(ctx)

	var doc store.Document
	g.Go(func() error {
		d, err := f.cfg.Store.GetByID(gctx, id)
		if err != nil {
			return fmt.Errorf("fetching %s %s: %w", f.def.Collection, id, err)
		}
		doc = d
		return nil
	})

	var collections []string
	if f.cfg.Options != nil {
		collections = f.def.Shape.OptionCollections()
	}
	lists := make([][]form.Option, len(collections))
	for i, c := range collections {
		g.Go(func() error {
			opts, err := f.cfg.Options.Options(gctx, c)
			if err != nil {
				return fmt.Errorf("loading %s options: %w", c, err)
			}
			lists[i] = opts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	cat := form.Catalog{}
	for i, c := range collections {
		cat[c] = lists[i]
	}
	return doc, cat, nil
}

func (f *Form) finishLoad(gen uint64, doc store.Document, cat form.Catalog, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.generation {
		f.log.Debug("discarding stale fetch", zap.Uint64("generation", gen))
		return ErrDiscarded
	}
	f.cancel = nil
	f.cfg.Recorder.Loaded(f.def.Name, err)
	if err != nil {
		f.status = StatusLoadFailed
		f.loadErr = err
		f.log.Warn("entity load failed", zap.String("entity_id", f.entityID), zap.Error(err))
		return err
	}
	f.original = doc
	f.catalog = cat
	f.state = form.Reduce(f.def.Shape, f.state, form.Populate{Document: doc, Catalog: cat})
	f.revalidate()
	f.status = StatusReady
	return nil
}

// Validate is the pure validation of state against the form's rules.
func (f *Form) Validate(state form.State) validate.Result {
	return f.def.Rules.Validate(state.Values)
}

// check is Validate plus catalog membership: a multi-select choice that
// resolves to no option fails its path. Caller holds f.mu.
func (f *Form) check() validate.Result {
	errs := f.Validate(f.state)
	for path := range form.UnknownOptions(f.def.Shape, f.state, f.catalog) {
		if _, failed := errs[path]; failed {
			continue
		}
		if errs == nil {
			errs = validate.Result{}
		}
		errs[path] = f.def.InvalidMessage(path)
	}
	return errs
}

// revalidate refreshes the error map. Caller holds f.mu.
func (f *Form) revalidate() {
	f.state = form.Reduce(f.def.Shape, f.state, form.SetErrors{Errors: f.check()})
}

// SetField stores value at path, marks it touched and re-validates.
func (f *Form) SetField(path string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.def.Shape.Has(path) {
		return fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	if f.def.IsLocked(path, f.cfg.Actor.Role) {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, path)
	}
	f.state = form.Reduce(f.def.Shape, f.state, form.SetField{Path: path, Value: value})
	f.revalidate()
	return nil
}

// Submit validates and, when valid, sends the update. Validation failures
// make every error visible and never reach the store. A successful update
// notifies and schedules navigation; a failed one notifies with the status
// and keeps the entered values.
func (f *Form) Submit(ctx context.Context) (SubmitResult, error) {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return SubmitResult{}, ErrClosed
	case f.status != StatusReady:
		f.mu.Unlock()
		return SubmitResult{}, ErrNotReady
	case f.submitting:
		f.mu.Unlock()
		return SubmitResult{}, ErrSubmitInFlight
	}

	errs := f.check()
	f.state = form.Reduce(f.def.Shape, f.state, form.SetErrors{Errors: errs})
	if !errs.Valid() {
		f.state = form.Reduce(f.def.Shape, f.state, form.MarkAllTouched{})
		f.mu.Unlock()
		f.cfg.Recorder.Blocked(f.def.Name)
		return SubmitResult{Blocked: true, Errors: errs}, nil
	}

	payload := form.Payload(f.def.Shape, f.state, f.catalog)
	if f.def.StampActor != "" {
		payload[f.def.StampActor] = f.cfg.Actor.ID
	}
	id := f.entityID
	f.submitting = true
	f.mu.Unlock()

	res, err := f.cfg.Store.Update(ctx, id, store.Document(payload), f.cfg.Actor.ID)
	ok := err == nil && res.OK()
	f.cfg.Recorder.Submitted(f.def.Name, res.Status, ok)

	f.mu.Lock()
	f.submitting = false
	if !ok {
		detail := strconv.Itoa(res.Status)
		if err != nil {
			detail = err.Error()
		}
		f.mu.Unlock()
		f.log.Warn("update failed", zap.String("entity_id", id), zap.Int("status", res.Status), zap.Error(err))
		f.notify(Notification{
			Outcome: OutcomeFailure,
			Message: f.def.FailureText(detail),
			Glyph:   GlyphFail,
			Status:  res.Status,
		})
		out := SubmitResult{Status: res.Status}
		if err != nil {
			out.Error = err.Error()
		}
		return out, nil
	}

	if res.Data != nil {
		f.original = res.Data
	} else {
		f.original = store.Document(payload)
	}
	dest := f.def.Routes.Destination(f.cfg.Actor)
	if !f.closed {
		f.scheduleNavigation(dest)
	}
	f.mu.Unlock()

	f.log.Info("entity updated", zap.String("entity_id", id), zap.Int("status", res.Status))
	f.notify(Notification{
		Outcome: OutcomeSuccess,
		Message: f.def.SuccessMessage,
		Glyph:   GlyphSuccess,
		Status:  res.Status,
	})
	return SubmitResult{Status: res.Status, OK: true, Destination: dest}, nil
}

// scheduleNavigation arms the delayed redirect. Caller holds f.mu.
func (f *Form) scheduleNavigation(dest string) {
	if f.nav != nil {
		f.nav.Stop()
	}
	f.navTarget = dest
	f.nav = f.cfg.AfterFunc(f.cfg.NavigationDelay, func() {
		f.mu.Lock()
		closed := f.closed
		f.nav = nil
		f.mu.Unlock()
		if !closed && f.cfg.Navigator != nil {
			f.cfg.Navigator.Navigate(dest)
		}
	})
}

func (f *Form) notify(n Notification) {
	if f.cfg.Notifier != nil {
		f.cfg.Notifier.Show(n)
	}
}

// State returns a copy of the working state.
func (f *Form) State() form.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// Original returns the last document known to be stored remotely.
func (f *Form) Original() store.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.original.Clone()
}

// Status returns the lifecycle state.
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Snapshot returns the current view of the form.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state.Clone()
	all := map[string]string{}
	for p, msg := range st.Errors {
		if msg != "" {
			all[p] = msg
		}
	}
	s := Snapshot{
		Form:        f.def.Name,
		EntityID:    f.entityID,
		Status:      f.status,
		Values:      st.Values,
		Touched:     st.Touched,
		Errors:      st.VisibleErrors(),
		AllErrors:   all,
		Submitting:  f.submitting,
		Destination: f.navTarget,
	}
	if f.loadErr != nil {
		s.LoadError = f.loadErr.Error()
	}
	return s
}

// Close ends the session: an in-flight fetch is cancelled and ignored, and
// a pending navigation is dropped.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.status = StatusClosed
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.nav != nil {
		f.nav.Stop()
		f.nav = nil
	}
}

type nopRecorder struct{}

func (nopRecorder) Loaded(string, error)        {}
func (nopRecorder) Blocked(string)              {}
func (nopRecorder) Submitted(string, int, bool) {}
