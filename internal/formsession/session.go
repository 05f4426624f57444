// Package formsession manages the lifecycle of edit-form sessions: each
// session owns one editform.Form, its acting user and the feed its
// notifications and navigation commands are delivered through.
package formsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/editform"
	"github.com/agrodata/agroadmin/internal/event"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/store"
)

// Session defaults: 24 h max age, 30 min idle.
const (
	DefaultMaxAge      = 24 * time.Hour
	DefaultIdleTimeout = 30 * time.Minute
)

var (
	ErrUnknownForm     = errors.New("unknown form")
	ErrSessionNotFound = errors.New("session not found")
)

// Session holds one edit form and its feed.
type Session struct {
	ID        string           `json:"id"`
	FormName  string           `json:"form"`
	EntityID  string           `json:"entity_id"`
	Actor     navigation.Actor `json:"actor"`
	CreatedAt time.Time        `json:"created_at"`

	form *editform.Form
	feed *Feed

	mu         sync.Mutex
	lastActive time.Time
	load       *loadResult
}

type loadResult struct {
	done chan struct{}
	err  error
}

// Form returns the session's edit form.
func (s *Session) Form() *editform.Form { return s.form }

// Feed returns the session's notification feed.
func (s *Session) Feed() *Feed { return s.feed }

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActiveAt returns the last activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	return time.Since(s.LastActiveAt()) > timeout
}

// Reload fetches the entity again, e.g. after a load failure.
func (s *Session) Reload() {
	s.Touch()
	s.startLoad()
}

func (s *Session) startLoad() {
	res := &loadResult{done: make(chan struct{})}
	ch := s.form.Initialize(context.Background(), s.EntityID)
	s.mu.Lock()
	s.load = res
	s.mu.Unlock()
	go func() {
		res.err = <-ch
		close(res.done)
	}()
}

// Wait blocks until the latest load finishes and returns its error.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	res := s.load
	s.mu.Unlock()
	if res == nil {
		return nil
	}
	select {
	case <-res.done:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) close() {
	s.form.Close()
	s.feed.close()
}

// StoreProvider returns the EntityStore of a collection.
type StoreProvider func(collection string) store.EntityStore

// Config wires a Manager.
type Config struct {
	Forms   *formdef.Registry
	Stores  StoreProvider
	Options store.OptionSource
	// Recorder observes every form, e.g. the metrics collector.
	Recorder editform.Recorder
	// Events, when set, records a form_submitted event per update call.
	Events          event.Recorder
	Logger          *zap.Logger
	MaxAge          time.Duration
	IdleTimeout     time.Duration
	NavigationDelay time.Duration
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		log:      cfg.Logger.Named("formsession"),
		sessions: make(map[string]*Session),
	}
}

// Create opens a session editing entityID with the named form and starts
// loading it in the background.
func (m *Manager) Create(formName, entityID string, actor navigation.Actor) (*Session, error) {
	def, ok := m.cfg.Forms.Get(formName)
	if !ok {
		return nil, ErrUnknownForm
	}
	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		FormName:   formName,
		EntityID:   entityID,
		Actor:      actor,
		CreatedAt:  now,
		lastActive: now,
		feed:       newFeed(),
	}
	log := m.log.With(zap.String("session", s.ID), zap.String("actor", actor.ID))
	s.form = editform.New(editform.Config{
		Definition: def,
		Store:      m.cfg.Stores(def.Collection),
		Options:    m.cfg.Options,
		Notifier:   s.feed,
		Navigator:  s.feed,
		Actor:      actor,
		Logger:     log,
		Recorder: &sessionRecorder{
			base:    m.cfg.Recorder,
			events:  m.cfg.Events,
			log:     log,
			session: s.ID,
			entity:  entityID,
			coll:    def.Collection,
			actor:   actor.ID,
		},
		NavigationDelay: m.cfg.NavigationDelay,
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.startLoad()
	log.Info("session opened", zap.String("form", formName), zap.String("entity_id", entityID))
	return s, nil
}

// Get retrieves a live session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.IsExpired(m.cfg.MaxAge) || s.IsIdle(m.cfg.IdleTimeout) {
		m.Remove(id)
		return nil, ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Remove closes and deletes a session.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.IsExpired(m.cfg.MaxAge) || s.IsIdle(m.cfg.IdleTimeout) {
			delete(m.sessions, id)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		m.log.Info("expired sessions removed", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run calls Cleanup every interval until ctx is done, then closes every
// remaining session.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Cleanup()
		case <-ctx.Done():
			m.CloseAll()
			return
		}
	}
}

// CloseAll closes and removes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

// sessionRecorder forwards lifecycle observations and records each update
// call as a domain event tied to the session.
type sessionRecorder struct {
	base    editform.Recorder
	events  event.Recorder
	log     *zap.Logger
	session string
	entity  string
	coll    string
	actor   string
}

func (r *sessionRecorder) Loaded(form string, err error) {
	if r.base != nil {
		r.base.Loaded(form, err)
	}
}

func (r *sessionRecorder) Blocked(form string) {
	if r.base != nil {
		r.base.Blocked(form)
	}
}

func (r *sessionRecorder) Submitted(form string, status int, ok bool) {
	if r.base != nil {
		r.base.Submitted(form, status, ok)
	}
	if r.events == nil {
		return
	}
	evt := event.NewFormSubmitted(event.FormSubmittedPayload{
		Form:       form,
		Collection: r.coll,
		EntityID:   r.entity,
		SessionID:  r.session,
		Status:     status,
		OK:         ok,
	}, r.actor)
	if err := r.events.Record(context.Background(), evt); err != nil {
		r.log.Warn("recording form event failed", zap.Error(err))
	}
}
