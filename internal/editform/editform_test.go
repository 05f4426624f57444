package editform

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agrodata/agroadmin/internal/form"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/store"
	"github.com/agrodata/agroadmin/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes ---

type fakeStore struct {
	mu         sync.Mutex
	doc        store.Document
	getErr     error
	getGate    chan struct{}
	status     int
	updateErr  error
	updateGate chan struct{}
	updates    []store.Document
	actors     []string
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (store.Document, error) {
	if s.getGate != nil {
		select {
		case <-s.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.doc.Clone(), nil
}

func (s *fakeStore) Update(ctx context.Context, id string, fields store.Document, actor string) (store.UpdateResult, error) {
	s.mu.Lock()
	s.updates = append(s.updates, fields)
	s.actors = append(s.actors, actor)
	gate := s.updateGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if s.updateErr != nil {
		return store.UpdateResult{}, s.updateErr
	}
	return store.UpdateResult{Status: s.status}, nil
}

func (s *fakeStore) calls() []store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Document(nil), s.updates...)
}

type fakeOptions map[string][]form.Option

func (o fakeOptions) Options(_ context.Context, collection string) ([]form.Option, error) {
	opts, ok := o[collection]
	if !ok {
		return nil, errors.New("no such catalog")
	}
	return opts, nil
}

type sink struct {
	mu            sync.Mutex
	notifications []Notification
	paths         []string
}

func (s *sink) Show(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *sink) Navigate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func (s *sink) shown() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}

func (s *sink) navigated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// manualClock captures scheduled navigation so tests fire it explicitly.
type manualClock struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay, c.fn, c.stopped = d, fn, false
	return c
}

func (c *manualClock) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return c.fn != nil
}

func (c *manualClock) fire() {
	c.mu.Lock()
	fn, stopped := c.fn, c.stopped
	c.mu.Unlock()
	if fn != nil && !stopped {
		fn()
	}
}

type countingRecorder struct {
	mu                        sync.Mutex
	loads, blocks, submits    int
	failedLoads, failedUpdate int
}

func (r *countingRecorder) Loaded(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if err != nil {
		r.failedLoads++
	}
}

func (r *countingRecorder) Blocked(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks++
}

func (r *countingRecorder) Submitted(_ string, _ int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits++
	if !ok {
		r.failedUpdate++
	}
}

// --- fixtures ---

func definition(t *testing.T, name string) *formdef.Definition {
	t.Helper()
	reg, err := formdef.Load()
	require.NoError(t, err)
	def, ok := reg.Get(name)
	require.True(t, ok)
	return def
}

func producerDoc() store.Document {
	return store.Document{
		"id":        "p1",
		"name":      "Ana",
		"birthDate": "1980-02-10",
		"cpf":       "123.456.789-00",
		"email":     "ana@example.com",
		"address": map[string]any{
			"zipCode":  "64600-000",
			"uf":       "PI",
			"city":     "Picos",
			"district": "Centro",
			"street":   "Rua A",
		},
		"farmingActivity": map[string]any{
			"activityName": map[string]any{"value": "act-1"},
			"period":       "Mensal",
			"averageCash":  1500,
		},
		"products": []any{map[string]any{"value": "prod-1"}, map[string]any{"value": "prod-2"}},
	}
}

func catalogs() fakeOptions {
	return fakeOptions{
		"products":   {{Value: "prod-1", Label: "Milho"}, {Value: "prod-2", Label: "Feijão"}, {Value: "prod-3", Label: "Mel"}},
		"activities": {{Value: "act-1", Label: "Apicultura"}},
	}
}

func profileDoc(role int) store.Document {
	return store.Document{
		"id":        "u1",
		"name":      "Bia",
		"birthDate": "1991-07-01",
		"cpf":       "987.654.321-00",
		"phone":     "89 99999-0000",
		"email":     "bia@example.com",
		"role":      role,
	}
}

type harness struct {
	form  *Form
	store *fakeStore
	sink  *sink
	clock *manualClock
	rec   *countingRecorder
}

func newHarness(t *testing.T, name string, doc store.Document, actor navigation.Actor) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{doc: doc, status: http.StatusOK},
		sink:  &sink{},
		clock: &manualClock{},
		rec:   &countingRecorder{},
	}
	h.form = New(Config{
		Definition: definition(t, name),
		Store:      h.store,
		Options:    catalogs(),
		Notifier:   h.sink,
		Navigator:  h.sink,
		Actor:      actor,
		Recorder:   h.rec,
		AfterFunc:  h.clock.AfterFunc,
	})
	t.Cleanup(h.form.Close)
	return h
}

// --- tests ---

func TestLoad_PopulatesFromDocumentAndCatalogs(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))

	st := h.form.State()
	assert.Equal(t, StatusReady, h.form.Status())
	assert.Equal(t, "Ana", st.String("name"))
	assert.Equal(t, "Picos", st.String("address.city"))
	assert.Equal(t, "", st.String("address.reference"))
	assert.Equal(t, "act-1", st.String("farmingActivity.activityName.value"))
	assert.Equal(t, "1500", st.String("farmingActivity.averageCash"))
	assert.Equal(t, []string{"Milho", "Feijão"}, st.Strings("products"))
	assert.Empty(t, h.form.Snapshot().Errors)
	assert.Equal(t, "p1", h.form.Original().ID())
}

func TestLoad_MissingNestedObjectUsesDefaults(t *testing.T) {
	doc := producerDoc()
	delete(doc, "address")
	h := newHarness(t, "producer", doc, navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))

	st := h.form.State()
	for _, p := range []string{"address.zipCode", "address.uf", "address.city"} {
		assert.Equal(t, "", st.Values[p], p)
	}
	snap := h.form.Snapshot()
	assert.Equal(t, "Cidade é obrigatória!", snap.AllErrors["address.city"])
	assert.Empty(t, snap.Errors, "errors stay hidden until touched")
}

func TestLoad_FailureThenRetry(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	h.store.getErr = store.ErrNotFound

	err := h.form.Load(context.Background(), "p1")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, StatusLoadFailed, h.form.Status())
	assert.NotEmpty(t, h.form.Snapshot().LoadError)

	_, err = h.form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)

	h.store.mu.Lock()
	h.store.getErr = nil
	h.store.mu.Unlock()
	require.NoError(t, h.form.Load(context.Background(), "p1"))
	assert.Equal(t, StatusReady, h.form.Status())
	assert.Equal(t, 2, h.rec.loads)
	assert.Equal(t, 1, h.rec.failedLoads)
}

func TestLoad_CatalogFailureFailsLoad(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	h.form.cfg.Options = fakeOptions{"activities": nil}

	err := h.form.Load(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "products options")
}

func TestSubmit_BeforeLoadIsNotReady(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	_, err := h.form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, h.store.calls())
}

func TestSubmit_InvalidBlocksAndRevealsErrors(t *testing.T) {
	doc := profileDoc(0)
	doc["name"] = ""
	doc["email"] = "not-an-email"
	h := newHarness(t, "profile", doc, navigation.Actor{ID: "u1", Role: types.RoleAdmin})
	require.NoError(t, h.form.Load(context.Background(), "u1"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, "Nome é obrigatório!", res.Errors["name"])
	assert.Equal(t, "E-mail inválido!", res.Errors["email"])
	assert.NotContains(t, res.Errors, "cpf")

	assert.Empty(t, h.store.calls())
	assert.Empty(t, h.sink.shown())
	snap := h.form.Snapshot()
	for _, p := range []string{"name", "email", "cpf", "role"} {
		assert.True(t, snap.Touched[p], p)
	}
	assert.Equal(t, "Nome é obrigatório!", snap.Errors["name"])
	assert.Equal(t, 1, h.rec.blocks)
}

func TestSubmit_AdminProfileSuccessNavigatesAfterDelay(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1", Role: types.RoleAdmin})
	require.NoError(t, h.form.Load(context.Background(), "u1"))
	require.NoError(t, h.form.SetField("nickname", "Bi"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "/admin-list/0", res.Destination)

	calls := h.store.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Bi", calls[0]["nickname"])
	assert.Equal(t, "0", calls[0]["role"])
	assert.Equal(t, []string{"u1"}, h.store.actors)

	assert.Equal(t, []Notification{{
		Outcome: OutcomeSuccess,
		Message: "Usuário atualizado com sucesso!",
		Glyph:   GlyphSuccess,
		Status:  http.StatusOK,
	}}, h.sink.shown())

	assert.Empty(t, h.sink.navigated(), "navigation waits for the delay")
	assert.Equal(t, DefaultNavigationDelay, h.clock.delay)
	h.clock.fire()
	assert.Equal(t, []string{"/admin-list/0"}, h.sink.navigated())
}

func TestSubmit_TechnicianLandsOnOwnProfile(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(1), navigation.Actor{ID: "u1", Role: types.RoleTechnician})
	require.NoError(t, h.form.Load(context.Background(), "u1"))

	err := h.form.SetField("role", "0")
	assert.ErrorIs(t, err, ErrReadOnlyField)
	assert.Equal(t, "1", h.form.State().String("role"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/my-profile/u1/1", res.Destination)
	h.clock.fire()
	assert.Equal(t, []string{"/my-profile/u1/1"}, h.sink.navigated())
}

func TestSubmit_ProducerPayload(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))
	require.NoError(t, h.form.SetField("products", []string{"Milho", "Mel"}))
	require.NoError(t, h.form.SetField("address.city", "Oeiras"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)

	calls := h.store.calls()
	require.Len(t, calls, 1)
	payload := calls[0]
	assert.Equal(t, []map[string]any{{"value": "prod-1"}, {"value": "prod-3"}}, payload["products"])
	assert.Equal(t, "Oeiras", payload["address"].(map[string]any)["city"])
	assert.Equal(t, "act-1", payload["farmingActivity"].(map[string]any)["activityName"].(map[string]any)["value"])
	assert.Equal(t, "admin-1", payload["updatedBy"])
	assert.Equal(t, "Produtor atualizado!", h.sink.shown()[0].Message)

	h.clock.fire()
	assert.Equal(t, []string{"/producer-list"}, h.sink.navigated())
}

func TestSubmit_ProducerNeedsAProduct(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))
	require.NoError(t, h.form.SetField("products", []string{}))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, "Selecione pelo menos um produto!", res.Errors["products"])
	assert.Empty(t, h.store.calls())
}

func TestSubmit_UnknownProductBlocks(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))
	require.NoError(t, h.form.SetField("products", []string{"Soja"}))
	assert.Equal(t, "Opção inválida!", h.form.Snapshot().Errors["products"])

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.False(t, res.OK)
	assert.Equal(t, "Opção inválida!", res.Errors["products"])
	assert.Empty(t, h.store.calls())
	assert.Empty(t, h.sink.shown())
	assert.Equal(t, 1, h.rec.blocks)
}

func TestSubmit_StoredProductMissingFromCatalogBlocks(t *testing.T) {
	doc := producerDoc()
	doc["products"] = []any{map[string]any{"value": "prod-1"}, map[string]any{"value": "prod-9"}}
	h := newHarness(t, "producer", doc, navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "p1"))
	assert.Equal(t, "Opção inválida!", h.form.Snapshot().AllErrors["products"])

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, h.store.calls())

	require.NoError(t, h.form.SetField("products", []string{"Milho"}))
	res, err = h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []map[string]any{{"value": "prod-1"}}, h.store.calls()[0]["products"])
}

func TestSubmit_FailureStatusKeepsValues(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1", Role: types.RoleAdmin})
	h.store.status = http.StatusInternalServerError
	require.NoError(t, h.form.Load(context.Background(), "u1"))
	require.NoError(t, h.form.SetField("name", "Beatriz"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusInternalServerError, res.Status)

	shown := h.sink.shown()
	require.Len(t, shown, 1)
	assert.Equal(t, OutcomeFailure, shown[0].Outcome)
	assert.Equal(t, GlyphFail, shown[0].Glyph)
	assert.Equal(t, "Falha inesperada! Erro: 500", shown[0].Message)

	assert.Equal(t, "Beatriz", h.form.State().String("name"))
	assert.Equal(t, "Bia", h.form.Original()["name"])
	h.clock.fire()
	assert.Empty(t, h.sink.navigated())
	assert.Equal(t, 1, h.rec.failedUpdate)
}

func TestSubmit_TransportErrorReportsText(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	h.store.updateErr = errors.New("connection refused")
	require.NoError(t, h.form.Load(context.Background(), "u1"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "connection refused", res.Error)
	assert.Equal(t, "Falha inesperada! Erro: connection refused", h.sink.shown()[0].Message)
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	require.NoError(t, h.form.Load(context.Background(), "u1"))
	gate := make(chan struct{})
	h.store.mu.Lock()
	h.store.updateGate = gate
	h.store.mu.Unlock()

	first := make(chan SubmitResult, 1)
	go func() {
		res, _ := h.form.Submit(context.Background())
		first <- res
	}()
	require.Eventually(t, func() bool { return h.form.Snapshot().Submitting }, time.Second, time.Millisecond)

	_, err := h.form.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(gate)
	assert.True(t, (<-first).OK)
	assert.Len(t, h.store.calls(), 1)
}

func TestSetField_UnknownPath(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	err := h.form.SetField("salary", "1")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSetField_RevalidatesAndShowsTouchedError(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	require.NoError(t, h.form.Load(context.Background(), "u1"))

	require.NoError(t, h.form.SetField("email", "broken"))
	assert.Equal(t, map[string]string{"email": "E-mail inválido!"}, h.form.Snapshot().Errors)

	require.NoError(t, h.form.SetField("email", "ok@example.com"))
	assert.Empty(t, h.form.Snapshot().Errors)
}

func TestClose_DiscardsInFlightFetch(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	h.store.getGate = make(chan struct{})

	done := h.form.Initialize(context.Background(), "p1")
	h.form.Close()

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Equal(t, StatusClosed, h.form.Status())
	assert.Equal(t, "", h.form.State().String("name"))
	assert.ErrorIs(t, h.form.SetField("name", "x"), ErrClosed)
}

func TestInitialize_NewerLoadSupersedesOlder(t *testing.T) {
	h := newHarness(t, "producer", producerDoc(), navigation.Actor{ID: "admin-1"})
	h.store.getGate = make(chan struct{})

	first := h.form.Initialize(context.Background(), "p1")
	second := h.form.Initialize(context.Background(), "p1")
	assert.ErrorIs(t, <-first, ErrDiscarded)

	close(h.store.getGate)
	require.NoError(t, <-second)
	assert.Equal(t, "Ana", h.form.State().String("name"))
}

func TestClose_CancelsPendingNavigation(t *testing.T) {
	h := newHarness(t, "product", store.Document{"id": "x", "name": "Milho"}, navigation.Actor{ID: "admin-1"})
	require.NoError(t, h.form.Load(context.Background(), "x"))

	res, err := h.form.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)

	h.form.Close()
	h.clock.fire()
	assert.Empty(t, h.sink.navigated())
}

func TestValidate_IsPure(t *testing.T) {
	h := newHarness(t, "profile", profileDoc(0), navigation.Actor{ID: "u1"})
	st := form.NewState(h.form.def.Shape)
	st.Values["email"] = "nope"

	first := h.form.Validate(st)
	second := h.form.Validate(st)
	assert.Equal(t, first, second)
	assert.Equal(t, "nope", st.Values["email"])
	assert.Empty(t, st.Errors["email"])
}
