package formsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agrodata/agroadmin/internal/editform"
	"github.com/agrodata/agroadmin/internal/event"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/navigation"
	"github.com/agrodata/agroadmin/internal/store"
	"github.com/agrodata/agroadmin/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(t *testing.T, repo store.Repository, cfg Config) *Manager {
	t.Helper()
	forms, err := formdef.Load()
	require.NoError(t, err)
	cfg.Forms = forms
	cfg.Stores = func(collection string) store.EntityStore { return store.NewCollection(repo, collection) }
	cfg.Options = store.NewCatalog(repo)
	m := NewManager(cfg)
	t.Cleanup(m.CloseAll)
	return m
}

func seedProfile(t *testing.T, repo store.Repository) string {
	t.Helper()
	doc, err := repo.Create(context.Background(), types.CollectionManagers, store.Document{
		"name":      "Bia",
		"birthDate": "1991-07-01",
		"cpf":       "987.654.321-00",
		"phone":     "89 99999-0000",
		"email":     "bia@example.com",
		"role":      0,
	}, "system")
	require.NoError(t, err)
	return doc.ID()
}

func TestManager_CreateLoadsAndSubmits(t *testing.T) {
	repo := store.NewMemoryRepository()
	id := seedProfile(t, repo)
	m := newManager(t, repo, Config{NavigationDelay: 5 * time.Millisecond})

	actor := navigation.Actor{ID: id, Role: types.RoleAdmin}
	s, err := m.Create("profile", id, actor)
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, editform.StatusReady, s.Form().Status())

	events, cancel := s.Feed().Subscribe()
	defer cancel()

	require.NoError(t, s.Form().SetField("nickname", "Bi"))
	res, err := s.Form().Submit(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK)

	first := <-events
	assert.Equal(t, EventNotification, first.Kind)
	assert.Equal(t, "Usuário atualizado com sucesso!", first.Notification.Message)

	select {
	case nav := <-events:
		assert.Equal(t, EventNavigate, nav.Kind)
		assert.Equal(t, "/admin-list/0", nav.Path)
	case <-time.After(time.Second):
		t.Fatal("no navigation")
	}
	assert.Len(t, s.Feed().History(), 2)

	stored, err := repo.Get(context.Background(), types.CollectionManagers, id)
	require.NoError(t, err)
	assert.Equal(t, "Bi", stored["nickname"])
	assert.Equal(t, id, stored["updatedBy"])
}

func TestManager_UnknownForm(t *testing.T) {
	m := newManager(t, store.NewMemoryRepository(), Config{})
	_, err := m.Create("invoice", "x", navigation.Actor{})
	assert.ErrorIs(t, err, ErrUnknownForm)
}

func TestManager_LoadFailureAndReload(t *testing.T) {
	repo := store.NewMemoryRepository()
	m := newManager(t, repo, Config{})

	s, err := m.Create("product", "later", navigation.Actor{ID: "admin"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Wait(context.Background()), store.ErrNotFound)
	assert.Equal(t, editform.StatusLoadFailed, s.Form().Status())

	_, err = repo.Create(context.Background(), types.CollectionProducts, store.Document{"id": "later", "name": "Mel"}, "system")
	require.NoError(t, err)
	s.Reload()
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, "Mel", s.Form().State().String("name"))
}

func TestManager_RemoveClosesFormAndFeed(t *testing.T) {
	repo := store.NewMemoryRepository()
	id := seedProfile(t, repo)
	m := newManager(t, repo, Config{})

	s, err := m.Create("profile", id, navigation.Actor{ID: id})
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))
	events, _ := s.Feed().Subscribe()

	assert.True(t, m.Remove(s.ID))
	assert.False(t, m.Remove(s.ID))

	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, editform.StatusClosed, s.Form().Status())
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_CleanupExpiresIdleSessions(t *testing.T) {
	repo := store.NewMemoryRepository()
	id := seedProfile(t, repo)
	m := newManager(t, repo, Config{IdleTimeout: time.Hour})

	s, err := m.Create("profile", id, navigation.Actor{ID: id})
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, 0, m.Cleanup())
	s.mu.Lock()
	s.lastActive = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 0, m.Len())
}

func TestManager_RecordsFormEvents(t *testing.T) {
	repo := store.NewMemoryRepository()
	id := seedProfile(t, repo)
	m := newManager(t, repo, Config{Events: event.NewStoreRecorder(repo)})

	s, err := m.Create("profile", id, navigation.Actor{ID: id, Role: types.RoleTechnician})
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))
	_, err = s.Form().Submit(context.Background())
	require.NoError(t, err)

	docs, err := repo.List(context.Background(), event.AuditCollection, store.Page{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "form_submitted", docs[0]["event_type"])
	assert.Equal(t, id, docs[0]["actor"])
}

func TestFeed_SubscribeAfterCloseIsClosed(t *testing.T) {
	f := newFeed()
	f.Show(editform.Notification{Message: "x"})
	f.close()
	f.Navigate("/ignored")

	ch, cancel := f.Subscribe()
	defer cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Len(t, f.History(), 1)
	assert.Equal(t, 1, f.History()[0].Seq)
}
