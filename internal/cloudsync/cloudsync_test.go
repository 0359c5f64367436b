package cloudsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simhub/internal/hub"
)

func TestPushSendsSnapshot(t *testing.T) {
	var got envelope
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/state", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := hub.NewStore(&hub.MemoryPersister{})
	store.AddXP(50, "warmup", "geo")

	client := New(srv.URL, "secret-key", nil)
	res := Sync(context.Background(), client, store, "push")

	assert.True(t, res.OK)
	assert.Equal(t, "Bearer secret-key", auth)
	assert.Equal(t, 50, got.State.Profile.XP)
	assert.NotEmpty(t, got.SyncID)
}

func TestPullRestoresState(t *testing.T) {
	remote := hub.NewStore(&hub.MemoryPersister{})
	remote.GrantTokens(70, "remote progress", "clicker")
	blob, err := json.Marshal(remote.GetState())
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Write(blob)
	}))
	defer srv.Close()

	store := hub.NewStore(&hub.MemoryPersister{})
	client := New(srv.URL, "", nil)
	res := Sync(context.Background(), client, store, "pull")

	require.True(t, res.OK)
	s := store.GetState()
	assert.Equal(t, 70, s.Profile.Tokens)
	assert.True(t, s.Progression.UnlockedModes.StockPro)
}

func TestSyncUnconfigured(t *testing.T) {
	store := hub.NewStore(&hub.MemoryPersister{})
	res := Sync(context.Background(), New("", "", nil), store, "push")
	assert.False(t, res.OK)
}

func TestSyncEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := hub.NewStore(&hub.MemoryPersister{})
	res := Sync(context.Background(), New(srv.URL, "", nil), store, "push")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "failed")
}

func TestLoginWithProvider(t *testing.T) {
	store := hub.NewStore(&hub.MemoryPersister{})
	LoginWithProvider(store, "github")

	s := store.GetState()
	assert.Equal(t, "github", s.Auth.Provider)
	assert.Equal(t, "github-user", s.Auth.Handle)
	assert.NotEmpty(t, s.Auth.PublicID)

	// Logging in again keeps the stable public id.
	id := s.Auth.PublicID
	LoginWithProvider(store, "google")
	assert.Equal(t, id, store.GetState().Auth.PublicID)
}
