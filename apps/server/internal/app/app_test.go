package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluff-lite/apps/server/internal/config"
	"bluff-lite/apps/server/internal/decision"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff"
	"bluff-lite/card"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.Store = store.Options{Mode: "file", Dir: t.TempDir()}
	cfg.LockMode = "memory"
	cfg.CacheMode = "memory"
	cfg.OpenAIKey = ""
	cfg.PersonaFile = ""
	return cfg
}

func TestBuildServesDecisionsAndMonitoring(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "file", a.StoreMode)

	gs := bluff.GameState{
		PlayerHand:  card.MustParseAll("2h"),
		AIHand:      card.MustParseAll("5c", "5d"),
		CenterPile:  []card.Card{},
		CurrentTurn: bluff.ActorAI,
	}
	res := a.Decider.Decide(ctx, decision.Session{GameID: "g", OpponentID: "p"}, gs, "honestly")
	require.NoError(t, res.Action.ValidateAgainst(gs))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/api/monitoring/recent-decisions")
	require.NoError(t, err)
	var recent struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recent))
	resp.Body.Close()
	assert.Len(t, recent.Items, 1)

	resp, err = http.Get(srv.URL + "/api/decisions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "decision API is mounted")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildUsesPersonaFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: shark
  name: Shark
  tier: 1
  brain:
    riskTolerance: 0.9
    deceptiveness: 0.8
`), 0o600))
	cfg.PersonaFile = path
	cfg.PersonaID = "shark"

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "Shark", a.Persona.Name)
}

func TestBuildFailsOnUnknownStoreMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Mode = "tape"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
