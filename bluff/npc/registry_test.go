package npc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadsJSONAndYAML(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 1, r.Count())

	require.NoError(t, r.LoadFromJSON([]byte(`[
		{"id":"shark","name":"Shark","tier":1,"brain":{"riskTolerance":0.9,"deceptiveness":1.7}},
		{"name":"anonymous"}
	]`)))
	shark := r.Get("shark")
	require.NotNil(t, shark)
	assert.Equal(t, 0.9, shark.Brain.RiskTolerance)
	assert.Equal(t, 1.0, shark.Brain.Deceptiveness, "traits are clamped to [0,1]")

	dir := t.TempDir()
	path := filepath.Join(dir, "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: mouse
  name: Mouse
  tier: 3
  brain:
    riskTolerance: 0.2
    deceptiveness: 0.1
`), 0o644))
	require.NoError(t, r.LoadFromFile(path))

	mouse := r.Get("mouse")
	require.NotNil(t, mouse)
	assert.Equal(t, 0.1, mouse.Brain.Deceptiveness)
	assert.Len(t, r.ByTier(3), 1)
	assert.Equal(t, 3, r.Count())
}

func TestRegistryGetOrDefault(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, DefaultPersonaID, r.GetOrDefault("missing").ID)
	assert.Error(t, r.LoadFromJSON([]byte(`{not json`)))
}

func TestPatternBookLoadsOncePerOpponent(t *testing.T) {
	book := NewPatternBook()
	loads := 0
	load := func() (*PatternRecord, error) {
		loads++
		return &PatternRecord{BluffTriggers: BluffTriggers{HighRank: 1}}, nil
	}

	a, err := book.GetOrLoad("alice", load)
	require.NoError(t, err)
	b, err := book.GetOrLoad("alice", load)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, a.Snapshot().BluffTriggers.HighRank)

	broken, err := book.GetOrLoad("bob", func() (*PatternRecord, error) {
		return &PatternRecord{BluffTriggers: BluffTriggers{LowRank: -3}}, nil
	})
	require.NoError(t, err)
	assert.Zero(t, broken.Snapshot().BluffTriggers.Total())

	fresh, err := book.GetOrLoad("carol", func() (*PatternRecord, error) { return nil, nil })
	require.NoError(t, err)
	assert.Empty(t, fresh.Snapshot().MoveHistory)

	assert.Equal(t, []string{"alice", "bob", "carol"}, book.IDs())
	book.Forget("bob")
	assert.Nil(t, book.Get("bob"))
}

func TestPatternBookRetriesFailedLoad(t *testing.T) {
	book := NewPatternBook()
	unavailable := errors.New("backend unavailable")

	_, err := book.GetOrLoad("alice", func() (*PatternRecord, error) { return nil, unavailable })
	assert.ErrorIs(t, err, unavailable)
	assert.Nil(t, book.Get("alice"), "failed loads are not kept")

	pred, err := book.GetOrLoad("alice", func() (*PatternRecord, error) {
		return &PatternRecord{BluffTriggers: BluffTriggers{UnderPressure: 2}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pred.Snapshot().BluffTriggers.UnderPressure)
}

func TestPatternBookEvictIdle(t *testing.T) {
	book := NewPatternBook()
	now := time.Unix(1_700_000_000, 0)
	book.now = func() time.Time { return now }

	book.GetOrLoad("old", nil)
	now = now.Add(time.Hour)
	book.GetOrLoad("fresh", nil)

	assert.Equal(t, 1, book.EvictIdle(30*time.Minute))
	assert.Equal(t, []string{"fresh"}, book.IDs())
}
