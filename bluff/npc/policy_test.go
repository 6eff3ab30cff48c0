package npc

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluff-lite/bluff"
	"bluff-lite/card"
)

func greedyConfig() PolicyConfig {
	cfg := DefaultPolicyConfig()
	cfg.Exploration = 0
	return cfg
}

func challengeState() bluff.GameState {
	return bluff.GameState{
		PlayerHand:  card.MustParseAll("2h", "4d"),
		AIHand:      card.MustParseAll("3h", "3d", "Kc"),
		CenterPile:  card.MustParseAll("9s"),
		CurrentTurn: bluff.ActorAI,
		LastPlay: &bluff.LastPlay{
			Actor:        bluff.ActorPlayer,
			DeclaredRank: card.Rank9,
			ActualCards:  card.MustParseAll("9s"),
		},
	}
}

func TestPolicyUpdateAppliesQLearningRule(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	gs := challengeState()
	next := gs
	next.LastPlay = nil

	entry := p.Update(gs, bluff.Challenge(), 1.0, next)
	assert.InDelta(t, 0.1, entry.Value, 1e-9)
	assert.Equal(t, 1, entry.Visits)
	assert.Equal(t, []float64{1.0}, entry.Rewards)

	// Seed a known value in the next state so the discount term shows up.
	nextKey := bluff.KeyFor(next, bluff.ActionKey{Type: bluff.ActionPass})
	snap := p.Snapshot()
	snap.Entries[nextKey] = PolicyEntry{Value: 2.0, Visits: 1, Rewards: []float64{2}}
	require.NoError(t, p.Restore(snap))

	entry = p.Update(gs, bluff.Challenge(), 0.5, next)
	// 0.1 + 0.1*(0.5 + 0.9*2.0 - 0.1)
	assert.InDelta(t, 0.1+0.1*(0.5+1.8-0.1), entry.Value, 1e-9)
	assert.Equal(t, 2, entry.Visits)
}

func TestPolicyRewardWindowIsBounded(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	gs := challengeState()
	for i := 0; i < RewardWindow+50; i++ {
		p.Update(gs, bluff.Pass(), float64(i), gs)
	}
	stats := p.Stats(bluff.KeyFor(gs, bluff.ActionKey{Type: bluff.ActionPass}))
	assert.Equal(t, RewardWindow+50, stats.Visits)

	entry := p.Snapshot().Entries[bluff.KeyFor(gs, bluff.ActionKey{Type: bluff.ActionPass})]
	require.Len(t, entry.Rewards, RewardWindow)
	assert.Equal(t, float64(RewardWindow+49), entry.Rewards[RewardWindow-1])
	assert.Equal(t, 50.0, entry.Rewards[0])
}

func TestPolicyArgmaxTiesGoToFirstAction(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	assert.Equal(t, bluff.ActionKey{Type: bluff.ActionPass}, p.Suggest(challengeState()))
}

func TestPolicySuggestsHighestValue(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	gs := challengeState()
	play := bluff.ActionKey{Type: bluff.ActionPlayCards, Count: 1, Rank: card.RankK}
	require.NoError(t, p.Restore(PolicyTable{Entries: map[bluff.StateActionKey]PolicyEntry{
		bluff.KeyFor(gs, bluff.ActionKey{Type: bluff.ActionChallenge}): {Value: 0.4, Visits: 3},
		bluff.KeyFor(gs, play): {Value: 0.7, Visits: 1},
	}}))
	assert.Equal(t, play, p.Suggest(gs))
}

func TestPolicyExplorationStaysLegal(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.Exploration = 1
	p := NewPolicy(cfg, 42)
	gs := challengeState()

	legal := make(map[bluff.ActionKey]bool)
	for _, a := range bluff.LegalActions(gs) {
		legal[a] = true
	}
	seen := make(map[bluff.ActionKey]bool)
	for i := 0; i < 500; i++ {
		a := p.Suggest(gs)
		require.True(t, legal[a], "illegal suggestion %v", a)
		seen[a] = true
	}
	assert.Greater(t, len(seen), 3)
}

func TestPolicyProgress(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	empty := p.Progress()
	assert.Equal(t, 0, empty.TotalStates)
	assert.Equal(t, 0.0, empty.AverageValue)
	assert.Empty(t, empty.MostVisited)

	entries := make(map[bluff.StateActionKey]PolicyEntry)
	sum := 0.0
	for i := 0; i < 12; i++ {
		k := bluff.StateActionKey{
			State:  bluff.StateKey{AICards: i, PlayerCards: 3},
			Action: bluff.ActionKey{Type: bluff.ActionPass},
		}
		v := float64(i) / 10
		entries[k] = PolicyEntry{Value: v, Visits: i + 1}
		sum += v
	}
	require.NoError(t, p.Restore(PolicyTable{Entries: entries}))

	prog := p.Progress()
	assert.Equal(t, 12, prog.TotalStates)
	assert.InDelta(t, sum/12, prog.AverageValue, 1e-9)
	require.Len(t, prog.MostVisited, ProgressTopN)
	assert.Equal(t, 12, prog.MostVisited[0].Visits)
	for i := 1; i < len(prog.MostVisited); i++ {
		assert.GreaterOrEqual(t, prog.MostVisited[i-1].Visits, prog.MostVisited[i].Visits)
	}
}

func TestPolicySnapshotRestoreRoundTrip(t *testing.T) {
	p := NewPolicy(greedyConfig(), 1)
	gs := challengeState()
	for i := 0; i < 5; i++ {
		p.Update(gs, bluff.Challenge(), float64(i), gs)
		p.Update(gs, bluff.PlayCards(gs.AIHand[:1], card.RankK), -1, gs)
	}

	raw, err := json.Marshal(p.Snapshot())
	require.NoError(t, err)

	var table PolicyTable
	require.NoError(t, json.Unmarshal(raw, &table))

	q := NewPolicy(greedyConfig(), 2)
	require.NoError(t, q.Restore(table))
	if diff := cmp.Diff(p.Snapshot(), q.Snapshot()); diff != "" {
		t.Fatalf("restored table mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyRestoreRejectsBrokenEntries(t *testing.T) {
	k := bluff.KeyFor(challengeState(), bluff.ActionKey{Type: bluff.ActionPass})
	cases := map[string]PolicyEntry{
		"rewards over window": {Rewards: make([]float64, RewardWindow+1)},
		"negative visits":     {Visits: -1},
		"nan value":           {Value: math.NaN()},
	}
	for name, e := range cases {
		p := NewPolicy(greedyConfig(), 1)
		p.Update(challengeState(), bluff.Pass(), 1, challengeState())
		err := p.Restore(PolicyTable{Entries: map[bluff.StateActionKey]PolicyEntry{k: e}})
		assert.Error(t, err, name)
		assert.Equal(t, 1, p.Len(), fmt.Sprintf("%s: table must be untouched", name))
	}
}

func TestPolicyMergeKeepsTheMoreVisitedEntry(t *testing.T) {
	gs := challengeState()
	challengeKey := bluff.KeyFor(gs, bluff.ActionKey{Type: bluff.ActionChallenge})
	passKey := bluff.KeyFor(gs, bluff.ActionKey{Type: bluff.ActionPass})

	local := NewPolicy(greedyConfig(), 1)
	local.Update(gs, bluff.Challenge(), 1, gs)
	local.Update(gs, bluff.Challenge(), 1, gs)

	taken, err := local.Merge(PolicyTable{Entries: map[bluff.StateActionKey]PolicyEntry{
		challengeKey: {Value: -5, Visits: 1, Rewards: []float64{-5}},
		passKey:      {Value: 0.3, Visits: 4, Rewards: []float64{0.3}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, taken)

	snap := local.Snapshot()
	assert.Equal(t, 2, snap.Entries[challengeKey].Visits, "local entry has more visits")
	assert.Equal(t, 4, snap.Entries[passKey].Visits)

	_, err = local.Merge(PolicyTable{Entries: map[bluff.StateActionKey]PolicyEntry{passKey: {Visits: -1}}})
	assert.Error(t, err)
	assert.Equal(t, 4, local.Snapshot().Entries[passKey].Visits)
}

func TestPolicyConfigValidation(t *testing.T) {
	assert.NoError(t, DefaultPolicyConfig().Validate())
	assert.Error(t, PolicyConfig{LearningRate: 1.5}.Validate())

	p := NewPolicy(PolicyConfig{LearningRate: -1}, 1)
	assert.Equal(t, DefaultPolicyConfig(), p.Config())
}
