package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff/npc"
)

func decision(kind string) DecisionRecord {
	return DecisionRecord{
		GameID:   "g1",
		Decision: DecisionSummary{Type: kind, Confidence: 0.5, Alternatives: []string{"PASS"}},
		Signals:  SignalSnapshot{BluffProbability: 0.3, ChallengeProbability: 0.2, PatternConfidence: 0.4, RiskLevel: 0.6},
	}
}

func TestRecordDecisionAssignsIDAndCaps(t *testing.T) {
	m := New(nil, nil)
	first := m.RecordDecision(decision("PASS"))
	require.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	for i := 0; i < MaxHistory+5; i++ {
		m.RecordDecision(decision("PLAY_CARDS"))
	}
	recent := m.Recent(MaxHistory * 2)
	assert.Len(t, recent, MaxHistory)
	assert.NotEqual(t, first.ID, recent[0].ID, "oldest record evicted")
	assert.Len(t, m.Recent(0), DefaultRecentLimit)
}

func TestRecordOutcomeUpdatesPerformance(t *testing.T) {
	m := New(nil, nil)
	c := m.RecordDecision(decision("CHALLENGE"))
	p := m.RecordDecision(decision("PLAY_CARDS"))

	require.NoError(t, m.RecordOutcome(c.ID, true, 1))
	require.NoError(t, m.RecordOutcome(p.ID, false, -1))
	assert.ErrorIs(t, m.RecordOutcome(p.ID, true, 1), ErrOutcomeRecorded)
	assert.ErrorIs(t, m.RecordOutcome("nope", true, 1), ErrUnknownDecision)

	perf := m.Performance()
	assert.Equal(t, 2, perf.TotalMoves)
	assert.InDelta(t, 0.5, perf.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, perf.ChallengeSuccessRate, 1e-9)
	assert.InDelta(t, 0.0, perf.BluffSuccessRate, 1e-9)
	assert.InDelta(t, 0.0, perf.AverageReward, 1e-9)

	m.RecordGameResult(true)
	m.RecordGameResult(false)
	m.RecordGameResult(true)
	skill := m.Skill()
	assert.Equal(t, 3, skill.GamesPlayed)
	assert.InDelta(t, 2.0/3, skill.WinRate, 1e-9)
}

func TestDistributionAndSubscribe(t *testing.T) {
	m := New(nil, nil)
	var seen []string
	unsubscribe := m.Subscribe(func(rec DecisionRecord) { seen = append(seen, rec.Decision.Type) })

	m.RecordDecision(decision("PASS"))
	m.RecordDecision(decision("CHALLENGE"))
	unsubscribe()
	m.RecordDecision(decision("CHALLENGE"))

	assert.Equal(t, []string{"PASS", "CHALLENGE"}, seen)
	assert.Equal(t, map[string]int{"PASS": 1, "CHALLENGE": 2, "PLAY_CARDS": 0}, m.Distribution())
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	st := store.New(backend)
	ctx := context.Background()

	m := New(st, nil)
	rec := m.RecordDecision(decision("CHALLENGE"))
	require.NoError(t, m.RecordOutcome(rec.ID, true, 2))
	m.RecordGameResult(true)
	require.NoError(t, m.Flush(ctx))

	restored := New(st, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, m.Performance(), restored.Performance())
	if diff := cmp.Diff(m.Recent(10), restored.Recent(10)); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	empty := New(store.New(store.NewMemoryBackend()), nil)
	assert.NoError(t, empty.Load(ctx), "missing documents are not an error")
}

// gatedBackend parks the first decisionHistory write until release closes.
type gatedBackend struct {
	store.Backend
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Write(ctx context.Context, key string, body []byte) error {
	if key == store.DecisionHistoryKey {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.started)
			<-g.release
		}
	}
	return g.Backend.Write(ctx, key, body)
}

func TestOverlappingFlushesKeepNewestHistory(t *testing.T) {
	gated := &gatedBackend{
		Backend: store.NewMemoryBackend(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	st := store.New(gated)
	m := New(st, nil)
	ctx := context.Background()

	m.RecordDecision(decision("PASS"))
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = m.Flush(ctx)
	}()
	<-gated.started

	m.RecordDecision(decision("CHALLENGE"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = m.Flush(ctx)
	}()
	close(gated.release)
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var hist HistoryDocument
	require.NoError(t, st.Load(ctx, store.DecisionHistoryKey, &hist))
	assert.Len(t, hist.Decisions, 2)
}

func TestFlushHonorsDocumentLock(t *testing.T) {
	locker := lock.NewMemory()
	st := store.New(store.NewMemoryBackend())
	m := New(st, locker)
	ctx := context.Background()
	m.RecordDecision(decision("PASS"))

	held, err := locker.Acquire(ctx, store.DecisionHistoryKey, time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Flush(ctx), lock.ErrNotAcquired)
	var hist HistoryDocument
	assert.ErrorIs(t, st.Load(ctx, store.DecisionHistoryKey, &hist), store.ErrNotFound)

	require.NoError(t, locker.Release(ctx, held))
	require.NoError(t, m.Flush(ctx))
	require.NoError(t, st.Load(ctx, store.DecisionHistoryKey, &hist))
	assert.Len(t, hist.Decisions, 1)
}

type fixedProgress npc.LearningProgress

func (f fixedProgress) LearningProgress() npc.LearningProgress { return npc.LearningProgress(f) }

func TestHTTPHandler(t *testing.T) {
	m := New(nil, nil)
	for i := 0; i < 3; i++ {
		m.RecordDecision(decision("PASS"))
	}
	mux := http.NewServeMux()
	NewHTTPHandler(m, fixedProgress{TotalStates: 7}).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	getJSON := func(path string, out any) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
		return resp.StatusCode
	}

	var recent struct {
		Items []DecisionRecord `json:"items"`
	}
	assert.Equal(t, http.StatusOK, getJSON("/api/monitoring/recent-decisions?limit=2", &recent))
	assert.Len(t, recent.Items, 2)

	var dist map[string]int
	assert.Equal(t, http.StatusOK, getJSON("/api/monitoring/decision-distribution", &dist))
	assert.Equal(t, 3, dist["PASS"])

	var progress npc.LearningProgress
	assert.Equal(t, http.StatusOK, getJSON("/api/monitoring/learning-progress", &progress))
	assert.Equal(t, 7, progress.TotalStates)

	var perf ModelPerformance
	assert.Equal(t, http.StatusOK, getJSON("/api/monitoring/performance", &perf))

	resp, err := http.Post(srv.URL+"/api/monitoring/performance", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestParseLimit(t *testing.T) {
	for raw, want := range map[string]int{"": 10, "abc": 10, "-1": 10, "5": 5, "500": 100} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			assert.Equal(t, want, parseLimit(raw))
		})
	}
}
