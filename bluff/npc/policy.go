package npc

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"bluff-lite/bluff"
)

const (
	DefaultLearningRate = 0.1
	DefaultDiscount     = 0.9
	DefaultExploration  = 0.2

	// RewardWindow caps the per-entry reward history.
	RewardWindow = 100
	// ProgressTopN is how many entries LearningProgress lists.
	ProgressTopN = 10
)

// PolicyConfig holds the Q-learning hyperparameters.
type PolicyConfig struct {
	LearningRate float64 `json:"learningRate"`
	Discount     float64 `json:"discount"`
	Exploration  float64 `json:"exploration"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		LearningRate: DefaultLearningRate,
		Discount:     DefaultDiscount,
		Exploration:  DefaultExploration,
	}
}

func (c PolicyConfig) Validate() error {
	for name, v := range map[string]float64{
		"learning rate": c.LearningRate,
		"discount":      c.Discount,
		"exploration":   c.Exploration,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("policy %s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

// PolicyEntry is the learned statistic for one state-action pair.
type PolicyEntry struct {
	Value   float64   `json:"value"`
	Visits  int       `json:"visits" validate:"gte=0"`
	Rewards []float64 `json:"rewards" validate:"max=100"`
}

// PolicyTable is the persisted form of the whole policy.
type PolicyTable struct {
	Entries map[bluff.StateActionKey]PolicyEntry `json:"entries" validate:"dive"`
}

// VisitedEntry is one row of LearningProgress.MostVisited.
type VisitedEntry struct {
	Key    string  `json:"key"`
	Visits int     `json:"visits"`
	Value  float64 `json:"value"`
}

// LearningProgress summarizes the table.
type LearningProgress struct {
	TotalStates  int            `json:"totalStates"`
	AverageValue float64        `json:"averageValue"`
	MostVisited  []VisitedEntry `json:"mostVisited"`
}

// ActionStats is the learned view of a single state-action pair.
type ActionStats struct {
	Value         float64 `json:"value"`
	Visits        int     `json:"visits"`
	AverageReward float64 `json:"averageReward"`
}

// Policy is a tabular Q-learner over discretized states. Safe for
// concurrent use.
type Policy struct {
	cfg PolicyConfig

	mu    sync.RWMutex
	table map[bluff.StateActionKey]*PolicyEntry

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPolicy creates an empty policy. An invalid config falls back to the
// defaults.
func NewPolicy(cfg PolicyConfig, seed int64) *Policy {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultPolicyConfig()
	}
	return &Policy{
		cfg:   cfg,
		table: make(map[bluff.StateActionKey]*PolicyEntry),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (p *Policy) Config() PolicyConfig { return p.cfg }

// Value returns Q(s,a), 0 for unseen pairs.
func (p *Policy) Value(key bluff.StateActionKey) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valueLocked(key)
}

func (p *Policy) valueLocked(key bluff.StateActionKey) float64 {
	if e := p.table[key]; e != nil {
		return e.Value
	}
	return 0
}

// Suggest picks an action for gs: with probability Exploration a uniformly
// random legal action, otherwise the argmax with ties going to the first
// enumerated action.
func (p *Policy) Suggest(gs bluff.GameState) bluff.ActionKey {
	actions := bluff.LegalActions(gs)
	if i, ok := p.explore(len(actions)); ok {
		return actions[i]
	}
	return p.Best(gs)
}

// Best is the greedy choice for gs.
func (p *Policy) Best(gs bluff.GameState) bluff.ActionKey {
	actions := bluff.LegalActions(gs)
	state := bluff.Discretize(gs)

	p.mu.RLock()
	defer p.mu.RUnlock()
	best := actions[0]
	bestV := p.valueLocked(bluff.StateActionKey{State: state, Action: best})
	for _, a := range actions[1:] {
		if v := p.valueLocked(bluff.StateActionKey{State: state, Action: a}); v > bestV {
			best, bestV = a, v
		}
	}
	return best
}

func (p *Policy) explore(n int) (int, bool) {
	if p.cfg.Exploration <= 0 || n == 0 {
		return 0, false
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	if p.rng.Float64() >= p.cfg.Exploration {
		return 0, false
	}
	return p.rng.Intn(n), true
}

// Update applies one Q-learning step for taking action in gs, observing
// reward and landing in next. It returns a copy of the updated entry.
func (p *Policy) Update(gs bluff.GameState, action bluff.Action, reward float64, next bluff.GameState) PolicyEntry {
	key := bluff.KeyFor(gs, bluff.ActionKeyOf(action))
	nextState := bluff.Discretize(next)
	nextActions := bluff.LegalActions(next)

	p.mu.Lock()
	defer p.mu.Unlock()

	maxNext := math.Inf(-1)
	for _, a := range nextActions {
		if v := p.valueLocked(bluff.StateActionKey{State: nextState, Action: a}); v > maxNext {
			maxNext = v
		}
	}

	e := p.table[key]
	if e == nil {
		e = &PolicyEntry{}
		p.table[key] = e
	}
	e.Value += p.cfg.LearningRate * (reward + p.cfg.Discount*maxNext - e.Value)
	e.Visits++
	e.Rewards = append(e.Rewards, reward)
	if over := len(e.Rewards) - RewardWindow; over > 0 {
		e.Rewards = append([]float64(nil), e.Rewards[over:]...)
	}
	return copyEntry(e)
}

// Stats returns value, visits and mean windowed reward for key.
func (p *Policy) Stats(key bluff.StateActionKey) ActionStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e := p.table[key]
	if e == nil {
		return ActionStats{}
	}
	return ActionStats{Value: e.Value, Visits: e.Visits, AverageReward: mean(e.Rewards)}
}

// Len is the number of learned state-action pairs.
func (p *Policy) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.table)
}

// Progress reports table size, mean value and the most visited entries.
func (p *Policy) Progress() LearningProgress {
	p.mu.RLock()
	rows := make([]VisitedEntry, 0, len(p.table))
	sum := 0.0
	for k, e := range p.table {
		rows = append(rows, VisitedEntry{Key: k.String(), Visits: e.Visits, Value: e.Value})
		sum += e.Value
	}
	p.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Visits != rows[j].Visits {
			return rows[i].Visits > rows[j].Visits
		}
		return rows[i].Key < rows[j].Key
	})

	out := LearningProgress{TotalStates: len(rows), MostVisited: []VisitedEntry{}}
	if len(rows) > 0 {
		out.AverageValue = sum / float64(len(rows))
	}
	if len(rows) > ProgressTopN {
		rows = rows[:ProgressTopN]
	}
	out.MostVisited = append(out.MostVisited, rows...)
	return out
}

// Snapshot copies the table into its persisted form.
func (p *Policy) Snapshot() PolicyTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := PolicyTable{Entries: make(map[bluff.StateActionKey]PolicyEntry, len(p.table))}
	for k, e := range p.table {
		out.Entries[k] = copyEntry(e)
	}
	return out
}

// Restore replaces the table with t. The current table is kept when t
// violates an entry invariant.
func (p *Policy) Restore(t PolicyTable) error {
	next, err := entriesOf(t)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.table = next
	p.mu.Unlock()
	return nil
}

// Merge folds t into the table: an entry of t replaces the local one when
// it has more visits, so updates made elsewhere are adopted and local ones
// not yet seen elsewhere are kept. It returns how many entries were taken.
func (p *Policy) Merge(t PolicyTable) (int, error) {
	incoming, err := entriesOf(t)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k, e := range incoming {
		if cur := p.table[k]; cur == nil || e.Visits > cur.Visits {
			p.table[k] = e
			n++
		}
	}
	return n, nil
}

func entriesOf(t PolicyTable) (map[bluff.StateActionKey]*PolicyEntry, error) {
	out := make(map[bluff.StateActionKey]*PolicyEntry, len(t.Entries))
	for k, e := range t.Entries {
		if e.Visits < 0 {
			return nil, fmt.Errorf("policy entry %s: negative visits", k)
		}
		if len(e.Rewards) > RewardWindow {
			return nil, fmt.Errorf("policy entry %s: %d rewards exceeds window %d", k, len(e.Rewards), RewardWindow)
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return nil, fmt.Errorf("policy entry %s: non-finite value", k)
		}
		c := copyEntry(&e)
		out[k] = &c
	}
	return out, nil
}

func copyEntry(e *PolicyEntry) PolicyEntry {
	out := PolicyEntry{Value: e.Value, Visits: e.Visits, Rewards: make([]float64, len(e.Rewards))}
	copy(out.Rewards, e.Rewards)
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
