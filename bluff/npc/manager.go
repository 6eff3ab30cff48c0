package npc

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "npc")

// DefaultOpponentID is used when the caller does not identify the opponent.
const DefaultOpponentID = "player"

// OpponentInstance is the tracked behavior model of one human opponent.
type OpponentInstance struct {
	ID        string
	Predictor *PatternPredictor
	LastSeen  time.Time
}

// PatternBook manages one PatternPredictor per opponent.
type PatternBook struct {
	mu        sync.RWMutex
	instances map[string]*OpponentInstance
	now       func() time.Time
}

func NewPatternBook() *PatternBook {
	return &PatternBook{
		instances: make(map[string]*OpponentInstance),
		now:       time.Now,
	}
}

// Get returns the tracked opponent, or nil.
func (b *PatternBook) Get(opponentID string) *OpponentInstance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instances[opponentID]
}

// GetOrLoad returns the opponent's predictor, creating it on first use.
// load returns the persisted record, or nil when the opponent has none. A
// record that fails validation starts the opponent empty. A load error is
// returned and nothing is kept, so the next call loads again.
func (b *PatternBook) GetOrLoad(opponentID string, load func() (*PatternRecord, error)) (*PatternPredictor, error) {
	if opponentID == "" {
		opponentID = DefaultOpponentID
	}

	b.mu.RLock()
	inst := b.instances[opponentID]
	b.mu.RUnlock()
	if inst != nil {
		b.touch(inst)
		return inst.Predictor, nil
	}

	pred := NewPatternPredictor()
	if load != nil {
		rec, err := load()
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if err := pred.Restore(*rec); err != nil {
				log.WithError(err).WithField("opponent", opponentID).Warn("pattern record invalid, starting empty")
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing := b.instances[opponentID]; existing != nil {
		existing.LastSeen = b.now()
		return existing.Predictor, nil
	}
	b.instances[opponentID] = &OpponentInstance{ID: opponentID, Predictor: pred, LastSeen: b.now()}
	log.WithField("opponent", opponentID).Debug("tracking opponent")
	return pred, nil
}

func (b *PatternBook) touch(inst *OpponentInstance) {
	b.mu.Lock()
	inst.LastSeen = b.now()
	b.mu.Unlock()
}

// Forget drops an opponent from memory.
func (b *PatternBook) Forget(opponentID string) {
	b.mu.Lock()
	inst := b.instances[opponentID]
	delete(b.instances, opponentID)
	b.mu.Unlock()

	if inst != nil {
		log.WithField("opponent", opponentID).Debug("forgot opponent")
	}
}

// EvictIdle forgets opponents not seen for longer than idle and returns
// how many were dropped.
func (b *PatternBook) EvictIdle(idle time.Duration) int {
	cutoff := b.now().Add(-idle)
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, inst := range b.instances {
		if inst.LastSeen.Before(cutoff) {
			delete(b.instances, id)
			n++
		}
	}
	return n
}

// IDs lists tracked opponents, sorted.
func (b *PatternBook) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.instances))
	for id := range b.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
