package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/pkg/metrics"
)

const driverMemory = "memory"

// MemStore keeps entities in a map indexed by a rating treap and the
// ledger in an append-only slice. One RWMutex guards everything, so every
// write, including a whole InTx callback, is serialized.
type MemStore struct {
	mu       sync.RWMutex
	entities map[int64]*model.Entity
	byDex    map[int]int64
	order    []int64 // insertion order, stable under rating changes
	index    *treap
	votes    []model.Vote

	nextEntityID int64
	nextVoteID   int64
	lastStamp    time.Time

	opts   options
	closed bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an empty in-memory store and starts its metrics updater.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemStore{
		entities: make(map[int64]*model.Entity),
		byDex:    make(map[int]int64),
		index:    newTreap(o.seed),
		opts:     o,
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Driver implements Store.
func (s *MemStore) Driver() string { return driverMemory }

// Close stops background goroutines.
func (s *MemStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.mu.RLock()
				e, v := len(s.entities), len(s.votes)
				s.mu.RUnlock()
				metrics.UpdateEntitiesTotal(e)
				metrics.UpdateVotesTotal(v)
			}
		}
	}()
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(driverMemory, op, float64(time.Since(start).Microseconds())/1000)
}

// InTx runs fn under the write lock and undoes its mutations if it fails
// or panics. fn must use tx, never s, or it deadlocks.
func (s *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	defer observe("tx", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Read operations.

func (s *MemStore) GetByID(_ context.Context, id int64) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getByID(id)
}

func (s *MemStore) GetByPokedexNumber(_ context.Context, n int) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getByDex(n)
}

func (s *MemStore) GetMany(_ context.Context, ids []int64) (map[int64]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMany(ids), nil
}

func (s *MemStore) All(_ context.Context) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all(), nil
}

func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities), nil
}

func (s *MemStore) Nth(_ context.Context, i int) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nth(i)
}

func (s *MemStore) TopByRating(_ context.Context, limit int) ([]model.Entity, error) {
	defer observe("top_by_rating", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topByRating(limit), nil
}

func (s *MemStore) GetPairForUpdate(_ context.Context, a, b int64) (model.Entity, model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPair(a, b)
}

func (s *MemStore) RecentVotes(_ context.Context, limit int) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentVotes(limit), nil
}

// ScanVotes iterates a snapshot of the ledger without holding the lock
// while fn runs. Votes are immutable and appends never touch the snapshot.
func (s *MemStore) ScanVotes(ctx context.Context, fn func(model.Vote) error) error {
	s.mu.RLock()
	snapshot := s.votes[:len(s.votes):len(s.votes)]
	s.mu.RUnlock()
	return scanSlice(ctx, snapshot, fn)
}

func (s *MemStore) CountVotes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes), nil
}

func (s *MemStore) CountVotesSince(_ context.Context, t time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countVotesSince(t), nil
}

// Write operations outside a transaction are individually atomic.

func (s *MemStore) Upsert(_ context.Context, seed model.EntitySeed) (model.Entity, error) {
	defer observe("upsert", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _, err := s.upsert(seed)
	return e, err
}

func (s *MemStore) ApplyMatchResult(_ context.Context, winnerID, loserID int64, newWinnerRating, newLoserRating int) (model.Entity, model.Entity, error) {
	defer observe("apply_match", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	w, l, _, err := s.applyMatch(winnerID, loserID, newWinnerRating, newLoserRating)
	return w, l, err
}

func (s *MemStore) ClearEntities(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.clearEntities()
	return err
}

func (s *MemStore) ResetTallies(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTallies()
	return nil
}

func (s *MemStore) AppendVote(_ context.Context, winnerID, loserID int64, winnerDelta, loserDelta int) (model.Vote, error) {
	defer observe("append_vote", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, err := s.appendVote(winnerID, loserID, winnerDelta, loserDelta)
	return v, err
}

func (s *MemStore) ClearVotes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearVotes()
	return nil
}

// Internals below assume s.mu is held. Mutators return an undo closure.

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
}

func (s *MemStore) getByID(id int64) (model.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return model.Entity{}, notFound(id)
	}
	return e.Clone(), nil
}

func (s *MemStore) getByDex(n int) (model.Entity, error) {
	id, ok := s.byDex[n]
	if !ok {
		return model.Entity{}, fmt.Errorf("%w: pokedex number %d", model.ErrNotFound, n)
	}
	return s.getByID(id)
}

func (s *MemStore) getMany(ids []int64) map[int64]model.Entity {
	out := make(map[int64]model.Entity, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out[id] = e.Clone()
		}
	}
	return out
}

func (s *MemStore) getPair(a, b int64) (model.Entity, model.Entity, error) {
	ea, err := s.getByID(a)
	if err != nil {
		return model.Entity{}, model.Entity{}, err
	}
	eb, err := s.getByID(b)
	if err != nil {
		return model.Entity{}, model.Entity{}, err
	}
	return ea, eb, nil
}

func (s *MemStore) all() []model.Entity {
	out := make([]model.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

func (s *MemStore) nth(i int) (model.Entity, error) {
	if i < 0 || i >= len(s.order) {
		return model.Entity{}, fmt.Errorf("%w: position %d of %d", model.ErrNotFound, i, len(s.order))
	}
	return s.entities[s.order[i]].Clone(), nil
}

func (s *MemStore) topByRating(limit int) []model.Entity {
	if limit <= 0 || limit > len(s.entities) {
		limit = len(s.entities)
	}
	out := make([]model.Entity, 0, limit)
	s.index.walk(func(id int64) bool {
		out = append(out, s.entities[id].Clone())
		return len(out) < limit
	})
	return out
}

func (s *MemStore) upsert(seed model.EntitySeed) (model.Entity, func(), error) {
	if err := seed.Validate(); err != nil {
		return model.Entity{}, nil, err
	}

	if id, ok := s.byDex[seed.PokedexNumber]; ok {
		cur := s.entities[id]
		prev := cur.Clone()
		next := seed.Apply(prev)
		*cur = next.Clone()
		s.index.move(id, prev.Rating, next.Rating)
		undo := func() {
			s.index.move(id, next.Rating, prev.Rating)
			*cur = prev
		}
		return next, undo, nil
	}

	s.nextEntityID++
	e := seed.NewEntity()
	e.ID = s.nextEntityID
	stored := e.Clone()
	s.entities[e.ID] = &stored
	s.byDex[e.PokedexNumber] = e.ID
	s.order = append(s.order, e.ID)
	s.index.insert(e.ID, e.Rating)
	undo := func() {
		s.index.delete(e.ID, e.Rating)
		s.order = s.order[:len(s.order)-1]
		delete(s.byDex, e.PokedexNumber)
		delete(s.entities, e.ID)
	}
	return e, undo, nil
}

func (s *MemStore) applyMatch(winnerID, loserID int64, newWinnerRating, newLoserRating int) (model.Entity, model.Entity, func(), error) {
	if winnerID == loserID {
		return model.Entity{}, model.Entity{}, nil, fmt.Errorf("%w: winner and loser must differ", model.ErrInvalidArgument)
	}
	w, ok := s.entities[winnerID]
	if !ok {
		return model.Entity{}, model.Entity{}, nil, notFound(winnerID)
	}
	l, ok := s.entities[loserID]
	if !ok {
		return model.Entity{}, model.Entity{}, nil, notFound(loserID)
	}

	oldW, oldL := w.Rating, l.Rating
	s.index.move(w.ID, oldW, newWinnerRating)
	s.index.move(l.ID, oldL, newLoserRating)
	w.Rating, w.Wins = newWinnerRating, w.Wins+1
	l.Rating, l.Losses = newLoserRating, l.Losses+1

	undo := func() {
		s.index.move(l.ID, newLoserRating, oldL)
		s.index.move(w.ID, newWinnerRating, oldW)
		w.Rating, w.Wins = oldW, w.Wins-1
		l.Rating, l.Losses = oldL, l.Losses-1
	}
	return w.Clone(), l.Clone(), undo, nil
}

func (s *MemStore) clearEntities() (func(), error) {
	if len(s.votes) > 0 {
		return nil, ErrLedgerNotEmpty
	}
	entities, byDex, order, root := s.entities, s.byDex, s.order, s.index.root
	s.entities = make(map[int64]*model.Entity)
	s.byDex = make(map[int]int64)
	s.order = nil
	s.index.reset()
	// nextEntityID is kept: ids are never reused
	undo := func() {
		s.entities, s.byDex, s.order, s.index.root = entities, byDex, order, root
	}
	return undo, nil
}

func (s *MemStore) resetTallies() func() {
	prev := make(map[int64]model.Entity, len(s.entities))
	for id, e := range s.entities {
		prev[id] = *e
		s.index.move(id, e.Rating, model.DefaultRating)
		e.Rating, e.Wins, e.Losses = model.DefaultRating, 0, 0
	}
	return func() {
		for id, p := range prev {
			e := s.entities[id]
			s.index.move(id, e.Rating, p.Rating)
			e.Rating, e.Wins, e.Losses = p.Rating, p.Wins, p.Losses
		}
	}
}

func (s *MemStore) recentVotes(limit int) []model.Vote {
	if limit <= 0 || limit > len(s.votes) {
		limit = len(s.votes)
	}
	out := make([]model.Vote, 0, limit)
	// stamps never go backwards, so reverse insertion order is newest first
	for i := len(s.votes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.votes[i])
	}
	return out
}

func (s *MemStore) countVotesSince(t time.Time) int {
	n := 0
	for i := len(s.votes) - 1; i >= 0; i-- {
		if s.votes[i].Timestamp.Before(t) {
			break
		}
		n++
	}
	return n
}

func (s *MemStore) appendVote(winnerID, loserID int64, winnerDelta, loserDelta int) (model.Vote, func(), error) {
	if winnerID == loserID {
		return model.Vote{}, nil, fmt.Errorf("%w: winner and loser must differ", model.ErrInvalidArgument)
	}
	if _, ok := s.entities[winnerID]; !ok {
		return model.Vote{}, nil, notFound(winnerID)
	}
	if _, ok := s.entities[loserID]; !ok {
		return model.Vote{}, nil, notFound(loserID)
	}

	ts := s.opts.now().UTC()
	if ts.Before(s.lastStamp) {
		ts = s.lastStamp
	}
	prevStamp := s.lastStamp
	s.lastStamp = ts

	s.nextVoteID++
	v := model.Vote{
		ID:                s.nextVoteID,
		WinnerID:          winnerID,
		LoserID:           loserID,
		WinnerRatingDelta: winnerDelta,
		LoserRatingDelta:  loserDelta,
		Timestamp:         ts,
	}
	s.votes = append(s.votes, v)
	undo := func() {
		s.votes = s.votes[:len(s.votes)-1]
		s.lastStamp = prevStamp
	}
	return v, undo, nil
}

func (s *MemStore) clearVotes() func() {
	prev := s.votes
	s.votes = nil
	return func() { s.votes = prev }
}

func scanSlice(ctx context.Context, votes []model.Vote, fn func(model.Vote) error) error {
	for i, v := range votes {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// memTx exposes the locked internals to an InTx callback and records undo steps.
type memTx struct {
	s    *MemStore
	undo []func()
}

func (t *memTx) push(u func()) {
	if u != nil {
		t.undo = append(t.undo, u)
	}
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetByID(_ context.Context, id int64) (model.Entity, error) {
	return t.s.getByID(id)
}

func (t *memTx) GetByPokedexNumber(_ context.Context, n int) (model.Entity, error) {
	return t.s.getByDex(n)
}

func (t *memTx) GetMany(_ context.Context, ids []int64) (map[int64]model.Entity, error) {
	return t.s.getMany(ids), nil
}

func (t *memTx) All(_ context.Context) ([]model.Entity, error) {
	return t.s.all(), nil
}

func (t *memTx) Count(_ context.Context) (int, error) {
	return len(t.s.entities), nil
}

func (t *memTx) Nth(_ context.Context, i int) (model.Entity, error) {
	return t.s.nth(i)
}

func (t *memTx) TopByRating(_ context.Context, limit int) ([]model.Entity, error) {
	return t.s.topByRating(limit), nil
}

func (t *memTx) GetPairForUpdate(_ context.Context, a, b int64) (model.Entity, model.Entity, error) {
	return t.s.getPair(a, b)
}

func (t *memTx) Upsert(_ context.Context, seed model.EntitySeed) (model.Entity, error) {
	e, undo, err := t.s.upsert(seed)
	t.push(undo)
	return e, err
}

func (t *memTx) ApplyMatchResult(_ context.Context, winnerID, loserID int64, newWinnerRating, newLoserRating int) (model.Entity, model.Entity, error) {
	w, l, undo, err := t.s.applyMatch(winnerID, loserID, newWinnerRating, newLoserRating)
	t.push(undo)
	return w, l, err
}

func (t *memTx) ClearEntities(_ context.Context) error {
	undo, err := t.s.clearEntities()
	t.push(undo)
	return err
}

func (t *memTx) ResetTallies(_ context.Context) error {
	t.push(t.s.resetTallies())
	return nil
}

func (t *memTx) RecentVotes(_ context.Context, limit int) ([]model.Vote, error) {
	return t.s.recentVotes(limit), nil
}

func (t *memTx) ScanVotes(ctx context.Context, fn func(model.Vote) error) error {
	return scanSlice(ctx, t.s.votes, fn)
}

func (t *memTx) CountVotes(_ context.Context) (int, error) {
	return len(t.s.votes), nil
}

func (t *memTx) CountVotesSince(_ context.Context, ts time.Time) (int, error) {
	return t.s.countVotesSince(ts), nil
}

func (t *memTx) AppendVote(_ context.Context, winnerID, loserID int64, winnerDelta, loserDelta int) (model.Vote, error) {
	v, undo, err := t.s.appendVote(winnerID, loserID, winnerDelta, loserDelta)
	t.push(undo)
	return v, err
}

func (t *memTx) ClearVotes(_ context.Context) error {
	t.push(t.s.clearVotes())
	return nil
}
