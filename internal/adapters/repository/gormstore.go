package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/metrics"
)

const scanBatchSize = 500

type pokemonRow struct {
	ID            int64            `gorm:"primaryKey;autoIncrement"`
	PokedexNumber int              `gorm:"uniqueIndex;not null"`
	Name          string           `gorm:"size:255;not null"`
	ImageURL      string           `gorm:"size:512;not null;default:''"`
	Types         []types.Category `gorm:"type:text;serializer:json;not null"`
	Rating        int              `gorm:"not null;default:1500;index:idx_pokemons_rating"`
	Wins          int              `gorm:"not null;default:0"`
	Losses        int              `gorm:"not null;default:0"`
}

func (pokemonRow) TableName() string { return "pokemons" }

func (r pokemonRow) entity() model.Entity {
	return model.Entity{
		ID:            r.ID,
		PokedexNumber: r.PokedexNumber,
		Name:          r.Name,
		ImageURL:      r.ImageURL,
		Types:         r.Types,
		Rating:        r.Rating,
		Wins:          r.Wins,
		Losses:        r.Losses,
	}
}

func rowFromEntity(e model.Entity) pokemonRow {
	return pokemonRow{
		ID:            e.ID,
		PokedexNumber: e.PokedexNumber,
		Name:          e.Name,
		ImageURL:      e.ImageURL,
		Types:         e.Types,
		Rating:        e.Rating,
		Wins:          e.Wins,
		Losses:        e.Losses,
	}
}

type voteRow struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	WinnerID          int64     `gorm:"not null;index"`
	LoserID           int64     `gorm:"not null;index"`
	WinnerRatingDelta int       `gorm:"not null"`
	LoserRatingDelta  int       `gorm:"not null"`
	Timestamp         time.Time `gorm:"not null;index"`

	Winner pokemonRow `gorm:"foreignKey:WinnerID;constraint:OnDelete:RESTRICT"`
	Loser  pokemonRow `gorm:"foreignKey:LoserID;constraint:OnDelete:RESTRICT"`
}

func (voteRow) TableName() string { return "votes" }

func (r voteRow) vote() model.Vote {
	return model.Vote{
		ID:                r.ID,
		WinnerID:          r.WinnerID,
		LoserID:           r.LoserID,
		WinnerRatingDelta: r.WinnerRatingDelta,
		LoserRatingDelta:  r.LoserRatingDelta,
		Timestamp:         r.Timestamp,
	}
}

// GormStore implements Store on a relational database through gorm.
// Postgres votes lock both entity rows; sqlite serializes transactions in
// process because it has no row locks.
type GormStore struct {
	db   *gorm.DB
	opts options

	inTx      bool
	serialize bool
	writeMu   *sync.Mutex
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps an open gorm handle. Call Migrate before first use.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &GormStore{
		db:        db,
		opts:      o,
		serialize: db.Dialector.Name() != "postgres",
		writeMu:   &sync.Mutex{},
	}
}

// Migrate creates or updates the pokemons and votes tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&pokemonRow{}, &voteRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Driver implements Store.
func (s *GormStore) Driver() string { return s.db.Dialector.Name() }

// Close releases the connection pool.
func (s *GormStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(s.Driver(), op, float64(time.Since(start).Microseconds())/1000)
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// InTx implements Store.
func (s *GormStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	defer s.observe("tx", time.Now())
	if s.inTx {
		return fn(ctx, s)
	}
	if s.serialize {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	return s.conn(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, s.withTx(db))
	})
}

func (s *GormStore) withTx(db *gorm.DB) *GormStore {
	return &GormStore{db: db, opts: s.opts, inTx: true, serialize: s.serialize, writeMu: s.writeMu}
}

// atomic runs fn in the current transaction or opens one.
func (s *GormStore) atomic(ctx context.Context, fn func(tx *GormStore) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.InTx(ctx, func(_ context.Context, tx Tx) error {
		return fn(tx.(*GormStore))
	})
}

func dbError(op string, err error) error {
	metrics.RecordErrorByComponent("repository", op)
	return fmt.Errorf("%s: %w", op, err)
}

// Read operations.

func (s *GormStore) GetByID(ctx context.Context, id int64) (model.Entity, error) {
	var row pokemonRow
	err := s.conn(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Entity{}, notFound(id)
	}
	if err != nil {
		return model.Entity{}, dbError("get_by_id", err)
	}
	return row.entity(), nil
}

func (s *GormStore) GetByPokedexNumber(ctx context.Context, n int) (model.Entity, error) {
	var row pokemonRow
	err := s.conn(ctx).Where("pokedex_number = ?", n).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Entity{}, fmt.Errorf("%w: pokedex number %d", model.ErrNotFound, n)
	}
	if err != nil {
		return model.Entity{}, dbError("get_by_pokedex_number", err)
	}
	return row.entity(), nil
}

func (s *GormStore) GetMany(ctx context.Context, ids []int64) (map[int64]model.Entity, error) {
	out := make(map[int64]model.Entity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []pokemonRow
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, dbError("get_many", err)
	}
	for _, r := range rows {
		out[r.ID] = r.entity()
	}
	return out, nil
}

func (s *GormStore) All(ctx context.Context) ([]model.Entity, error) {
	var rows []pokemonRow
	if err := s.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, dbError("all", err)
	}
	out := make([]model.Entity, len(rows))
	for i, r := range rows {
		out[i] = r.entity()
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.conn(ctx).Model(&pokemonRow{}).Count(&n).Error; err != nil {
		return 0, dbError("count", err)
	}
	return int(n), nil
}

func (s *GormStore) Nth(ctx context.Context, i int) (model.Entity, error) {
	if i < 0 {
		return model.Entity{}, fmt.Errorf("%w: position %d", model.ErrNotFound, i)
	}
	var row pokemonRow
	err := s.conn(ctx).Order("id").Offset(i).Limit(1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Entity{}, fmt.Errorf("%w: position %d", model.ErrNotFound, i)
	}
	if err != nil {
		return model.Entity{}, dbError("nth", err)
	}
	return row.entity(), nil
}

func (s *GormStore) TopByRating(ctx context.Context, limit int) ([]model.Entity, error) {
	defer s.observe("top_by_rating", time.Now())
	q := s.conn(ctx).Order("rating DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []pokemonRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError("top_by_rating", err)
	}
	out := make([]model.Entity, len(rows))
	for i, r := range rows {
		out[i] = r.entity()
	}
	return out, nil
}

// GetPairForUpdate locks both rows in id order on postgres so concurrent
// votes sharing an entity queue up instead of deadlocking.
func (s *GormStore) GetPairForUpdate(ctx context.Context, a, b int64) (model.Entity, model.Entity, error) {
	q := s.conn(ctx).Where("id IN ?", []int64{a, b}).Order("id")
	if s.inTx && !s.serialize {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []pokemonRow
	if err := q.Find(&rows).Error; err != nil {
		return model.Entity{}, model.Entity{}, dbError("get_pair", err)
	}
	byID := make(map[int64]pokemonRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	ra, ok := byID[a]
	if !ok {
		return model.Entity{}, model.Entity{}, notFound(a)
	}
	rb, ok := byID[b]
	if !ok {
		return model.Entity{}, model.Entity{}, notFound(b)
	}
	return ra.entity(), rb.entity(), nil
}

func (s *GormStore) RecentVotes(ctx context.Context, limit int) ([]model.Vote, error) {
	q := s.conn(ctx).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []voteRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError("recent_votes", err)
	}
	out := make([]model.Vote, len(rows))
	for i, r := range rows {
		out[i] = r.vote()
	}
	return out, nil
}

func (s *GormStore) ScanVotes(ctx context.Context, fn func(model.Vote) error) error {
	defer s.observe("scan_votes", time.Now())
	var batch []voteRow
	res := s.conn(ctx).Order("id").FindInBatches(&batch, scanBatchSize, func(_ *gorm.DB, _ int) error {
		for _, r := range batch {
			if err := fn(r.vote()); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("scan_votes: %w", res.Error)
	}
	return nil
}

func (s *GormStore) CountVotes(ctx context.Context) (int, error) {
	var n int64
	if err := s.conn(ctx).Model(&voteRow{}).Count(&n).Error; err != nil {
		return 0, dbError("count_votes", err)
	}
	return int(n), nil
}

func (s *GormStore) CountVotesSince(ctx context.Context, t time.Time) (int, error) {
	var n int64
	if err := s.conn(ctx).Model(&voteRow{}).Where("timestamp >= ?", t.UTC()).Count(&n).Error; err != nil {
		return 0, dbError("count_votes_since", err)
	}
	return int(n), nil
}

// Write operations.

func (s *GormStore) Upsert(ctx context.Context, seed model.EntitySeed) (model.Entity, error) {
	defer s.observe("upsert", time.Now())
	if err := seed.Validate(); err != nil {
		return model.Entity{}, err
	}
	var out model.Entity
	err := s.atomic(ctx, func(tx *GormStore) error {
		db := tx.conn(ctx)
		var row pokemonRow
		err := db.Where("pokedex_number = ?", seed.PokedexNumber).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = rowFromEntity(seed.NewEntity())
			if err := db.Create(&row).Error; err != nil {
				return dbError("upsert_create", err)
			}
		case err != nil:
			return dbError("upsert_lookup", err)
		default:
			row = rowFromEntity(seed.Apply(row.entity()))
			if err := db.Save(&row).Error; err != nil {
				return dbError("upsert_save", err)
			}
		}
		out = row.entity()
		return nil
	})
	return out, err
}

func (s *GormStore) ApplyMatchResult(ctx context.Context, winnerID, loserID int64, newWinnerRating, newLoserRating int) (model.Entity, model.Entity, error) {
	defer s.observe("apply_match", time.Now())
	if winnerID == loserID {
		return model.Entity{}, model.Entity{}, fmt.Errorf("%w: winner and loser must differ", model.ErrInvalidArgument)
	}
	var w, l model.Entity
	err := s.atomic(ctx, func(tx *GormStore) error {
		db := tx.conn(ctx)
		res := db.Model(&pokemonRow{}).Where("id = ?", winnerID).
			Updates(map[string]any{"rating": newWinnerRating, "wins": gorm.Expr("wins + 1")})
		if res.Error != nil {
			return dbError("apply_winner", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(winnerID)
		}
		res = db.Model(&pokemonRow{}).Where("id = ?", loserID).
			Updates(map[string]any{"rating": newLoserRating, "losses": gorm.Expr("losses + 1")})
		if res.Error != nil {
			return dbError("apply_loser", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound(loserID)
		}
		var err error
		w, l, err = tx.GetPairForUpdate(ctx, winnerID, loserID)
		return err
	})
	return w, l, err
}

func (s *GormStore) ClearEntities(ctx context.Context) error {
	return s.atomic(ctx, func(tx *GormStore) error {
		n, err := tx.CountVotes(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrLedgerNotEmpty
		}
		if err := tx.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&pokemonRow{}).Error; err != nil {
			return dbError("clear_entities", err)
		}
		return nil
	})
}

func (s *GormStore) ResetTallies(ctx context.Context) error {
	err := s.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&pokemonRow{}).
		Updates(map[string]any{"rating": model.DefaultRating, "wins": 0, "losses": 0}).Error
	if err != nil {
		return dbError("reset_tallies", err)
	}
	return nil
}

func (s *GormStore) AppendVote(ctx context.Context, winnerID, loserID int64, winnerDelta, loserDelta int) (model.Vote, error) {
	defer s.observe("append_vote", time.Now())
	if winnerID == loserID {
		return model.Vote{}, fmt.Errorf("%w: winner and loser must differ", model.ErrInvalidArgument)
	}
	var out model.Vote
	err := s.atomic(ctx, func(tx *GormStore) error {
		if _, _, err := tx.GetPairForUpdate(ctx, winnerID, loserID); err != nil {
			return err
		}
		row := voteRow{
			WinnerID:          winnerID,
			LoserID:           loserID,
			WinnerRatingDelta: winnerDelta,
			LoserRatingDelta:  loserDelta,
			Timestamp:         s.opts.now().UTC(),
		}
		if err := tx.conn(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
			return dbError("append_vote", err)
		}
		out = row.vote()
		return nil
	})
	return out, err
}

func (s *GormStore) ClearVotes(ctx context.Context) error {
	if err := s.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&voteRow{}).Error; err != nil {
		return dbError("clear_votes", err)
	}
	return nil
}
