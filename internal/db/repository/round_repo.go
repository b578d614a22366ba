package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/wordrush/internal/db/pg"
	"github.com/gokatarajesh/wordrush/internal/round"
)

// roundWriter is the part of the query set used inside a round transaction.
type roundWriter interface {
	InsertRound(ctx context.Context, arg pg.InsertRoundParams) (pg.Round, error)
	CopyRoundItems(ctx context.Context, items []pg.RoundItem) (int64, error)
}

type roundStore interface {
	InRoundTx(ctx context.Context, fn func(roundWriter) error) error
	GetRound(ctx context.Context, id pgtype.UUID) (pg.Round, error)
	ListRoundItems(ctx context.Context, roundID pgtype.UUID) ([]pg.RoundItem, error)
}

// RoundRecord is a persisted round with its authoritative metrics.
type RoundRecord struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	DurationSec    int
	TotalQuestions int
	CorrectAnswers int
	Metrics        round.Metrics
	Items          []round.Item
	Flags          json.RawMessage
	StartTime      time.Time
	EndTime        time.Time
	CreatedAt      time.Time
}

// RoundRepository stores rounds and their items.
type RoundRepository struct {
	store roundStore
}

// NewRoundRepository wraps a round store.
func NewRoundRepository(store roundStore) *RoundRepository {
	return &RoundRepository{store: store}
}

// NewPGRoundRepository builds a RoundRepository on a pgx store.
func NewPGRoundRepository(store *pg.Store) *RoundRepository {
	return NewRoundRepository(pgRoundStore{store})
}

// Create inserts the round and bulk-copies its items in one transaction.
// A repeated id yields ErrDuplicateRound.
func (r *RoundRepository) Create(ctx context.Context, rec RoundRecord) (RoundRecord, error) {
	if rec.ID == uuid.Nil {
		return RoundRecord{}, fmt.Errorf("create round: missing id")
	}
	roundID := toPGUUID(rec.ID)

	params := pg.InsertRoundParams{
		ID:              roundID,
		UserID:          toPGUUID(rec.UserID),
		DurationSec:     int16(rec.DurationSec),
		TotalQuestions:  int16(rec.TotalQuestions),
		CorrectAnswers:  int16(rec.CorrectAnswers),
		Score:           int32(rec.Metrics.TotalScore),
		Accuracy:        rec.Metrics.Accuracy,
		Speed:           rec.Metrics.Speed,
		NormalizedSpeed: rec.Metrics.NormalizedSpeed,
		Grade:           string(rec.Metrics.Grade),
		Flags:           rec.Flags,
		StartTime:       toTimestamptz(rec.StartTime),
		EndTime:         toTimestamptz(rec.EndTime),
	}

	items := make([]pg.RoundItem, len(rec.Items))
	for i, it := range rec.Items {
		items[i] = pg.RoundItem{
			RoundID:        roundID,
			QuestionIndex:  int16(i),
			IsCorrect:      it.IsCorrect,
			ResponseTimeMs: int32(it.ResponseTimeMs),
			Score:          it.Score,
		}
	}

	var stored pg.Round
	err := r.store.InRoundTx(ctx, func(w roundWriter) error {
		var err error
		if stored, err = w.InsertRound(ctx, params); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		_, err = w.CopyRoundItems(ctx, items)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return RoundRecord{}, ErrDuplicateRound
		}
		return RoundRecord{}, fmt.Errorf("create round: %w", err)
	}

	out := fromPGRound(stored)
	out.Items = rec.Items
	return out, nil
}

// Get loads a round and its items.
func (r *RoundRepository) Get(ctx context.Context, id uuid.UUID) (RoundRecord, error) {
	pgID := toPGUUID(id)
	row, err := r.store.GetRound(ctx, pgID)
	if err != nil {
		if isNoRows(err) {
			return RoundRecord{}, ErrNotFound
		}
		return RoundRecord{}, fmt.Errorf("get round: %w", err)
	}

	items, err := r.store.ListRoundItems(ctx, pgID)
	if err != nil {
		return RoundRecord{}, fmt.Errorf("list round items: %w", err)
	}

	rec := fromPGRound(row)
	rec.Items = make([]round.Item, len(items))
	for i, it := range items {
		rec.Items[i] = round.Item{
			IsCorrect:      it.IsCorrect,
			ResponseTimeMs: int(it.ResponseTimeMs),
			Score:          it.Score,
		}
	}
	return rec, nil
}

func fromPGRound(row pg.Round) RoundRecord {
	return RoundRecord{
		ID:             fromPGUUID(row.ID),
		UserID:         fromPGUUID(row.UserID),
		DurationSec:    int(row.DurationSec),
		TotalQuestions: int(row.TotalQuestions),
		CorrectAnswers: int(row.CorrectAnswers),
		Metrics: round.Metrics{
			Accuracy:         row.Accuracy,
			Speed:            row.Speed,
			NormalizedSpeed:  row.NormalizedSpeed,
			TotalScore:       int(row.Score),
			MaxPossibleScore: round.MaxPossibleScore,
			Grade:            round.Grade(row.Grade),
		},
		Flags:     row.Flags,
		StartTime: fromTimestamptz(row.StartTime),
		EndTime:   fromTimestamptz(row.EndTime),
		CreatedAt: fromTimestamptz(row.CreatedAt),
	}
}

type pgRoundStore struct {
	*pg.Store
}

func (s pgRoundStore) InRoundTx(ctx context.Context, fn func(roundWriter) error) error {
	return s.ExecTx(ctx, func(q *pg.Queries) error { return fn(q) })
}
