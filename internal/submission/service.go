// Package submission runs a finished round through the idempotency gate,
// validation, persistence and ranking.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/leaderboard"
	"github.com/gokatarajesh/wordrush/internal/ranking"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/validation"
	"github.com/gokatarajesh/wordrush/internal/telemetry"
)

// roundNamespace scopes stored round ids derived from client round ids.
var roundNamespace = uuid.MustParse("5b0c6f3e-6a43-4c53-9d0e-2f5f0a8e7c11")

// Validator checks a submission and computes its authoritative metrics.
type Validator interface {
	Validate(sub round.Submission) validation.Result
}

// RoundStore persists rounds.
type RoundStore interface {
	Create(ctx context.Context, rec repository.RoundRecord) (repository.RoundRecord, error)
	Get(ctx context.Context, id uuid.UUID) (repository.RoundRecord, error)
}

// Recorder applies a scored round to the leaderboards.
type Recorder interface {
	Record(ctx context.Context, res leaderboard.Result) leaderboard.Outcome
	ResponsePeriod() round.Period
}

// Gate runs fn at most once per key.
type Gate interface {
	Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, bool, error)
}

// Labels are human-readable ranking bands.
type Labels struct {
	Percentile string `json:"percentile"`
	Stanine    string `json:"stanine"`
}

// Response is the success body of a round submission.
type Response struct {
	Success         bool                  `json:"success"`
	RoundID         string                `json:"roundId"`
	Metrics         round.Metrics         `json:"metrics"`
	PercentileStats *ranking.Stats        `json:"percentileStats,omitempty"`
	Leaderboard     *leaderboard.Position `json:"leaderboard,omitempty"`
	Labels          *Labels               `json:"labels,omitempty"`
	Message         string                `json:"message,omitempty"`
}

// RejectedError carries every failed check of a rejected submission.
type RejectedError struct {
	Errors []validation.Error
}

func (e *RejectedError) Error() string {
	return validation.Summary(e.Errors)
}

// Service is the round submission pipeline.
type Service struct {
	gate      Gate
	validator Validator
	rounds    RoundStore
	recorder  Recorder
	metrics   *telemetry.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService wires the pipeline. metrics may be nil.
func NewService(gate Gate, validator Validator, rounds RoundStore, recorder Recorder, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = telemetry.Nop()
	}
	return &Service{
		gate:      gate,
		validator: validator,
		rounds:    rounds,
		recorder:  recorder,
		metrics:   metrics,
		now:       time.Now,
		logger:    logger.With().Str("component", "submission").Logger(),
	}
}

// Submit scores, persists and ranks a round for userID. A repeated round id
// returns the first result with replayed set. Validation failures are
// returned as *RejectedError.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, sub round.Submission) (Response, bool, error) {
	start := s.now()
	defer func() { s.metrics.SubmissionDuration.Observe(s.now().Sub(start).Seconds()) }()

	gateKey := ""
	if sub.RoundID != "" {
		gateKey = userID.String() + ":" + sub.RoundID
	}

	raw, replayed, err := s.gate.Do(ctx, gateKey, func(ctx context.Context) ([]byte, error) {
		resp, err := s.process(ctx, userID, sub)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			s.metrics.RoundsSubmitted.WithLabelValues("rejected").Inc()
		} else {
			s.metrics.RoundsSubmitted.WithLabelValues("error").Inc()
		}
		return Response{}, false, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.metrics.RoundsSubmitted.WithLabelValues("error").Inc()
		return Response{}, false, fmt.Errorf("decode submission result: %w", err)
	}
	if replayed {
		s.metrics.RoundsSubmitted.WithLabelValues("replayed").Inc()
		s.logger.Info().Str("round_id", sub.RoundID).Str("user_id", userID.String()).Msg("duplicate round replayed")
	}
	return resp, replayed, nil
}

func (s *Service) process(ctx context.Context, userID uuid.UUID, sub round.Submission) (Response, error) {
	res := s.validator.Validate(sub)
	for _, f := range res.Flags {
		s.metrics.ValidationErrors.WithLabelValues(string(f.Code)).Inc()
	}
	if !res.IsValid || res.ServerMetrics == nil {
		for _, e := range res.Errors {
			s.metrics.ValidationErrors.WithLabelValues(string(e.Code)).Inc()
		}
		s.logger.Info().
			Str("user_id", userID.String()).
			Interface("codes", validation.Codes(res.Errors)).
			Msg("round rejected")
		return Response{}, &RejectedError{Errors: res.Errors}
	}
	metrics := *res.ServerMetrics

	roundID, publicID := s.roundIDs(userID, sub.RoundID)
	rec, err := s.buildRecord(roundID, userID, sub, metrics, res.Flags)
	if err != nil {
		return Response{}, err
	}

	if _, err := s.rounds.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateRound) {
			return s.replayStored(ctx, roundID, publicID)
		}
		return Response{}, fmt.Errorf("persist round: %w", err)
	}

	out := s.recorder.Record(ctx, leaderboard.Result{
		UserID:      userID,
		RoundID:     roundID,
		DurationSec: sub.DurationSec,
		Metrics:     metrics,
	})

	resp := Response{
		Success:     true,
		RoundID:     publicID,
		Metrics:     metrics,
		Leaderboard: out.Position,
		Message:     "Round submitted successfully",
	}
	if stats, ok := out.Percentiles[s.recorder.ResponsePeriod()]; ok {
		resp.Metrics = metrics.WithRanking(stats.Percentile, stats.Stanine)
		resp.PercentileStats = &stats
		resp.Labels = &Labels{
			Percentile: ranking.PercentileLabel(stats.Percentile),
			Stanine:    ranking.StanineLabel(stats.Stanine),
		}
	}

	s.metrics.RoundsSubmitted.WithLabelValues("accepted").Inc()
	s.logger.Info().
		Str("round_id", publicID).
		Str("user_id", userID.String()).
		Int("score", metrics.TotalScore).
		Str("grade", string(metrics.Grade)).
		Int("flags", len(res.Flags)).
		Msg("round accepted")
	return resp, nil
}

// replayStored answers a round the database already holds without touching
// the leaderboards again.
func (s *Service) replayStored(ctx context.Context, roundID uuid.UUID, publicID string) (Response, error) {
	rec, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return Response{}, fmt.Errorf("load submitted round: %w", err)
	}
	s.logger.Info().Str("round_id", publicID).Msg("round already stored")
	return Response{
		Success: true,
		RoundID: publicID,
		Metrics: rec.Metrics,
		Message: "Round already submitted",
	}, nil
}

// roundIDs returns the stored id and the id reported to the client. Client
// ids are namespaced per user so two users cannot collide.
func (s *Service) roundIDs(userID uuid.UUID, clientID string) (uuid.UUID, string) {
	if clientID == "" {
		id := uuid.New()
		return id, id.String()
	}
	return uuid.NewSHA1(roundNamespace, []byte(userID.String()+":"+clientID)), clientID
}

func (s *Service) buildRecord(id, userID uuid.UUID, sub round.Submission, metrics round.Metrics, flags []validation.Error) (repository.RoundRecord, error) {
	start, end, err := sub.ParseTimes()
	if err != nil {
		return repository.RoundRecord{}, err
	}
	rec := repository.RoundRecord{
		ID:             id,
		UserID:         userID,
		DurationSec:    sub.DurationSec,
		TotalQuestions: sub.TotalQuestions,
		CorrectAnswers: sub.CorrectAnswers,
		Metrics:        metrics,
		Items:          sub.Items,
		StartTime:      start,
		EndTime:        end,
	}
	if len(flags) > 0 {
		raw, err := json.Marshal(flags)
		if err != nil {
			return repository.RoundRecord{}, fmt.Errorf("encode flags: %w", err)
		}
		rec.Flags = raw
	}
	return rec, nil
}
