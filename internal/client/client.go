// Package client talks to the wordrush HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/validation"
	"github.com/gokatarajesh/wordrush/internal/submission"
	httperrors "github.com/gokatarajesh/wordrush/pkg/http/errors"
	"github.com/gokatarajesh/wordrush/pkg/http/ws"
)

// ErrUnauthorized is returned when the API refuses the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-success response that is not a validation rejection.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// RejectedError is a submission the server refused after validation.
type RejectedError struct {
	Message string             `json:"message"`
	Errors  []validation.Error `json:"errors"`
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Board is one page of a leaderboard.
type Board struct {
	Period      round.Period          `json:"period"`
	DurationSec int                   `json:"durationSec"`
	Scope       string                `json:"scope"`
	Top         []ws.LeaderboardEntry `json:"top"`
	Source      string                `json:"source"`
	RetrievedAt string                `json:"retrievedAt"`
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// Attempts bounds submission tries, including the first.
	Attempts  uint64
	RetryBase time.Duration
}

// Client is a small typed wrapper over the API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	opts   Options
	logger zerolog.Logger
}

// New creates a client for opts.BaseURL.
func New(opts Options, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Attempts == 0 {
		opts.Attempts = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	return &Client{
		base:   base,
		token:  opts.Token,
		http:   opts.HTTPClient,
		opts:   opts,
		logger: logger.With().Str("component", "api_client").Logger(),
	}, nil
}

// SubmitRound posts a finished round. Transient failures are retried; the
// round id makes retries safe because the server replays a stored result.
func (c *Client) SubmitRound(ctx context.Context, sub round.Submission) (submission.Response, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return submission.Response{}, fmt.Errorf("encode submission: %w", err)
	}

	var out submission.Response
	backoff := retry.WithMaxRetries(c.opts.Attempts-1, retry.NewExponential(c.opts.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodPost, "/v1/rounds", nil, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if sub.RoundID != "" {
			req.Header.Set("Idempotency-Key", sub.RoundID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug().Err(err).Msg("submit round failed, retrying")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			out = submission.Response{}
			return json.NewDecoder(resp.Body).Decode(&out)
		case resp.StatusCode == http.StatusBadRequest:
			return decodeRejection(resp)
		case resp.StatusCode == http.StatusConflict || resp.StatusCode >= 500:
			apiErr := decodeAPIError(resp)
			c.logger.Debug().Err(apiErr).Msg("submit round failed, retrying")
			return retry.RetryableError(apiErr)
		default:
			return decodeAPIError(resp)
		}
	})
	return out, err
}

// Top fetches the highest entries of one board.
func (c *Client) Top(ctx context.Context, period round.Period, durationSec, limit int) (Board, error) {
	q := url.Values{}
	if durationSec > 0 {
		q.Set("duration", strconv.Itoa(durationSec))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/leaderboards/"+url.PathEscape(string(period)), q, nil)
	if err != nil {
		return Board{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Board{}, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Board{}, decodeAPIError(resp)
	}
	var board Board
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return Board{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return board, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeRejection(resp *http.Response) error {
	var rej RejectedError
	if err := json.NewDecoder(resp.Body).Decode(&rej); err != nil || len(rej.Errors) == 0 {
		return &APIError{Status: resp.StatusCode, Code: httperrors.ErrCodeInvalidRequest, Message: rej.Message}
	}
	return &rej
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	}
	return apiErr
}
