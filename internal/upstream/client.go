// Package upstream talks to the two external systems of record: the user
// service and the parking-space service.  Every call is a single attempt
// bounded by the configured timeout; non-success responses are translated
// into the apperror taxonomy and never retried.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jinnapat/jod-rod-matching-service/internal/apperror"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/metrics"
	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
)

// Client is the external consistency checker.
type Client struct {
	userBaseURL    string
	parkingBaseURL string
	http           *http.Client
	names          *NameCache
	metrics        *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithNameCache enables caching of usernames and lot names.
func WithNameCache(c *NameCache) Option { return func(cl *Client) { cl.names = c } }

// WithMetrics records upstream call latency.
func WithMetrics(m *metrics.Collector) Option { return func(cl *Client) { cl.metrics = m } }

// WithHTTPClient replaces the default HTTP client.  The client's Timeout is
// left untouched.
func WithHTTPClient(h *http.Client) Option { return func(cl *Client) { cl.http = h } }

// NewClient returns a Client for the given service base URLs.  timeout
// bounds each request; zero disables the bound.
func NewClient(userBaseURL, parkingBaseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		userBaseURL:    strings.TrimRight(userBaseURL, "/"),
		parkingBaseURL: strings.TrimRight(parkingBaseURL, "/"),
		http:           &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckUserExists fetches the user.  Any non-200 response or transport
// failure is reported as NotFound naming the user.
func (c *Client) CheckUserExists(ctx context.Context, userID int64) (*model.UserInfo, error) {
	resp, err := c.do(ctx, "user", http.MethodGet, c.userBaseURL+"/getUser/"+strconv.FormatInt(userID, 10))
	if err != nil {
		logger.WarnContext(ctx, "user lookup failed", "user_id", userID, "error", err)
		return nil, apperror.NotFound(fmt.Sprintf("no user with id %d", userID))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NotFound(fmt.Sprintf("no user with id %d", userID))
	}
	var u model.UserInfo
	if err := decode(resp.Body, &u); err != nil {
		return nil, apperror.Internal("malformed user service response", err)
	}
	u.ID = userID
	c.names.putUsername(ctx, userID, u.Username)
	return &u, nil
}

// CheckParkingLotExists fetches the lot.  Any non-200 response or transport
// failure is reported as NotFound.
func (c *Client) CheckParkingLotExists(ctx context.Context, parkingLotID string) (*model.ParkingLot, error) {
	resp, err := c.do(ctx, "parking", http.MethodGet, c.parkingBaseURL+"/getParkingSpace/"+url.PathEscape(parkingLotID))
	if err != nil {
		logger.WarnContext(ctx, "parking lot lookup failed", "parking_lot_id", parkingLotID, "error", err)
		return nil, apperror.NotFound("cant get information about that parking lot")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NotFound("cant get information about that parking lot")
	}
	var lot model.ParkingLot
	if err := decode(resp.Body, &lot); err != nil {
		return nil, apperror.Internal("malformed parking space response", err)
	}
	if lot.ID == "" {
		lot.ID = parkingLotID
	}
	c.names.putLotName(ctx, parkingLotID, lot.Name)
	return &lot, nil
}

// CheckAvailability verifies the lot exists and has at least one free
// slot as of this call.  Nothing is held against the inventory; a
// concurrent request may take the last slot between this check and the
// caller's write.  A response without an available count is Internal.
func (c *Client) CheckAvailability(ctx context.Context, parkingLotID string) (*model.ParkingLot, error) {
	lot, err := c.CheckParkingLotExists(ctx, parkingLotID)
	if err != nil {
		return nil, err
	}
	if lot.Available == nil {
		return nil, apperror.Internal("parking space response has no available count", nil)
	}
	if *lot.Available <= 0 {
		return nil, apperror.Forbidden("the parking lot is full")
	}
	return lot, nil
}

// ReportLate increments the user's late counter.
func (c *Client) ReportLate(ctx context.Context, userID int64) error {
	resp, err := c.do(ctx, "user", http.MethodPost, c.userBaseURL+"/addLateCount/"+strconv.FormatInt(userID, 10))
	if err != nil {
		return apperror.Internal("add late count failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return apperror.Internal(fmt.Sprintf("add late count returned %d", resp.StatusCode), nil)
	}
	return nil
}

// GetPenaltyStatus returns the user's current standing.
func (c *Client) GetPenaltyStatus(ctx context.Context, userID int64) (*model.PenaltyStatus, error) {
	resp, err := c.do(ctx, "user", http.MethodGet, c.userBaseURL+"/getPenaltyStatus/"+strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, apperror.Internal("penalty status lookup failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Internal(fmt.Sprintf("penalty status returned %d", resp.StatusCode), nil)
	}
	var ps model.PenaltyStatus
	if err := decode(resp.Body, &ps); err != nil {
		return nil, apperror.Internal("malformed penalty status response", err)
	}
	return &ps, nil
}

// Username resolves a user's display name, consulting the name cache
// first.
func (c *Client) Username(ctx context.Context, userID int64) (string, error) {
	if name, ok := c.names.username(ctx, userID); ok {
		return name, nil
	}
	u, err := c.CheckUserExists(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// LotName resolves a lot's display name, consulting the name cache first.
func (c *Client) LotName(ctx context.Context, parkingLotID string) (string, error) {
	if name, ok := c.names.lotName(ctx, parkingLotID); ok {
		return name, nil
	}
	lot, err := c.CheckParkingLotExists(ctx, parkingLotID)
	if err != nil {
		return "", err
	}
	return lot.Name, nil
}

func (c *Client) do(ctx context.Context, service, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	c.metrics.ObserveUpstream(service, elapsed, err == nil && resp.StatusCode < 500)
	logger.DebugContext(ctx, "upstream call", "method", method, "url", target, "elapsed", elapsed)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func decode(r io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(v)
}
