package loki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/config"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// Sentinel errors for Loki client failures.
var (
	ErrLokiUnreachable = errors.New("loki unreachable")
	ErrLokiQueryError  = errors.New("loki query error")
	ErrLokiTimeout     = errors.New("loki query timeout")
)

// Client is the interface the log poller queries Loki through.
type Client interface {
	QueryRange(ctx context.Context, req QueryRangeRequest) ([]models.LogLine, error)
	Ready(ctx context.Context) error
}

// QueryRangeRequest defines parameters for a Loki range query.
type QueryRangeRequest struct {
	Query     string
	Start     time.Time
	End       time.Time
	Limit     int
	Direction string
}

// HTTPClient implements Client using Loki's HTTP API.
type HTTPClient struct {
	baseURL  string
	username string
	password string
	orgID    string
	client   *http.Client
}

// NewHTTPClient creates a Loki HTTP client from the loki config section.
func NewHTTPClient(cfg config.LokiConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		orgID:    cfg.OrgID,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// QueryRange returns the matching lines oldest first, merged across streams.
func (c *HTTPClient) QueryRange(ctx context.Context, req QueryRangeRequest) ([]models.LogLine, error) {
	direction := req.Direction
	if direction == "" {
		direction = "forward"
	}

	params := url.Values{
		"query":     {req.Query},
		"start":     {strconv.FormatInt(req.Start.UnixNano(), 10)},
		"end":       {strconv.FormatInt(req.End.UnixNano(), 10)},
		"direction": {direction},
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	resp, err := c.get(ctx, "/loki/api/v1/query_range?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLokiQueryError, resp.StatusCode)
	}

	var lokiResp lokiQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return nil, fmt.Errorf("decoding loki response: %w", err)
	}

	lines, err := parseStreams(lokiResp.Data.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLokiQueryError, err)
	}
	return lines, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	resp, err := c.get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLokiUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: loki not ready (status %d)", ErrLokiUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.username != "" && c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}
	if c.orgID != "" {
		httpReq.Header.Set("X-Scope-OrgID", c.orgID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrLokiTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrLokiTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrLokiUnreachable, err)
}

// parseStreams flattens stream results into LogLines ordered by timestamp.
// Lines within one stream keep their relative order on equal timestamps.
func parseStreams(streams []lokiStream) ([]models.LogLine, error) {
	lines := []models.LogLine{}
	for _, stream := range streams {
		level := stream.Stream["level"]
		if level == "" {
			level = stream.Stream["detected_level"]
		}
		for _, v := range stream.Values {
			ts, err := strconv.ParseInt(v[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", v[0], err)
			}
			lines = append(lines, models.LogLine{
				Timestamp: time.Unix(0, ts).UTC(),
				Message:   v[1],
				Labels:    stream.Stream,
				Level:     level,
			})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Timestamp.Before(lines[j].Timestamp)
	})
	return lines, nil
}

// --- Loki response types ---

type lokiQueryResponse struct {
	Data lokiData `json:"data"`
}

type lokiData struct {
	ResultType string       `json:"resultType"`
	Result     []lokiStream `json:"result"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
