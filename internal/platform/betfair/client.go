// Package betfair is a thin gateway to the Betfair exchange Sports API:
// certificate login, keep-alive, and the JSON-RPC market read calls. The
// session token lives on the Client value and is refreshed transparently,
// with a single retry when the exchange reports an invalid session.
package betfair

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mkirwan/betflow/internal/domain"
)

const (
	horseRacingEventTypeID = "7"
	invalidSessionCode     = "INVALID_SESSION_INFORMATION"
	tooManyRequestsCode    = "TOO_MUCH_DATA"
)

// Config carries the endpoints and credentials for the exchange client.
type Config struct {
	APIEndpoint       string
	LoginEndpoint     string
	KeepAliveEndpoint string
	AppKey            string
	Username          string
	Password          string
	CertFile          string
	KeyFile           string
	Timeout           time.Duration
}

// Client is the Betfair Sports API client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu           sync.Mutex
	sessionToken string
}

// NewClient builds a client with the TLS client certificate loaded for the
// cert login endpoint.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("betfair: load client certificate: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
			},
		},
		logger: logger.With(slog.String("component", "betfair")),
	}, nil
}

// Login performs the certificate login and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LoginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("betfair: build login request: %w", err)
	}
	req.Header.Set("X-Application", c.cfg.AppKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("betfair: cert login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("betfair: read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("betfair: cert login HTTP %d: %s", resp.StatusCode, truncate(body))
	}

	var parsed struct {
		SessionToken string `json:"sessionToken"`
		LoginStatus  string `json:"loginStatus"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("betfair: decode login response: %w", err)
	}
	if parsed.LoginStatus != "SUCCESS" || parsed.SessionToken == "" {
		return fmt.Errorf("betfair: cert login failed: status=%s", parsed.LoginStatus)
	}

	c.mu.Lock()
	c.sessionToken = parsed.SessionToken
	c.mu.Unlock()
	c.logger.Info("logged in")
	return nil
}

// KeepAlive extends the current session. Callers in long-running modes
// should invoke it well inside the exchange's session timeout.
func (c *Client) KeepAlive(ctx context.Context) error {
	token := c.token()
	if token == "" {
		return c.Login(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.KeepAliveEndpoint, nil)
	if err != nil {
		return fmt.Errorf("betfair: build keep-alive request: %w", err)
	}
	req.Header.Set("X-Application", c.cfg.AppKey)
	req.Header.Set("X-Authentication", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("betfair: keep-alive: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("betfair: decode keep-alive response: %w", err)
	}
	if parsed.Status != "SUCCESS" {
		c.logger.Warn("keep-alive rejected, re-authenticating", slog.String("error", parsed.Error))
		return c.Login(ctx)
	}
	return nil
}

// FindEventTypeID looks up the horse racing event type via the API, falling
// back to the well-known ID when the lookup yields nothing.
func (c *Client) FindEventTypeID(ctx context.Context) (string, error) {
	raw, err := c.rpc(ctx, "listEventTypes", map[string]any{"filter": map[string]any{}})
	if err != nil {
		return "", err
	}
	var rows []eventTypeResultDTO
	if err := json.Unmarshal(raw, &rows); err != nil {
		return "", fmt.Errorf("betfair: decode event types: %w", err)
	}
	for _, row := range rows {
		if row.EventType.Name == "Horse Racing" {
			return row.EventType.ID, nil
		}
	}
	c.logger.Warn("horse racing event type not found, using fallback", slog.String("id", horseRacingEventTypeID))
	return horseRacingEventTypeID, nil
}

// ListMarketCatalogue returns win-market catalogues matching the filter,
// soonest first, with runner descriptions and metadata attached.
func (c *Client) ListMarketCatalogue(ctx context.Context, filter MarketFilter, maxResults int) ([]domain.MarketCatalogue, error) {
	params := map[string]any{
		"filter":     filter,
		"maxResults": maxResults,
		"marketProjection": []string{
			"EVENT", "MARKET_START_TIME", "RUNNER_DESCRIPTION", "RUNNER_METADATA",
		},
		"sort": "FIRST_TO_START",
	}
	raw, err := c.rpc(ctx, "listMarketCatalogue", params)
	if err != nil {
		return nil, err
	}
	var rows []catalogueDTO
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("betfair: decode market catalogue: %w", err)
	}

	out := make([]domain.MarketCatalogue, 0, len(rows))
	for _, row := range rows {
		cat := domain.MarketCatalogue{
			MarketID:    row.MarketID,
			MarketName:  row.MarketName,
			CountryCode: row.Event.CountryCode,
			StartTime:   parseTime(row.MarketStartTime),
			Runners:     make([]domain.CatalogueRunner, 0, len(row.Runners)),
		}
		for _, r := range row.Runners {
			cat.Runners = append(cat.Runners, domain.CatalogueRunner{
				SelectionID: r.SelectionID,
				Name:        r.RunnerName,
				ClothNumber: clothNumber(r.Metadata),
			})
		}
		out = append(out, cat)
	}
	return out, nil
}

// ListMarketBook returns best-offer books for the given markets, depth 1 on
// each side.
func (c *Client) ListMarketBook(ctx context.Context, marketIDs []string) ([]domain.MarketBook, error) {
	params := map[string]any{
		"marketIds": marketIDs,
		"priceProjection": map[string]any{
			"priceData":             []string{"EX_BEST_OFFERS"},
			"exBestOffersOverrides": map[string]any{"bestPricesDepth": 1},
		},
	}
	raw, err := c.rpc(ctx, "listMarketBook", params)
	if err != nil {
		return nil, err
	}
	var rows []bookDTO
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("betfair: decode market book: %w", err)
	}

	out := make([]domain.MarketBook, 0, len(rows))
	for _, row := range rows {
		book := domain.MarketBook{
			MarketID:     row.MarketID,
			TotalMatched: row.TotalMatched,
			Runners:      make([]domain.BookRunner, 0, len(row.Runners)),
		}
		for _, r := range row.Runners {
			book.Runners = append(book.Runners, domain.BookRunner{
				SelectionID:     r.SelectionID,
				Status:          r.Status,
				AvailableToBack: offers(r.EX.AvailableToBack),
				AvailableToLay:  offers(r.EX.AvailableToLay),
			})
		}
		out = append(out, book)
	}
	return out, nil
}

// rpc performs a Sports API call, logging in first when no session is held
// and retrying exactly once after a fresh login when the exchange reports an
// invalid session.
func (c *Client) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.token() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	raw, err := c.rpcOnce(ctx, method, params)
	if err == nil {
		return raw, nil
	}
	if !isInvalidSession(err) {
		return nil, err
	}

	c.logger.Warn("session invalid, re-authenticating", slog.String("method", method))
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c.rpcOnce(ctx, method, params)
}

func (c *Client) rpcOnce(ctx context.Context, method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "SportsAPING/v1.0/" + method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("betfair: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("betfair: build %s request: %w", method, err)
	}
	req.Header.Set("X-Application", c.cfg.AppKey)
	req.Header.Set("X-Authentication", c.token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("betfair: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("betfair: read %s response: %w", method, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("betfair: %s: %w", method, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("betfair: %s HTTP %d: %s", method, resp.StatusCode, truncate(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("betfair: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		switch code := rpcResp.Error.APINGCode(); code {
		case invalidSessionCode:
			return nil, fmt.Errorf("betfair: %s: %w", method, domain.ErrInvalidSession)
		case tooManyRequestsCode:
			return nil, fmt.Errorf("betfair: %s: %w", method, domain.ErrRateLimited)
		default:
			return nil, fmt.Errorf("betfair: %s failed: code=%s message=%s", method, code, rpcResp.Error.Message)
		}
	}
	return rpcResp.Result, nil
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionToken
}

func isInvalidSession(err error) bool {
	return errors.Is(err, domain.ErrInvalidSession)
}

func offers(dtos []offerDTO) []domain.Offer {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]domain.Offer, len(dtos))
	for i, o := range dtos {
		out[i] = domain.Offer{Price: o.Price, Size: o.Size}
	}
	return out
}

// clothNumber pulls the saddle cloth number from runner metadata when
// present and numeric.
func clothNumber(md map[string]string) int {
	for _, key := range []string{"CLOTH_NUMBER", "CLOTH_NUMBER_ALPHA"} {
		if v, ok := md[key]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// parseTime handles the exchange's ISO timestamps, normally millisecond
// precision with a Z suffix. A zero time marks an unparseable value; the
// scanner drops such markets.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func truncate(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max])
}
