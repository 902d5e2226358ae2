// Package api is the authenticated HTTP client for the makerhub REST API.
//
// Every call runs a small state machine (see State): attach the bearer token,
// and on a 401 refresh the pair once and retry once. If the session cannot be
// recovered the token store is cleared and ErrAuthenticationFailed is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/makerhub/internal/model"
)

const (
	defaultRefreshPath = "/auth/refresh"
	maxResponseBytes   = 32 << 20
	// refreshTimeout bounds a shared refresh, which no single caller owns.
	refreshTimeout = 30 * time.Second
)

// TokenStore is the credential holder the client reads and updates.
// *tokenstore.Store implements it.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(model.TokenPair) error
	ClearTokens() error
}

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8000/api".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger receives dispatch and refresh events. If nil, logging is disabled.
	Logger *zap.Logger
	// RefreshPath is the refresh endpoint relative to BaseURL. Defaults to /auth/refresh.
	RefreshPath string
	// Timeout bounds each HTTP exchange. Zero leaves it to the caller's context and transport.
	Timeout time.Duration
}

// Client performs authenticated API calls. Safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenStore
	log         *zap.Logger
	refreshPath string
	timeout     time.Duration

	// refreshes collapses concurrent refreshes of the same refresh token into one exchange.
	refreshes singleflight.Group
}

// New creates a Client over the given token store.
func New(cfg Config, tokens TokenStore) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if tokens == nil {
		return nil, errors.New("api: token store is required")
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  cfg.HTTPClient,
		tokens:      tokens,
		log:         cfg.Logger,
		refreshPath: cfg.RefreshPath,
		timeout:     cfg.Timeout,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.refreshPath == "" {
		c.refreshPath = defaultRefreshPath
	}
	return c, nil
}

// Tokens returns the store the client authenticates with.
func (c *Client) Tokens() TokenStore { return c.tokens }

// request is a fully materialized call; body bytes are replayed on retry.
type request struct {
	method      string
	endpoint    string
	body        []byte
	contentType string
	anonymous   bool // never attach Authorization
}

type response struct {
	status int
	body   []byte
}

// Do sends in as JSON (nil for no body) and decodes a 2xx JSON response into out (nil to discard).
func (c *Client) Do(ctx context.Context, method, endpoint string, in, out any) error {
	req, err := jsonRequest(method, endpoint, in)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, req, out)
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, in, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, in, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, in, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, in, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, in, out any) error {
	return c.Do(ctx, http.MethodPatch, endpoint, in, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// PostForm issues a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.dispatch(ctx, &request{
		method:      http.MethodPost,
		endpoint:    endpoint,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, out)
}

func jsonRequest(method, endpoint string, in any) (*request, error) {
	req := &request{method: method, endpoint: endpoint}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("api: encode request body: %w", err)
		}
		req.body = b
		req.contentType = "application/json"
	}
	return req, nil
}

// dispatch runs the state machine for one logical call.
func (c *Client) dispatch(ctx context.Context, req *request, out any) error {
	var (
		state   = StateAttempt
		sent    string // access token carried by the last exchange
		resp    *response
		failure error
	)
	for {
		var outcome Outcome
		switch state {
		case StateAttempt, StateRetry:
			sent = ""
			if !req.anonymous {
				sent = c.tokens.AccessToken()
			}
			resp, failure = c.exchange(ctx, req, sent)
			if failure == nil && !statusOK(resp.status) {
				failure = newHTTPError(resp.status, resp.body)
			}
			outcome = classify(resp, sent != "")
		case StateRefresh:
			outcome, failure = c.refresh(ctx, sent)
		case StateDone:
			return decode(resp.body, out)
		case StateFailed:
			return failure
		case StateClearAndFail:
			if err := c.tokens.ClearTokens(); err != nil {
				c.log.Warn("clear tokens", zap.Error(err))
				failure = errors.Join(failure, fmt.Errorf("clear tokens: %w", err))
			}
			return fmt.Errorf("%w: %w", ErrAuthenticationFailed, failure)
		}

		next := Transition(state, outcome)
		c.log.Debug("dispatch",
			zap.String("method", req.method),
			zap.String("endpoint", req.endpoint),
			zap.Stringer("state", state),
			zap.Stringer("outcome", outcome),
			zap.Stringer("next", next),
		)
		state = next
	}
}

// classify maps an exchange result to an Outcome.
func classify(resp *response, withToken bool) Outcome {
	switch {
	case resp == nil:
		return OutcomeTransportFailed
	case statusOK(resp.status):
		return OutcomeOK
	case resp.status == http.StatusUnauthorized && withToken:
		return OutcomeUnauthorized
	default:
		return OutcomeRejected
	}
}

// exchange performs one HTTP round trip. Any status is a successful exchange;
// the error is always a *TransportError.
func (c *Client) exchange(ctx context.Context, req *request, token string) (*response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + req.endpoint
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, &TransportError{Method: req.method, URL: target, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: req.method, URL: target, Err: err}
	}
	defer httpResp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: req.method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	return &response{status: httpResp.StatusCode, body: b}, nil
}

// refresh obtains a new pair for the call that was rejected while carrying token rejected.
// Concurrent callers join one flight; each waits on its own ctx, and a caller
// that gives up gets a TransportError without touching the store.
func (c *Client) refresh(ctx context.Context, rejected string) (Outcome, error) {
	rt := c.tokens.RefreshToken()
	if rt == "" {
		return OutcomeNoRefreshToken, errNoRefreshToken
	}
	ch := c.refreshes.DoChan(rt, func() (any, error) {
		// A concurrent call may have rotated the pair since ours was sent.
		if cur := c.tokens.AccessToken(); cur != "" && cur != rejected {
			c.log.Debug("access token already rotated, retrying")
			return nil, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.refreshPair(fctx, rt)
	})
	select {
	case <-ctx.Done():
		return OutcomeTransportFailed, &TransportError{Method: http.MethodPost, URL: c.baseURL + c.refreshPath, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn("token refresh failed", zap.Error(res.Err), zap.Bool("shared", res.Shared))
			return OutcomeRefreshFailed, res.Err
		}
		return OutcomeRefreshed, nil
	}
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) refreshPair(ctx context.Context, rt string) error {
	req, err := jsonRequest(http.MethodPost, c.refreshPath, refreshBody{RefreshToken: rt})
	if err != nil {
		return err
	}
	req.anonymous = true

	resp, err := c.exchange(ctx, req, "")
	if err != nil {
		return err
	}
	if !statusOK(resp.status) {
		return newHTTPError(resp.status, resp.body)
	}
	var pair model.TokenPair
	if err := json.Unmarshal(resp.body, &pair); err != nil {
		return fmt.Errorf("api: parse refresh response: %w", err)
	}
	if pair.AccessToken == "" {
		return errors.New("api: refresh response without access_token")
	}
	// Servers that do not rotate refresh tokens omit it; keep the one we have.
	if pair.RefreshToken == "" {
		pair.RefreshToken = rt
	}
	if err := c.tokens.SetTokens(pair); err != nil {
		c.log.Warn("persist refreshed tokens", zap.Error(err))
	}
	c.log.Info("access token refreshed")
	return nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
