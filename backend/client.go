package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	donorAuth "github.com/bloodlink/donorauth"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "donorauth/1.0"
	maxBodyBytes     = 1 << 20

	headerRequestID = "X-Request-ID"
)

var _ donorAuth.Backend = (*Client)(nil)

// errNoUser is returned when a 2xx body carried no profile.
var errNoUser = errors.New("response carried no user")

// Config configures a [Client].
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Transport overrides the HTTP transport; tests pass httptest transports.
	Transport http.RoundTripper
}

// Client talks to the platform REST API. It is safe for concurrent use; all
// calls share one cookie jar and therefore one backend session.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a Client with an empty cookie jar.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: cfg.Transport,
		},
		logger: logger,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, reg donorAuth.Registration) (donorAuth.Profile, error) {
	return c.profileCall(ctx, http.MethodPost, "/auth/register", reg)
}

// Login calls POST /auth/login. The backend answers with a session cookie
// that the client keeps for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (donorAuth.Profile, error) {
	return c.profileCall(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password})
}

// Logout calls POST /auth/logout.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil)
	return err
}

// Me calls GET /auth/me. A 200 without a user is treated like a 401.
func (c *Client) Me(ctx context.Context) (donorAuth.Profile, error) {
	p, err := c.profileCall(ctx, http.MethodGet, "/auth/me", nil)
	if errors.Is(err, errNoUser) {
		return donorAuth.Profile{}, fmt.Errorf("%w: %w", donorAuth.ErrUnauthenticated, err)
	}
	return p, err
}

// FetchProfile calls GET /users/profile.
func (c *Client) FetchProfile(ctx context.Context) (donorAuth.Profile, error) {
	return c.profileCall(ctx, http.MethodGet, "/users/profile", nil)
}

// UpdateProfile calls PATCH /users/profile. The response body is ignored;
// callers re-read the profile.
func (c *Client) UpdateProfile(ctx context.Context, upd donorAuth.ProfileUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/users/profile", upd)
	return err
}

func (c *Client) profileCall(ctx context.Context, method, path string, body any) (donorAuth.Profile, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return donorAuth.Profile{}, err
	}
	p, err := decodeProfile(raw)
	if err != nil {
		if !errors.Is(err, errNoUser) {
			c.logger.WarnContext(ctx, "backend response decode failed",
				slog.String("method", method),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return donorAuth.Profile{}, fmt.Errorf("%w: %s %s: %w", donorAuth.ErrBackend, method, path, err)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s body: %w", donorAuth.ErrBackend, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", donorAuth.ErrBackend, err)
	}

	requestID := donorAuth.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s %s: %w", donorAuth.ErrBackend, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s body: %w", donorAuth.ErrBackend, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			RequestID:  requestID,
			Method:     method,
			Path:       path,
		}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "backend returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
		)
		return nil, apiErr
	}

	return raw, nil
}

// decodeProfile accepts {"user": {...}} or a bare profile object.
func decodeProfile(raw []byte) (donorAuth.Profile, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return donorAuth.Profile{}, errNoUser
	}

	var envelope struct {
		User *donorAuth.Profile `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return donorAuth.Profile{}, err
	}
	if envelope.User != nil {
		return *envelope.User, nil
	}

	var bare donorAuth.Profile
	if err := json.Unmarshal(raw, &bare); err != nil {
		return donorAuth.Profile{}, err
	}
	if bare.ID == "" && bare.Email == "" {
		return donorAuth.Profile{}, errNoUser
	}
	return bare, nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
