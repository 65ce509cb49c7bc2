package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/diagrama/pkg/domain"
)

// maxBodySize caps every response body read by the client.
const maxBodySize = 10 << 20 // 10 MB

// Client talks to the auth backend and the diagram generation service.
type Client struct {
	baseURL    string
	diagramURL string
	// httpClient keeps a cookie jar for the auth backend.
	httpClient *http.Client
	// plainClient has no jar; diagram and fetch calls never carry cookies.
	plainClient *http.Client
	logger      *slog.Logger
}

// New creates a new API client. baseURL is the auth backend root and
// diagramURL the full generation endpoint.
func New(baseURL, diagramURL string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // nil options never fail
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		diagramURL: diagramURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		plainClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// --- Credential gateway ---

// Register creates an account. The backend may sign the user in directly,
// in which case the response carries a token.
func (c *Client) Register(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.post(ctx, "/user/register", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.post(ctx, "/user/login", creds, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &resp, nil
}

// VerifyToken asks the backend whether token is still valid.
func (c *Client) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	var u domain.User
	if err := c.post(ctx, "/user/verify", map[string]string{"token": token}, &u); err != nil {
		return nil, fmt.Errorf("client.VerifyToken: %w", err)
	}
	return &u, nil
}

// --- Diagram service ---

// GenerateResponse is the success body of the generation endpoint.
type GenerateResponse struct {
	URL string `json:"url"`
}

// GenerateDiagram posts payload to the generation endpoint. The token is sent
// verbatim in the Authorization header.
func (c *Client) GenerateDiagram(ctx context.Context, token string, payload json.RawMessage) (*GenerateResponse, error) {
	body := struct {
		JSON json.RawMessage `json:"json"`
	}{JSON: payload}

	req, err := newJSONRequest(ctx, http.MethodPost, c.diagramURL, body)
	if err != nil {
		return nil, fmt.Errorf("client.GenerateDiagram: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	var out GenerateResponse
	if err := c.do(c.plainClient, req, &out); err != nil {
		return nil, fmt.Errorf("client.GenerateDiagram: %w", err)
	}
	return &out, nil
}

// --- Remote content ---

// FetchText GETs rawURL and returns the body as a string.
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	data, _, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("client.FetchText: %w", err)
	}
	return string(data), nil
}

// FetchBytes GETs rawURL and returns the body with its declared media type.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, mediaType, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("client.FetchBytes: %w", err)
	}
	return data, mediaType, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.plainClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return nil, "", readHTTPError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	return c.do(c.httpClient, req, out)
}

func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"method", req.Method, "url", req.URL.Redacted(),
			"request_id", req.Header.Get("X-Request-ID"), "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.logger.Debug("request done",
		"method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"), "duration", time.Since(start))

	if resp.StatusCode >= 400 {
		return readHTTPError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil {
		if apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		if apiErr.Message != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
		}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
