// Package diagram turns a code string into a generated diagram.
package diagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/naveenspark/diagrama/pkg/client"
	"github.com/naveenspark/diagrama/pkg/domain"
)

var (
	// ErrEmptyCode means there is nothing to generate from.
	ErrEmptyCode = errors.New("please enter code to generate the diagram")
	// ErrMalformedJSON means the code string is not valid JSON.
	ErrMalformedJSON = errors.New("malformed JSON")
	// ErrForbidden is the service rejecting the token. It is reported silently.
	ErrForbidden = errors.New("diagram service refused the token")
	// ErrGenerationFailed covers every other unsuccessful response.
	ErrGenerationFailed = errors.New("could not generate the diagram")
	// ErrNoURL is a success response without a usable url.
	ErrNoURL = fmt.Errorf("%w: response has no url", ErrGenerationFailed)
)

// Generator posts the parsed payload to the diagram service.
type Generator interface {
	GenerateDiagram(ctx context.Context, token string, payload json.RawMessage) (*client.GenerateResponse, error)
}

// TokenSource yields the token stored in durable storage.
type TokenSource interface {
	Token() string
}

// Service runs one generation attempt per call.
type Service struct {
	gen    Generator
	tokens TokenSource
	logger *slog.Logger
}

// NewService wires a Service. The token is read from tokens on every call.
func NewService(gen Generator, tokens TokenSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{gen: gen, tokens: tokens, logger: logger}
}

// Parse validates code and returns it as raw JSON.
func Parse(code string) (json.RawMessage, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	trimmed := []byte(strings.TrimSpace(code))
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return json.RawMessage(trimmed), nil
}

// Generate validates req.RawText, posts it and interprets the response.
// req.Type only labels the result.
func (s *Service) Generate(ctx context.Context, req domain.DiagramRequest) (*domain.DiagramResult, error) {
	payload, err := Parse(req.RawText)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, payload, req.Type)
}

// Send is the network phase of Generate for an already parsed payload.
func (s *Service) Send(ctx context.Context, payload json.RawMessage, kind domain.DiagramType) (*domain.DiagramResult, error) {
	resp, err := s.gen.GenerateDiagram(ctx, s.tokens.Token(), payload)
	if err != nil {
		if client.IsStatus(err, http.StatusForbidden) {
			s.logger.Info("diagram request forbidden", "type", kind)
			return nil, ErrForbidden
		}
		s.logger.Warn("diagram request failed", "type", kind, "status", client.StatusOf(err), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.URL) == "" {
		s.logger.Warn("diagram response without url", "type", kind)
		return nil, ErrNoURL
	}
	s.logger.Info("diagram generated", "type", kind, "url", resp.URL)
	return &domain.DiagramResult{URL: resp.URL, Type: kind}, nil
}

// Notice returns the message shown to the user for err. Forbidden responses
// and nil errors produce no message.
func Notice(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrForbidden):
		return ""
	case errors.Is(err, ErrEmptyCode):
		return ErrEmptyCode.Error()
	case errors.Is(err, ErrMalformedJSON):
		return "error generating the diagram: check that the JSON is well formed"
	case errors.Is(err, ErrNoURL):
		return "could not generate the diagram"
	case errors.Is(err, ErrGenerationFailed):
		return "error generating the diagram: " + rootCause(err)
	default:
		return err.Error()
	}
}

func rootCause(err error) string {
	if status := client.StatusOf(err); status != 0 {
		return fmt.Sprintf("service returned %d", status)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "request timed out"
	}
	return "service unreachable"
}
