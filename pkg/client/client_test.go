package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naveenspark/diagrama/pkg/domain"
)

const diagramPath = "/dev/diagrams/with-json"

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL, srv.URL+diagramPath, 5*time.Second)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var creds domain.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if creds.Username != "ada" || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"}) //nolint:errcheck
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		json.NewEncoder(w).Encode(domain.AuthResponse{ //nolint:errcheck
			Token: "tok-123",
			User:  domain.User{ID: "1", Username: "ada"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.Login(context.Background(), domain.Credentials{Username: "ada", Password: "secret"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if resp.Token != "tok-123" {
		t.Errorf("Token = %q, want %q", resp.Token, "tok-123")
	}
	if resp.User.Username != "ada" {
		t.Errorf("Username = %q, want %q", resp.User.Username, "ada")
	}
}

func TestLogin_NumericUserID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.UserID
	}{
		{"nested number", `{"token":"abc","user":{"id":5,"username":"ada"}}`, "5"},
		{"nested string", `{"token":"abc","user":{"id":"u-5","username":"ada"}}`, "u-5"},
		{"top-level number", `{"token":"abc","id":12,"user":{"username":"ada"}}`, "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			resp, err := newTestClient(srv).Login(context.Background(), domain.Credentials{Username: "ada", Password: "secret"})
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}
			if got := resp.Account().ID; got != tt.want {
				t.Errorf("Account().ID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Login(context.Background(), domain.Credentials{Username: "ada", Password: "nope"})
	if err == nil {
		t.Fatal("expected error for unauthorized login")
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("IsStatus(err, 401) = false for %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "invalid credentials") {
		t.Errorf("error = %q, want it to contain the backend message", got)
	}
}

func TestRegister_CookiesFlowToLaterCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/register":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			json.NewEncoder(w).Encode(domain.AuthResponse{Token: "t"}) //nolint:errcheck
		case "/user/verify":
			if ck, err := r.Cookie("sid"); err != nil || ck.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(domain.User{ID: "9", Username: "ada"}) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.Register(context.Background(), domain.Credentials{Username: "ada", Password: "pw"}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	u, err := c.VerifyToken(context.Background(), "t")
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if u.ID != "9" {
		t.Errorf("ID = %q, want %q", u.ID, "9")
	}
}

func TestVerifyToken_SendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if body["token"] != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(domain.User{ID: "1"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.VerifyToken(context.Background(), "tok"); err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	_, err := c.VerifyToken(context.Background(), "other")
	if !IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestGenerateDiagram(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != diagramPath {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "raw-token" {
			t.Errorf("Authorization = %q, want the raw token without Bearer", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if len(r.Cookies()) != 0 {
			t.Errorf("diagram request carried cookies: %v", r.Cookies())
		}
		var body struct {
			JSON map[string]any `json:"json"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.JSON["nodes"] == nil {
			t.Errorf("payload not wrapped under json: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://x/d.png"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.GenerateDiagram(context.Background(), "raw-token", json.RawMessage(`{"nodes":[1,2]}`))
	if err != nil {
		t.Fatalf("GenerateDiagram() error: %v", err)
	}
	if resp.URL != "https://x/d.png" {
		t.Errorf("URL = %q, want %q", resp.URL, "https://x/d.png")
	}
}

func TestGenerateDiagram_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "Forbidden"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.GenerateDiagram(context.Background(), "tok", json.RawMessage(`{}`))
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 HTTPError, got %v", err)
	}
}

func TestFetchBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte("<svg/>")) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	data, mediaType, err := c.FetchBytes(context.Background(), srv.URL+"/d.svg")
	if err != nil {
		t.Fatalf("FetchBytes() error: %v", err)
	}
	if string(data) != "<svg/>" || mediaType != "image/svg+xml" {
		t.Errorf("got (%q, %q)", data, mediaType)
	}

	_, err = c.FetchText(context.Background(), srv.URL+"/missing")
	if !IsStatus(err, http.StatusNotFound) {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "boom"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Login(context.Background(), domain.Credentials{})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Errorf("error = %q, want it to contain 'boom'", got)
	}
}

func TestIsStatus(t *testing.T) {
	if IsStatus(nil, 0) {
		t.Error("IsStatus(nil, 0) = true, want false")
	}
	if IsStatus(errors.New("dial tcp: refused"), 403) {
		t.Error("transport error reported as 403")
	}
	wrapped := errors.Join(errors.New("ctx"), &HTTPError{StatusCode: 403})
	if !IsStatus(wrapped, 403) {
		t.Error("wrapped 403 not detected")
	}
}

func TestDoRequest_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second) // slow server
		json.NewEncoder(w).Encode(domain.AuthResponse{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.Login(ctx, domain.Credentials{})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
