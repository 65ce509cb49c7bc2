package diagram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naveenspark/diagrama/pkg/client"
	"github.com/naveenspark/diagrama/pkg/domain"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeGenerator struct {
	calls    int
	gotToken string
	gotBody  json.RawMessage
	resp     *client.GenerateResponse
	err      error
}

func (f *fakeGenerator) GenerateDiagram(_ context.Context, token string, payload json.RawMessage) (*client.GenerateResponse, error) {
	f.calls++
	f.gotToken = token
	f.gotBody = payload
	return f.resp, f.err
}

func TestGenerate_NonJSONNeverReachesNetwork(t *testing.T) {
	inputs := []string{"not json", "{", `{"a":}`, "flowchart TD; A-->B", "[1,2"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			gen := &fakeGenerator{}
			svc := NewService(gen, staticToken("tok"), nil)
			_, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: in, Type: domain.DiagramFlowchart})
			if !errors.Is(err, ErrMalformedJSON) {
				t.Fatalf("Generate(%q) error = %v, want ErrMalformedJSON", in, err)
			}
			if gen.calls != 0 {
				t.Errorf("network called %d times for malformed JSON", gen.calls)
			}
			if Notice(err) == "" {
				t.Error("malformed JSON must produce a visible notice")
			}
		})
	}
}

func TestGenerate_BlankCode(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t  \n"} {
		gen := &fakeGenerator{}
		svc := NewService(gen, staticToken("tok"), nil)
		if _, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: in, Type: domain.DiagramFlowchart}); !errors.Is(err, ErrEmptyCode) {
			t.Errorf("Generate(%q) error = %v, want ErrEmptyCode", in, err)
		}
		if gen.calls != 0 {
			t.Errorf("network called for blank code %q", in)
		}
	}
}

func TestGenerate_Success(t *testing.T) {
	gen := &fakeGenerator{resp: &client.GenerateResponse{URL: "https://x/d.png"}}
	svc := NewService(gen, staticToken("stored-token"), nil)

	res, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: `  {"nodes":["a"]}  `, Type: domain.DiagramER})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if res.URL != "https://x/d.png" {
		t.Errorf("URL = %q, want %q", res.URL, "https://x/d.png")
	}
	if res.Type != domain.DiagramER {
		t.Errorf("Type = %q, want %q", res.Type, domain.DiagramER)
	}
	if gen.gotToken != "stored-token" {
		t.Errorf("token = %q, want the stored token", gen.gotToken)
	}
	if string(gen.gotBody) != `{"nodes":["a"]}` {
		t.Errorf("payload = %s", gen.gotBody)
	}
}

func TestGenerate_ResponseClasses(t *testing.T) {
	tests := []struct {
		name       string
		resp       *client.GenerateResponse
		err        error
		wantErr    error
		wantNotice bool
	}{
		{"forbidden is silent", nil, &client.HTTPError{StatusCode: 403}, ErrForbidden, false},
		{"unauthorized is visible", nil, &client.HTTPError{StatusCode: 401}, ErrGenerationFailed, true},
		{"server error is visible", nil, &client.HTTPError{StatusCode: 500}, ErrGenerationFailed, true},
		{"transport error is visible", nil, errors.New("dial tcp: refused"), ErrGenerationFailed, true},
		{"missing url is visible", &client.GenerateResponse{}, nil, ErrNoURL, true},
		{"nil response is visible", nil, nil, ErrNoURL, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeGenerator{resp: tt.resp, err: tt.err}, staticToken("t"), nil)
			_, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: `{}`, Type: domain.DiagramFlowchart})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := Notice(err) != ""; got != tt.wantNotice {
				t.Errorf("notice visible = %v, want %v (notice %q)", got, tt.wantNotice, Notice(err))
			}
		})
	}
}

func TestGenerate_AgainstHTTPServer(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"url": "https://x/d.png"}) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, srv.URL+"/dev/diagrams/with-json", 5*time.Second)
	svc := NewService(c, staticToken("tok"), nil)

	res, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: `{"a":1}`, Type: domain.DiagramAWS})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if res.URL != "https://x/d.png" || res.Type != domain.DiagramAWS {
		t.Errorf("result = %+v", res)
	}

	status = http.StatusForbidden
	if _, err := svc.Generate(context.Background(), domain.DiagramRequest{RawText: `{"a":1}`, Type: domain.DiagramAWS}); !errors.Is(err, ErrForbidden) {
		t.Errorf("403 error = %v, want ErrForbidden", err)
	}

	status = http.StatusBadGateway
	_, err = svc.Generate(context.Background(), domain.DiagramRequest{RawText: `{"a":1}`, Type: domain.DiagramAWS})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("502 error = %v, want ErrGenerationFailed", err)
	}
	if n := Notice(err); !strings.Contains(n, "502") {
		t.Errorf("notice = %q, want it to mention 502", n)
	}
}

func TestNotice(t *testing.T) {
	if Notice(nil) != "" {
		t.Error("Notice(nil) should be empty")
	}
	if Notice(ErrForbidden) != "" {
		t.Error("Notice(ErrForbidden) should be empty")
	}
	if Notice(ErrEmptyCode) == "" {
		t.Error("Notice(ErrEmptyCode) should not be empty")
	}
}
