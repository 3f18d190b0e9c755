package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"portald/internal/apiclient"
	"portald/internal/httpapi"
	"portald/internal/portal"
	"portald/internal/session"
	"portald/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope(data any) map[string]any { return map[string]any{"success": true, "data": data} }

type stack struct {
	srv  *httptest.Server
	p    *portal.Portal
	sess *session.Session
	reg  *prometheus.Registry
}

// newStack wires session, API client, portal and the HTTP API over backend,
// the way serve does, and returns the local server.
func newStack(t *testing.T, backend http.Handler) stack {
	t.Helper()
	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	sess, err := session.Open(session.Options{Path: filepath.Join(t.TempDir(), "session.json")})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	api, err := apiclient.New(apiclient.Config{
		BaseURL:        upstream.URL + "/api",
		Timeout:        2 * time.Second,
		Tokens:         apiclient.TokenFunc(sess.Token),
		OnUnauthorized: sess.Invalidate,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	reg := prometheus.NewRegistry()
	hub := httpapi.NewEventHub(nil)
	t.Cleanup(hub.Close)
	p, err := portal.New(portal.Config{
		Backend:   api,
		Session:   sess,
		Publisher: store.Publishers(hub, store.NewMetricsPublisher(reg)),
		Location:  time.UTC,
	})
	if err != nil {
		t.Fatalf("portal: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	srv := httptest.NewServer(httpapi.NewMux(p, hub))
	t.Cleanup(srv.Close)
	return stack{srv: srv, p: p, sess: sess, reg: reg}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

// resource mirrors the JSON projection of a slot.
type resource struct {
	Key    string          `json:"key"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *string         `json:"error"`
}

// pollResource reads /api/resources/{key} until cond holds.
func pollResource(t *testing.T, base, key string, cond func(resource) bool) resource {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, body := httpGet(t, base+"/api/resources/"+key)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("resource %s: %d %s", key, resp.StatusCode, body)
		}
		var r resource
		if err := json.Unmarshal(body, &r); err != nil {
			t.Fatalf("resource json: %v body=%s", err, body)
		}
		if cond(r) {
			return r
		}
		if time.Now().After(deadline) {
			t.Fatalf("resource %s never matched; last=%s", key, body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
