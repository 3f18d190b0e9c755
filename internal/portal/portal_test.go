package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"portald/internal/apiclient"
	"portald/internal/session"
	"portald/internal/store"
	"portald/pkg/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	portal *Portal
	sess   *session.Session
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error { return json.NewDecoder(r.Body).Decode(v) }

func envelope(data any) map[string]any { return map[string]any{"success": true, "data": data} }

// newFixture serves mux as the backend and returns a portal signed in as u1
// unless anonymous is set.
func newFixture(t *testing.T, mux *http.ServeMux, anonymous bool) fixture {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess, err := session.Open(session.Options{Clock: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if !anonymous {
		if err := sess.Login(types.LoginResponse{Token: "tok", User: &types.User{ID: "u1", Name: "Asha Rao"}}); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	api, err := apiclient.New(apiclient.Config{
		BaseURL:        srv.URL + "/api",
		Tokens:         apiclient.TokenFunc(sess.Token),
		OnUnauthorized: sess.Invalidate,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	p, err := New(Config{
		Backend:  api,
		Session:  sess,
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("portal: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return fixture{portal: p, sess: sess}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without backend")
	}
	api, _ := apiclient.New(apiclient.Config{BaseURL: "http://localhost"})
	if _, err := New(Config{Backend: api}); err == nil {
		t.Fatalf("expected error without session")
	}
}

func TestOpenDashboardDerivesView(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header=%q", r.Header.Get("Authorization"))
		}
		writeJSON(w, http.StatusOK, envelope(map[string]any{
			"courses": []any{map[string]any{"title": "DSA"}},
			"batches": []any{map[string]any{
				"name": "Alpha",
				"modules": []any{map[string]any{
					"_id": "m1", "title": "Arrays", "isOpen": true,
					"lectures": []any{map[string]any{"_id": "l1", "endTime": "2026-03-01T10:00:00Z"}},
				}},
			}},
			"upcomingLectures": []any{},
		}))
	})
	f := newFixture(t, mux, false)

	page, err := f.portal.OpenDashboard(testCtx(t), true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if page.Slot.Status != store.StatusReady || !page.Slot.HasData {
		t.Fatalf("slot=%+v", page.Slot)
	}
	if page.View.Completion != 100 || page.View.PrimaryBatchName != "Alpha" || page.View.Greeting != "Asha, your learning runway is clear." {
		t.Fatalf("view=%+v", page.View)
	}
	if page.Sidebar.Initials != "AR" || page.Unavailable != nil {
		t.Fatalf("sidebar=%+v unavailable=%+v", page.Sidebar, page.Unavailable)
	}
}

func TestOpenDashboardFailureNotice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	f := newFixture(t, mux, false)

	page, err := f.portal.OpenDashboard(testCtx(t), true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if page.Slot.Status != store.StatusFailed || page.Slot.Err != DashboardError {
		t.Fatalf("slot=%+v", page.Slot)
	}
	if page.Unavailable == nil || page.Unavailable.Title != "We couldn’t load your dashboard" || page.Unavailable.Message != DashboardError {
		t.Fatalf("unavailable=%+v", page.Unavailable)
	}
	if page.View.QuickStats[0].Value != "—" {
		t.Fatalf("expected pending stats: %+v", page.View.QuickStats)
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/courses", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Session expired"})
	})
	f := newFixture(t, mux, false)

	slot, err := f.portal.OpenCourses(testCtx(t), true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if slot.Status != store.StatusFailed || slot.Err != "Session expired" {
		t.Fatalf("slot=%+v", slot)
	}
	if f.sess.Authenticated() {
		t.Fatalf("session should be invalidated")
	}
}

func TestViewsNeverRefetchLoadedResources(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/courses/{id}/outline", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, envelope(map[string]any{"batches": []any{}}))
	})
	f := newFixture(t, mux, false)
	ctx := testCtx(t)

	for i := 0; i < 3; i++ {
		page, err := f.portal.OpenOutline(ctx, "c1", true)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !page.Empty {
			t.Fatalf("expected empty outline: %+v", page)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d want 1", hits.Load())
	}
	if _, err := f.portal.OpenOutline(ctx, "", true); !store.IsInvalidKey(err) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestOpenModuleLecturesSplits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/modules/m1/lectures", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope([]any{
			map[string]any{"_id": "past", "startTime": "2026-03-01T10:00:00Z"},
			map[string]any{"_id": "next", "startTime": "2026-03-11T10:00:00Z"},
			map[string]any{"_id": "tbd"},
		}))
	})
	f := newFixture(t, mux, false)
	page, err := f.portal.OpenModuleLectures(testCtx(t), "m1", true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(page.Split.Upcoming) != 1 || page.Split.Upcoming[0].ID != "next" || len(page.Split.Completed) != 1 {
		t.Fatalf("split=%+v", page.Split)
	}
}

func TestUpcomingUsesConfiguredWindow(t *testing.T) {
	var days atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/lectures/upcoming", func(w http.ResponseWriter, r *http.Request) {
		days.Store(r.URL.Query().Get("days"))
		writeJSON(w, http.StatusOK, envelope([]any{}))
	})
	f := newFixture(t, mux, false)
	if _, err := f.portal.OpenUpcoming(testCtx(t), true); err != nil {
		t.Fatalf("open: %v", err)
	}
	if days.Load() != "7" {
		t.Fatalf("days=%v", days.Load())
	}
}

func TestWarmLoadsLandingViewsOnce(t *testing.T) {
	var hits atomic.Int32
	ok := func(data any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			writeJSON(w, http.StatusOK, envelope(data))
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/student/dashboard", ok(map[string]any{}))
	mux.HandleFunc("GET /api/student/courses", ok([]any{}))
	mux.HandleFunc("GET /api/student/lectures/upcoming", ok([]any{}))
	mux.HandleFunc("GET /api/student/profile", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	f := newFixture(t, mux, false)
	ctx := testCtx(t)

	if err := f.portal.Warm(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if hits.Load() != 4 {
		t.Fatalf("hits=%d", hits.Load())
	}
	if slot := f.portal.Profile.Select(""); slot.Status != store.StatusFailed || slot.Err != ProfileError {
		t.Fatalf("profile=%+v", slot)
	}
	// Ready slots stay put, the failed profile is retried.
	if err := f.portal.Warm(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if hits.Load() != 5 {
		t.Fatalf("hits=%d want 5", hits.Load())
	}
}

func TestWarmRequiresSession(t *testing.T) {
	f := newFixture(t, http.NewServeMux(), true)
	if err := f.portal.Warm(testCtx(t)); !IsNotAuthenticated(err) {
		t.Fatalf("err=%v", err)
	}
}
