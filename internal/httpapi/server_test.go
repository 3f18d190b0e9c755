package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"portald/internal/apiclient"
	"portald/internal/portal"
	"portald/internal/session"
	"portald/internal/store"
	"portald/pkg/types"
)

type testEnv struct {
	h    http.Handler
	p    *portal.Portal
	sess *session.Session
}

func backendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(data any) map[string]any { return map[string]any{"success": true, "data": data} }

// newTestEnv serves backend as the remote API and returns the local mux over
// a portal signed in as u1 unless anonymous is set.
func newTestEnv(t *testing.T, backend *http.ServeMux, anonymous bool, hub *EventHub) testEnv {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	sess, err := session.Open(session.Options{})
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
	cfg := portal.Config{Backend: api, Session: sess, Location: time.UTC}
	if hub != nil {
		cfg.Publisher = hub
	}
	p, err := portal.New(cfg)
	if err != nil {
		t.Fatalf("portal: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return testEnv{h: NewMux(p, hub), p: p, sess: sess}
}

func (e testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v body=%s", err, rec.Body.String())
	}
	return out
}

func awaitKey(t *testing.T, p *portal.Portal, key store.Key) store.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	snap, err := p.Store().Await(ctx, key)
	if err != nil {
		t.Fatalf("await %s: %v", key, err)
	}
	return snap
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestReadyzFollowsPortalLifecycle(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	_ = env.p.Close()
	rec := env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "closed") {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestDashboardWaitReturnsDerivedView(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/dashboard", func(w http.ResponseWriter, r *http.Request) {
		backendJSON(w, http.StatusOK, ok(map[string]any{"greeting": "Welcome back, Asha"}))
	})
	env := newTestEnv(t, backend, false, nil)

	rec := env.do(t, http.MethodGet, "/api/dashboard?wait=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	body := decode[dashboardResponse](t, rec)
	if body.Status != string(store.StatusReady) || body.Key != "dashboard" || body.Error != nil {
		t.Fatalf("resource=%+v", body.ResourceResponse)
	}
	if body.View.Greeting != "Welcome back, Asha" || body.Sidebar.Initials != "AR" {
		t.Fatalf("view=%+v sidebar=%+v", body.View, body.Sidebar)
	}
	if body.UpdatedAt == 0 {
		t.Fatalf("expected updated_at_unix")
	}
}

func TestViewWithoutWaitReportsLoading(t *testing.T) {
	release := make(chan struct{})
	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/courses", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		backendJSON(w, http.StatusOK, ok([]any{map[string]any{"title": "DSA"}}))
	})
	env := newTestEnv(t, backend, false, nil)

	rec := env.do(t, http.MethodGet, "/api/courses", "")
	body := decode[types.ResourceResponse](t, rec)
	if rec.Code != http.StatusOK || body.Status != string(store.StatusLoading) || body.Data != nil {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
	close(release)
	awaitKey(t, env.p, env.p.Courses.Key(""))

	body = decode[types.ResourceResponse](t, env.do(t, http.MethodGet, "/api/courses", ""))
	if body.Status != string(store.StatusReady) || body.Data == nil {
		t.Fatalf("body=%+v", body)
	}
}

func TestWaitTimeoutMaps504(t *testing.T) {
	defer SetWaitTimeout(15 * time.Second)
	SetWaitTimeout(50 * time.Millisecond)

	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/profile", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	env := newTestEnv(t, backend, false, nil)

	rec := env.do(t, http.MethodGet, "/api/profile?wait=1", "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestResourceEndpointIsPureRead(t *testing.T) {
	var hits atomic.Int32
	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/dashboard", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		backendJSON(w, http.StatusOK, ok(map[string]any{}))
	})
	env := newTestEnv(t, backend, false, nil)

	body := decode[types.ResourceResponse](t, env.do(t, http.MethodGet, "/api/resources/dashboard", ""))
	if body.Status != string(store.StatusNotStarted) || hits.Load() != 0 {
		t.Fatalf("body=%+v hits=%d", body, hits.Load())
	}
	if rec := env.do(t, http.MethodGet, "/api/resources/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown kind status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/resources/courseOutline", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing param status=%d", rec.Code)
	}
}

func TestRetryAndRefresh(t *testing.T) {
	var hits atomic.Int32
	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/courses/{id}/outline", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		backendJSON(w, http.StatusOK, ok(map[string]any{"batches": []any{}}))
	})
	env := newTestEnv(t, backend, false, nil)
	key := store.K(portal.KindCourseOutline, "c1")

	rec := env.do(t, http.MethodGet, "/api/courses/c1/outline?wait=1", "")
	body := decode[outlineResponse](t, rec)
	if body.Status != string(store.StatusFailed) || body.Error == nil || *body.Error != portal.CourseOutlineError {
		t.Fatalf("body=%+v", body)
	}

	if rec := env.do(t, http.MethodPost, "/api/resources/courseOutline:c1/retry", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("retry status=%d", rec.Code)
	}
	if snap := awaitKey(t, env.p, key); snap.Status != store.StatusReady {
		t.Fatalf("after retry=%+v", snap)
	}
	// retry on a ready slot is a no-op, refresh always refetches
	env.do(t, http.MethodPost, "/api/resources/courseOutline:c1/retry", "")
	if hits.Load() != 2 {
		t.Fatalf("hits=%d want 2", hits.Load())
	}
	if rec := env.do(t, http.MethodPost, "/api/resources/courseOutline:c1/refresh", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("refresh status=%d", rec.Code)
	}
	awaitKey(t, env.p, key)
	if hits.Load() != 3 {
		t.Fatalf("hits=%d want 3", hits.Load())
	}
}

func TestStatusCountsSlots(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("GET /api/student/courses", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	env := newTestEnv(t, backend, false, nil)
	env.do(t, http.MethodGet, "/api/courses?wait=1", "")

	body := decode[types.StatusResponse](t, env.do(t, http.MethodGet, "/api/status", ""))
	if !body.Authenticated || body.Failed != 1 || len(body.Slots) != 1 || body.Slots[0].Key != "courses" {
		t.Fatalf("status=%+v", body)
	}
}

func TestLoginStoresSession(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		backendJSON(w, http.StatusOK, ok(map[string]any{"token": "fresh", "user": map[string]any{"_id": "u7", "name": "Ravi"}}))
	})
	env := newTestEnv(t, backend, true, nil)

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@example.in","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decode[sessionResponse](t, rec)
	if !body.Authenticated || body.User == nil || body.User.ID != "u7" {
		t.Fatalf("body=%+v", body)
	}
	if strings.Contains(rec.Body.String(), "fresh") {
		t.Fatalf("token leaked: %s", rec.Body.String())
	}
	if env.sess.Token() != "fresh" {
		t.Fatalf("session token=%q", env.sess.Token())
	}
}

func TestLoginRejectedCarriesFields(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		backendJSON(w, http.StatusUnauthorized, map[string]any{"message": "bad"})
	})
	env := newTestEnv(t, backend, true, nil)

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@example.in","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
	body := decode[types.ErrorResponse](t, rec)
	if body.Error != portal.InvalidCredentials || body.Fields["password"] == "" || body.Code != http.StatusUnauthorized {
		t.Fatalf("body=%+v", body)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"nope"}`)
	body := decode[types.ErrorResponse](t, rec)
	if rec.Code != http.StatusBadRequest || body.Fields["email"] == "" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
}

func TestBadJSONAndMediaType(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	if rec := env.do(t, http.MethodPost, "/api/auth/login", "not-json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("media type status=%d", rec.Code)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("POST /api/auth/verify-email/request", func(w http.ResponseWriter, r *http.Request) {
		backendJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	env := newTestEnv(t, backend, true, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-email/request", strings.NewReader(`{"email":"asha@example.in"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decode[messageResponse](t, rec); body.Message != portal.VerificationSent {
		t.Fatalf("body=%+v", body)
	}
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	big := `{"email":"` + strings.Repeat("a", (1<<20)+10) + `"}`
	if rec := env.do(t, http.MethodPost, "/api/auth/login", big); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", rec.Code)
	}
}

func TestAttendRequiresSignIn(t *testing.T) {
	env := newTestEnv(t, http.NewServeMux(), true, nil)
	rec := env.do(t, http.MethodGet, "/api/lectures/l1/attend", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestUpdateProfileSections(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("PUT /api/student/profile/preferences", func(w http.ResponseWriter, r *http.Request) {
		backendJSON(w, http.StatusOK, ok(map[string]any{"_id": "u1", "preferences": map[string]any{"communication": "email"}}))
	})
	env := newTestEnv(t, backend, false, nil)

	if rec := env.do(t, http.MethodPut, "/api/profile/avatar", `{}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown section status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPut, "/api/profile/preferences", `{"communication":"email"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Profile types.Profile    `json:"profile"`
		Form    types.FormStatus `json:"form"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Profile.Preferences.Communication != "email" || body.Form.State != portal.FormSucceeded {
		t.Fatalf("body=%+v", body)
	}
	if rec := env.do(t, http.MethodPut, "/api/profile/preferences", `{"communication":"pigeon"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("validation status=%d", rec.Code)
	}
}

func TestUploadPhoto(t *testing.T) {
	backend := http.NewServeMux()
	backend.HandleFunc("POST /api/student/profile/photo", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("photo"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		backendJSON(w, http.StatusOK, ok(map[string]any{"_id": "u1", "photoUrl": "https://cdn.example/u1.png"}))
	})
	env := newTestEnv(t, backend, false, nil)

	if rec := env.do(t, http.MethodPost, "/api/profile/photo", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status=%d", rec.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("photo", "u1.png")
	_, _ = fw.Write([]byte("png"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/profile/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cdn.example") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	// Enable CORS temporarily
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	env := newTestEnv(t, http.NewServeMux(), true, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestStatusForMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{portal.ErrNotAuthenticated, http.StatusUnauthorized},
		{store.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&portal.OperationError{Op: "x", Message: "m", Status: 503}, http.StatusBadGateway},
		{&portal.OperationError{Op: "x", Message: "m", Status: 409}, http.StatusConflict},
		{&portal.OperationError{Op: "x", Message: "m", Fields: map[string]string{"a": "b"}}, http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v)=%d want %d", tc.err, got, tc.want)
		}
	}
	if _, msg := statusFor(&portal.OperationError{Op: "x", Message: "Shown", Err: context.Canceled}); msg != "Shown" {
		t.Fatalf("message=%q", msg)
	}
}
