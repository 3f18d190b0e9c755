// Package httpapi serves the portal's view models over a local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portald/internal/insights"
	"portald/internal/portal"
	"portald/internal/store"
	"portald/pkg/types"
)

// startedAt anchors the uptime reported by /api/status.
var startedAt = time.Now()

// resourceResponse projects a typed slot for the view layer.
func resourceResponse[T any](slot store.Slot[T]) types.ResourceResponse {
	out := types.ResourceResponse{Key: slot.Key.String(), Status: string(slot.Status)}
	if slot.HasData {
		out.Data = slot.Data
	}
	if slot.Status == store.StatusFailed {
		msg := slot.Err
		out.Error = &msg
	}
	if !slot.UpdatedAt.IsZero() {
		out.UpdatedAt = slot.UpdatedAt.Unix()
	}
	return out
}

func snapshotResponse(snap store.Snapshot) types.ResourceResponse {
	return resourceResponse(store.Slot[any]{
		Key:       snap.Key,
		Status:    snap.Status,
		Data:      snap.Data,
		HasData:   snap.HasData,
		Err:       snap.Err,
		UpdatedAt: snap.UpdatedAt,
	})
}

type dashboardResponse struct {
	types.ResourceResponse
	View        insights.DashboardView   `json:"view"`
	Sidebar     insights.SidebarProgress `json:"sidebar"`
	Unavailable *portal.Notice           `json:"unavailable,omitempty"`
}

type outlineResponse struct {
	types.ResourceResponse
	Empty bool `json:"empty"`
}

type lecturesResponse struct {
	types.ResourceResponse
	Split insights.LectureSplit `json:"split"`
}

type lectureResponse struct {
	types.ResourceResponse
	View *insights.LectureView `json:"view,omitempty"`
}

type profileResponse struct {
	types.ResourceResponse
	Preferences types.Preferences                  `json:"preferences"`
	Forms       map[portal.Section]types.FormStatus `json:"forms"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *types.User `json:"user,omitempty"`
	ExpiresAt     int64       `json:"expires_at_unix,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type server struct {
	p *portal.Portal
}

// NewMux builds the HTTP API over p. hub may be nil, in which case
// /api/events is not served.
func NewMux(p *portal.Portal, hub *EventHub) http.Handler {
	s := &server{p: p}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	if mw := corsMiddleware(); mw != nil {
		r.Use(mw)
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		if hub != nil {
			r.Get("/events", hub.ServeHTTP)
		}
		r.Group(func(r chi.Router) {
			// Compression for JSON endpoints
			r.Use(middleware.Compress(5))

			r.Get("/status", s.status)
			r.Get("/resources/{key}", s.resource)
			r.Post("/resources/{key}/retry", s.retry)
			r.Post("/resources/{key}/refresh", s.refresh)

			r.Get("/dashboard", s.dashboard)
			r.Get("/courses", s.courses)
			r.Get("/catalog", s.catalog)
			r.Get("/courses/{id}/outline", s.outline)
			r.Get("/modules/{id}/lectures", s.moduleLectures)
			r.Get("/lectures/upcoming", s.upcoming)
			r.Get("/lectures/{id}", s.lecture)
			r.Get("/lectures/{id}/attend", s.attend)
			r.Get("/profile", s.profile)
			r.Put("/profile/{section}", s.updateProfile)
			r.Post("/profile/photo", s.uploadPhoto)

			r.Get("/auth/session", s.session)
			r.Post("/auth/login", s.login)
			r.Post("/auth/logout", s.logout)
			r.Post("/auth/signup", s.signup)
			r.Post("/auth/verify-email/confirm", s.confirmEmail)
			r.Post("/auth/verify-email/request", s.requestVerification)

			r.Post("/live/start", s.startSession)
			r.Post("/live/end", s.endSession)
			r.Post("/live/create", s.createSession)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if p.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("closed"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// wants reports whether the request asked to block until the resource settles.
func wants(r *http.Request) bool {
	switch r.URL.Query().Get("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}

// view runs open with a context bounded for waiting when the request asks to
// wait, and the request context otherwise.
func view(w http.ResponseWriter, r *http.Request, open func(ctx context.Context, wait bool) (any, error)) {
	wait := wants(r)
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if wait {
		ctx, cancel = waitContext(r)
	} else {
		ctx, cancel = requestContext(r)
	}
	defer cancel()
	out, err := open(ctx, wait)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	snaps := s.p.Store().Status()
	out := types.StatusResponse{
		Authenticated:  s.p.Session().Authenticated(),
		Slots:          make([]types.ResourceResponse, 0, len(snaps)),
		UptimeSeconds:  int64(time.Since(startedAt).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	for _, snap := range snaps {
		switch snap.Status {
		case store.StatusLoading:
			out.Loading++
		case store.StatusFailed:
			out.Failed++
		}
		out.Slots = append(out.Slots, snapshotResponse(snap))
	}
	writeJSON(w, http.StatusOK, out)
}

func keyParam(r *http.Request) (store.Key, error) {
	raw := chi.URLParam(r, "key")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return store.ParseKey(raw)
}

// resource is a pure read; it never starts a fetch.
func (s *server) resource(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.p.Store().Validate(key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(s.p.Store().Select(key)))
}

func (s *server) retry(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err == nil {
		_, err = s.p.Store().Trigger(key)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshotResponse(s.p.Store().Select(key)))
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err == nil {
		err = s.p.Store().Refetch(key)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshotResponse(s.p.Store().Select(key)))
}

func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenDashboard(ctx, wait)
		if err != nil {
			return nil, err
		}
		return dashboardResponse{
			ResourceResponse: resourceResponse(page.Slot),
			View:             page.View,
			Sidebar:          page.Sidebar,
			Unavailable:      page.Unavailable,
		}, nil
	})
}

func (s *server) courses(w http.ResponseWriter, r *http.Request) {
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		slot, err := s.p.OpenCourses(ctx, wait)
		return resourceResponse(slot), err
	})
}

func (s *server) catalog(w http.ResponseWriter, r *http.Request) {
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		slot, err := s.p.OpenCatalog(ctx, wait)
		return resourceResponse(slot), err
	})
}

func (s *server) outline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenOutline(ctx, id, wait)
		return outlineResponse{ResourceResponse: resourceResponse(page.Slot), Empty: page.Empty}, err
	})
}

func (s *server) moduleLectures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenModuleLectures(ctx, id, wait)
		return lecturesResponse{ResourceResponse: resourceResponse(page.Slot), Split: page.Split}, err
	})
}

func (s *server) upcoming(w http.ResponseWriter, r *http.Request) {
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenUpcoming(ctx, wait)
		return lecturesResponse{ResourceResponse: resourceResponse(page.Slot), Split: page.Split}, err
	})
}

func (s *server) lecture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenLecture(ctx, id, wait)
		return lectureResponse{ResourceResponse: resourceResponse(page.Slot), View: page.View}, err
	})
}

func (s *server) profile(w http.ResponseWriter, r *http.Request) {
	view(w, r, func(ctx context.Context, wait bool) (any, error) {
		page, err := s.p.OpenProfile(ctx, wait)
		return profileResponse{
			ResourceResponse: resourceResponse(page.Slot),
			Preferences:      page.Preferences,
			Forms:            page.Forms,
		}, err
	})
}

func (s *server) attend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := waitContext(r)
	defer cancel()
	att, err := s.p.Attend(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

// updateSection decodes a section body and runs its portal update.
func updateSection[T any](s *server, w http.ResponseWriter, r *http.Request, section portal.Section, update func(context.Context, T) (types.Profile, error)) {
	var in T
	if !decodeJSON(w, r, &in) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	prof, err := update(ctx, in)
	s.writeProfile(w, section, prof, err)
}

func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	section := portal.Section(chi.URLParam(r, "section"))
	switch section {
	case portal.SectionBasic:
		updateSection(s, w, r, section, s.p.UpdateBasic)
	case portal.SectionEducation:
		updateSection(s, w, r, section, s.p.UpdateEducation)
	case portal.SectionLinks:
		updateSection(s, w, r, section, s.p.UpdateLinks)
	case portal.SectionPreferences:
		updateSection(s, w, r, section, s.p.UpdatePreferences)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown profile section: "+string(section))
	}
}

func (s *server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes*photoBodyFactor)
	file, hdr, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "multipart field \"photo\" is required")
		return
	}
	defer file.Close()
	ctx, cancel := requestContext(r)
	defer cancel()
	prof, err := s.p.UploadPhoto(ctx, hdr.Filename, file)
	s.writeProfile(w, portal.SectionPhoto, prof, err)
}

func (s *server) writeProfile(w http.ResponseWriter, section portal.Section, prof types.Profile, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": prof,
		"form":    s.p.FormStatus(section),
	})
}

func (s *server) sessionState() sessionResponse {
	sess := s.p.Session()
	out := sessionResponse{Authenticated: sess.Authenticated()}
	if !out.Authenticated {
		return out
	}
	if u, ok := sess.User(); ok {
		out.User = &u
	}
	if exp, ok := sess.ExpiresAt(); ok {
		out.ExpiresAt = exp.Unix()
	}
	return out
}

func (s *server) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if _, err := s.p.Login(ctx, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.p.Logout(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var form types.SignupForm
	if !decodeJSON(w, r, &form) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	msg, err := s.p.Signup(ctx, form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

func (s *server) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VerificationID string `json:"verificationId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	msg, err := s.p.ConfirmEmail(ctx, body.VerificationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *server) requestVerification(w http.ResponseWriter, r *http.Request) {
	var body types.VerifyEmailRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	msg, err := s.p.RequestVerification(ctx, body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// live decodes a live session request and runs call.
func live[T any](w http.ResponseWriter, r *http.Request, call func(context.Context, T) (types.LiveSession, error)) {
	var req T
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	ls, err := call(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (s *server) startSession(w http.ResponseWriter, r *http.Request) { live(w, r, s.p.StartSession) }

func (s *server) endSession(w http.ResponseWriter, r *http.Request) { live(w, r, s.p.EndSession) }

func (s *server) createSession(w http.ResponseWriter, r *http.Request) { live(w, r, s.p.CreateSession) }
