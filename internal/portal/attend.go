package portal

import (
	"context"
	"strings"

	"portald/internal/apiclient"
	"portald/internal/insights"
	"portald/internal/player"
	"portald/internal/store"
	"portald/internal/validate"
	"portald/pkg/types"
)

// Messages of the live lecture flow.
const (
	LectureNotFound   = "Lecture not found"
	NoLiveSession     = "This lecture has no live session yet."
	EmbedTokenFailed  = "Failed to fetch embed token"
	PlayerUnavailable = "Failed to load player"
	StartFailed       = "Failed to start session"
	EndFailed         = "Failed to end session"
	CreateFailed      = "Failed to create session"
)

// Attendance is everything needed to join a live lecture.
type Attendance struct {
	Lecture   types.Lecture        `json:"lecture"`
	View      insights.LectureView `json:"view"`
	PlayerURL string               `json:"playerUrl"`
	// Status is the live session state; nil when it could not be fetched.
	Status *types.LiveSessionStatus `json:"status,omitempty"`
}

// Attend resolves the player URL of a live lecture: it loads the lecture,
// requests an embed token for the signed-in student and fills the first
// usable player template. The live session status is informational and its
// failure does not fail Attend.
func (p *Portal) Attend(ctx context.Context, lectureID string) (Attendance, error) {
	lectureID = strings.TrimSpace(lectureID)
	user, ok := p.currentUser()
	if !ok || !p.sess.Authenticated() || user.Identifier() == "" {
		return Attendance{}, ErrNotAuthenticated
	}
	slot, err := p.Lecture.Load(ctx, lectureID)
	if err != nil {
		if store.IsInvalidKey(err) {
			return Attendance{}, &OperationError{Op: "attend", Message: LectureNotFound, Fields: map[string]string{"lectureId": "This field is required"}}
		}
		return Attendance{}, err
	}
	if !slot.HasData {
		return Attendance{}, &OperationError{Op: "attend", Message: orDefault(slot.Err, LectureNotFound)}
	}
	lec := slot.Data
	out := Attendance{Lecture: lec, View: p.derive.Lecture(lec)}
	if lec.SessionID == "" {
		return out, &OperationError{Op: "attend", Message: NoLiveSession}
	}

	token, err := p.api.EmbedToken(ctx, lec.SessionID, user.Identifier())
	if err != nil {
		return out, &OperationError{
			Op:      "attend",
			Message: orDefault(serverField(err, func(e *apiclient.Error) string { return e.ServerMessage }), EmbedTokenFailed),
			Status:  apiclient.StatusCode(err),
			Err:     err,
		}
	}
	if st, err := p.api.SessionStatus(ctx, lec.SessionID); err != nil {
		p.log.Warn().Str("session_id", lec.SessionID).Err(err).Msg("could not fetch session status")
	} else {
		out.Status = &st
	}
	u, err := player.Build(p.templates, lec.SessionID, token)
	if err != nil {
		return out, &OperationError{Op: "attend", Message: PlayerUnavailable, Err: err}
	}
	out.PlayerURL = u
	p.log.Info().Str("lecture_id", lec.Identifier()).Str("session_id", lec.SessionID).Msg("player ready")
	return out, nil
}

// StartSession marks a live session as started.
func (p *Portal) StartSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error) {
	return p.live(ctx, "start session", StartFailed, req, func(ctx context.Context) (types.LiveSession, error) {
		return p.api.StartSession(ctx, req)
	})
}

// EndSession marks a live session as ended.
func (p *Portal) EndSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error) {
	return p.live(ctx, "end session", EndFailed, req, func(ctx context.Context) (types.LiveSession, error) {
		return p.api.EndSession(ctx, req)
	})
}

// CreateSession schedules a live session for a lecture. The lecture's cached
// detail is refreshed so the new session id shows up.
func (p *Portal) CreateSession(ctx context.Context, req types.CreateLiveSessionRequest) (types.LiveSession, error) {
	ls, err := p.live(ctx, "create session", CreateFailed, req, func(ctx context.Context) (types.LiveSession, error) {
		return p.api.CreateSession(ctx, req)
	})
	if err == nil {
		if rerr := p.Lecture.Refetch(req.LectureID); rerr != nil {
			p.log.Debug().Err(rerr).Msg("refresh lecture after create")
		}
	}
	return ls, err
}

func (p *Portal) live(ctx context.Context, op, fallback string, req any, call func(context.Context) (types.LiveSession, error)) (types.LiveSession, error) {
	if !p.sess.Authenticated() {
		return types.LiveSession{}, ErrNotAuthenticated
	}
	if err := validate.Struct(req); err != nil {
		return types.LiveSession{}, fieldsError(op, err)
	}
	ls, err := call(ctx)
	if err != nil {
		return types.LiveSession{}, &OperationError{
			Op:      op,
			Message: orDefault(serverField(err, func(e *apiclient.Error) string { return e.ServerMessage }), fallback),
			Status:  apiclient.StatusCode(err),
			Err:     err,
		}
	}
	return ls, nil
}
