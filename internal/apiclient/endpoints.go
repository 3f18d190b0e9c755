package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"portald/pkg/types"
)

// ErrNoEmbedToken is returned when the embed-token endpoint answers without a token.
var ErrNoEmbedToken = errors.New("no token received from server")

// Signup registers a new student.
func (c *Client) Signup(ctx context.Context, req types.SignupRequest) (types.MessageResponse, error) {
	var out types.MessageResponse
	err := c.doRaw(ctx, request{method: http.MethodPost, path: "/auth/signup/student", body: req}, &out)
	return out, err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error) {
	var out types.LoginResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: req}, &out)
	return out, err
}

// ConfirmEmail confirms an email verification link.
func (c *Client) ConfirmEmail(ctx context.Context, verificationID string) (types.MessageResponse, error) {
	var out types.MessageResponse
	body := types.VerifyEmailConfirmRequest{VerificationID: verificationID}
	err := c.doRaw(ctx, request{method: http.MethodPost, path: "/auth/verify-email/confirm", body: body}, &out)
	return out, err
}

// RequestVerification asks the backend to resend the verification email.
func (c *Client) RequestVerification(ctx context.Context, email string) (types.MessageResponse, error) {
	var out types.MessageResponse
	body := types.VerifyEmailRequest{Email: email}
	err := c.doRaw(ctx, request{method: http.MethodPost, path: "/auth/verify-email/request", body: body}, &out)
	return out, err
}

// Catalog lists the public learning tracks.
func (c *Client) Catalog(ctx context.Context) ([]types.CatalogCourse, error) {
	var out []types.CatalogCourse
	err := c.do(ctx, request{method: http.MethodGet, path: "/courses"}, &out)
	return out, err
}

// Dashboard fetches the student dashboard.
func (c *Client) Dashboard(ctx context.Context) (types.Dashboard, error) {
	var out types.Dashboard
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/dashboard"}, &out)
	return out, err
}

// Courses lists the student's enrollments.
func (c *Client) Courses(ctx context.Context) ([]types.Course, error) {
	var out []types.Course
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/courses"}, &out)
	return out, err
}

// CourseOutline fetches the batches and modules of a course.
func (c *Client) CourseOutline(ctx context.Context, courseID string) (types.CourseOutline, error) {
	var out types.CourseOutline
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/courses/" + url.PathEscape(courseID) + "/outline"}, &out)
	return out, err
}

// ModuleLectures lists the lectures of a module.
func (c *Client) ModuleLectures(ctx context.Context, moduleID string) ([]types.Lecture, error) {
	var out []types.Lecture
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/modules/" + url.PathEscape(moduleID) + "/lectures"}, &out)
	return out, err
}

// UpcomingLectures lists lectures starting within the next days days.
func (c *Client) UpcomingLectures(ctx context.Context, days int) ([]types.Lecture, error) {
	if days <= 0 {
		days = 7
	}
	var out []types.Lecture
	q := url.Values{"days": {strconv.Itoa(days)}}
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/lectures/upcoming", query: q}, &out)
	return out, err
}

// Lecture fetches one lecture.
func (c *Client) Lecture(ctx context.Context, lectureID string) (types.Lecture, error) {
	var out types.Lecture
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/lectures/" + url.PathEscape(lectureID)}, &out)
	return out, err
}

// Profile fetches the student profile.
func (c *Client) Profile(ctx context.Context) (types.Profile, error) {
	var out types.Profile
	err := c.do(ctx, request{method: http.MethodGet, path: "/student/profile"}, &out)
	return out, err
}

// UpdateBasic saves the personal information section.
func (c *Client) UpdateBasic(ctx context.Context, in types.BasicProfileUpdate) (types.Profile, error) {
	return c.putProfile(ctx, "basic", in)
}

// UpdateEducation saves the education section.
func (c *Client) UpdateEducation(ctx context.Context, in types.Education) (types.Profile, error) {
	return c.putProfile(ctx, "education", types.EducationUpdate{Education: in})
}

// UpdateLinks saves the profile links section.
func (c *Client) UpdateLinks(ctx context.Context, in types.ProfileLinks) (types.Profile, error) {
	return c.putProfile(ctx, "links", types.LinksUpdate{ProfileLinks: in})
}

// UpdatePreferences saves the preferences section.
func (c *Client) UpdatePreferences(ctx context.Context, in types.Preferences) (types.Profile, error) {
	return c.putProfile(ctx, "preferences", in)
}

func (c *Client) putProfile(ctx context.Context, section string, body any) (types.Profile, error) {
	var out types.Profile
	err := c.do(ctx, request{method: http.MethodPut, path: "/student/profile/" + section, body: body}, &out)
	return out, err
}

// UploadPhoto uploads a profile photo as multipart form field "photo".
func (c *Client) UploadPhoto(ctx context.Context, filename string, r io.Reader) (types.Profile, error) {
	body, ct, err := multipartFile("photo", filename, r)
	if err != nil {
		return types.Profile{}, err
	}
	var out types.Profile
	err = c.do(ctx, request{method: http.MethodPost, path: "/student/profile/photo", body: body, contentType: ct}, &out)
	return out, err
}

// EmbedToken fetches a player token for a live session.
func (c *Client) EmbedToken(ctx context.Context, sessionID, userID string) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("sessionId and userId are required")
	}
	var out types.EmbedTokenResponse
	q := url.Values{"sessionId": {sessionID}, "userId": {userID}}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/fermion/embed-token", query: q}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrNoEmbedToken
	}
	return out.Token, nil
}

// SessionStatus reports the state of a live session.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (types.LiveSessionStatus, error) {
	var out types.LiveSessionStatus
	if sessionID == "" {
		return out, errors.New("sessionId is required")
	}
	q := url.Values{"sessionId": {sessionID}}
	err := c.do(ctx, request{method: http.MethodGet, path: "/fermion/session-status", query: q}, &out)
	return out, err
}

// StartSession starts a live session (teacher only).
func (c *Client) StartSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error) {
	return c.liveSession(ctx, "/fermion/start-session", req)
}

// EndSession ends a live session (teacher only).
func (c *Client) EndSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error) {
	return c.liveSession(ctx, "/fermion/end-session", req)
}

// CreateSession schedules a live session (admin only).
func (c *Client) CreateSession(ctx context.Context, req types.CreateLiveSessionRequest) (types.LiveSession, error) {
	return c.liveSession(ctx, "/fermion/create-session", req)
}

func (c *Client) liveSession(ctx context.Context, path string, body any) (types.LiveSession, error) {
	var out types.LiveSession
	err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &out)
	return out, err
}
