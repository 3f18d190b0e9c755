// Package portal binds the resource store to the backend API and implements
// the student-facing operations: sign-in, signup, browsing, profile edits and
// live lecture attendance.
package portal

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portald/internal/apiclient"
	"portald/internal/insights"
	"portald/internal/player"
	"portald/internal/session"
	"portald/internal/store"
	"portald/pkg/types"
)

// Resource kinds.
const (
	KindDashboard      store.Kind = "dashboard"
	KindCourses        store.Kind = "courses"
	KindCourseOutline  store.Kind = "courseOutline"
	KindModuleLectures store.Kind = "moduleLectures"
	KindLectureDetail  store.Kind = "lectureDetail"
	KindUpcoming       store.Kind = "upcomingLectures"
	KindProfile        store.Kind = "profile"
	KindCatalog        store.Kind = "catalog"
)

// Messages shown when a fetch fails without a usable server message.
const (
	DashboardError      = "We couldn’t load your dashboard yet."
	CoursesError        = "We couldn’t load your courses yet."
	CourseOutlineError  = "We couldn't load the course outline yet."
	UpcomingError       = "We couldn't load upcoming lectures."
	ModuleLecturesError = "We couldn't load module lectures."
	LectureDetailError  = "We couldn't load lecture details."
	ProfileError        = "Could not load profile data."
	CatalogError        = "We couldn't load the course catalog."
)

// DefaultUpcomingDays is the upcoming lectures window when unset.
const DefaultUpcomingDays = 7

// Backend is the subset of the REST API the portal uses.
type Backend interface {
	Signup(ctx context.Context, req types.SignupRequest) (types.MessageResponse, error)
	Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error)
	ConfirmEmail(ctx context.Context, verificationID string) (types.MessageResponse, error)
	RequestVerification(ctx context.Context, email string) (types.MessageResponse, error)
	Catalog(ctx context.Context) ([]types.CatalogCourse, error)
	Dashboard(ctx context.Context) (types.Dashboard, error)
	Courses(ctx context.Context) ([]types.Course, error)
	CourseOutline(ctx context.Context, courseID string) (types.CourseOutline, error)
	ModuleLectures(ctx context.Context, moduleID string) ([]types.Lecture, error)
	UpcomingLectures(ctx context.Context, days int) ([]types.Lecture, error)
	Lecture(ctx context.Context, lectureID string) (types.Lecture, error)
	Profile(ctx context.Context) (types.Profile, error)
	UpdateBasic(ctx context.Context, in types.BasicProfileUpdate) (types.Profile, error)
	UpdateEducation(ctx context.Context, in types.Education) (types.Profile, error)
	UpdateLinks(ctx context.Context, in types.ProfileLinks) (types.Profile, error)
	UpdatePreferences(ctx context.Context, in types.Preferences) (types.Profile, error)
	UploadPhoto(ctx context.Context, filename string, r io.Reader) (types.Profile, error)
	EmbedToken(ctx context.Context, sessionID, userID string) (string, error)
	SessionStatus(ctx context.Context, sessionID string) (types.LiveSessionStatus, error)
	StartSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error)
	EndSession(ctx context.Context, req types.LiveSessionRequest) (types.LiveSession, error)
	CreateSession(ctx context.Context, req types.CreateLiveSessionRequest) (types.LiveSession, error)
}

var _ Backend = (*apiclient.Client)(nil)

// Config wires a Portal.
type Config struct {
	Backend Backend
	Session *session.Session
	// Publisher receives store events, e.g. metrics and the event stream.
	Publisher store.EventPublisher
	// UpcomingDays is the window of the upcoming lectures view.
	UpcomingDays int
	// Location formats lecture times. Defaults to UTC.
	Location *time.Location
	// PlayerTemplate is tried before the built-in player URL templates.
	PlayerTemplate string
	Clock          func() time.Time
	// BaseContext bounds every background fetch; canceling it aborts them.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// Portal is the student client. Safe for concurrent use.
type Portal struct {
	api       Backend
	sess      *session.Session
	store     *store.Store
	derive    *insights.Deriver
	templates []string
	days      int
	log       zerolog.Logger

	Dashboard      store.Resource[types.Dashboard]
	Courses        store.Resource[[]types.Course]
	Outline        store.Resource[types.CourseOutline]
	ModuleLectures store.Resource[[]types.Lecture]
	Lecture        store.Resource[types.Lecture]
	Upcoming       store.Resource[[]types.Lecture]
	Profile        store.Resource[types.Profile]
	Catalog        store.Resource[[]types.CatalogCourse]

	mu    sync.Mutex
	forms map[Section]types.FormStatus
}

// New builds a Portal and its store.
func New(cfg Config) (*Portal, error) {
	if cfg.Backend == nil {
		return nil, errors.New("portal: backend is required")
	}
	if cfg.Session == nil {
		return nil, errors.New("portal: session is required")
	}
	p := &Portal{
		api:       cfg.Backend,
		sess:      cfg.Session,
		derive:    insights.New(cfg.Location, cfg.Clock),
		templates: player.Templates(cfg.PlayerTemplate),
		days:      cfg.UpcomingDays,
		forms:     make(map[Section]types.FormStatus),
	}
	if p.days <= 0 {
		p.days = DefaultUpcomingDays
	}
	if cfg.Logger != nil {
		p.log = cfg.Logger.With().Str("component", "portal").Logger()
	} else {
		p.log = zerolog.Nop()
	}
	storeLog := p.log.With().Str("component", "store").Logger()

	st, err := store.New(store.Config{
		Definitions:   p.definitions(),
		Publisher:     cfg.Publisher,
		Clock:         cfg.Clock,
		Message:       apiclient.Message,
		IsAuthFailure: apiclient.IsAuth,
		OnAuthFailure: p.onAuthFailure,
		BaseContext:   cfg.BaseContext,
		Logger:        &storeLog,
	})
	if err != nil {
		return nil, err
	}
	p.store = st
	p.Dashboard = store.Bind[types.Dashboard](st, KindDashboard)
	p.Courses = store.Bind[[]types.Course](st, KindCourses)
	p.Outline = store.Bind[types.CourseOutline](st, KindCourseOutline)
	p.ModuleLectures = store.Bind[[]types.Lecture](st, KindModuleLectures)
	p.Lecture = store.Bind[types.Lecture](st, KindLectureDetail)
	p.Upcoming = store.Bind[[]types.Lecture](st, KindUpcoming)
	p.Profile = store.Bind[types.Profile](st, KindProfile)
	p.Catalog = store.Bind[[]types.CatalogCourse](st, KindCatalog)
	return p, nil
}

func (p *Portal) definitions() []store.Definition {
	return []store.Definition{
		store.Define(KindDashboard, false, DashboardError, func(ctx context.Context, _ string) (types.Dashboard, error) {
			return p.api.Dashboard(ctx)
		}),
		store.Define(KindCourses, false, CoursesError, func(ctx context.Context, _ string) ([]types.Course, error) {
			return p.api.Courses(ctx)
		}),
		store.Define(KindCourseOutline, true, CourseOutlineError, p.api.CourseOutline),
		store.Define(KindModuleLectures, true, ModuleLecturesError, p.api.ModuleLectures),
		store.Define(KindLectureDetail, true, LectureDetailError, p.api.Lecture),
		store.Define(KindUpcoming, false, UpcomingError, func(ctx context.Context, _ string) ([]types.Lecture, error) {
			return p.api.UpcomingLectures(ctx, p.days)
		}),
		store.Define(KindProfile, false, ProfileError, func(ctx context.Context, _ string) (types.Profile, error) {
			return p.api.Profile(ctx)
		}),
		store.Define(KindCatalog, false, CatalogError, func(ctx context.Context, _ string) ([]types.CatalogCourse, error) {
			return p.api.Catalog(ctx)
		}),
	}
}

// onAuthFailure drops the credentials the backend just rejected.
func (p *Portal) onAuthFailure(key store.Key, err error) {
	p.log.Warn().Str("key", key.String()).Err(err).Msg("session rejected by backend")
	p.sess.Invalidate()
}

// Store exposes the underlying resource store.
func (p *Portal) Store() *store.Store { return p.store }

// Session exposes the credential holder.
func (p *Portal) Session() *session.Session { return p.sess }

// Insights exposes the view-model deriver.
func (p *Portal) Insights() *insights.Deriver { return p.derive }

// UpcomingDays is the window of the upcoming lectures view.
func (p *Portal) UpcomingDays() int { return p.days }

// Ready reports whether the portal can serve requests.
func (p *Portal) Ready() bool { return !p.store.Closed() }

// Close cancels background fetches and waits for them.
func (p *Portal) Close() error { return p.store.Close() }

// currentUser prefers the loaded profile over the user stored at login.
func (p *Portal) currentUser() (types.User, bool) {
	if slot := p.Profile.Select(""); slot.HasData && slot.Data.User.Identifier() != "" {
		return slot.Data.User, true
	}
	return p.sess.User()
}
