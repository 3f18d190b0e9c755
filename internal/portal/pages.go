package portal

import (
	"context"

	"portald/internal/insights"
	"portald/internal/store"
	"portald/pkg/types"
)

// Notice is a blocking message shown in place of a page.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// DashboardPage is the dashboard resource and its derived views.
type DashboardPage struct {
	Slot    store.Slot[types.Dashboard]
	View    insights.DashboardView
	Sidebar insights.SidebarProgress
	// Unavailable is set when the dashboard failed before any data arrived.
	Unavailable *Notice
}

// OutlinePage is a course outline.
type OutlinePage struct {
	Slot store.Slot[types.CourseOutline]
	// Empty reports a loaded outline without any module.
	Empty bool
}

// LecturesPage is a lecture list split around now.
type LecturesPage struct {
	Slot  store.Slot[[]types.Lecture]
	Split insights.LectureSplit
}

// LecturePage is a single lecture.
type LecturePage struct {
	Slot store.Slot[types.Lecture]
	View *insights.LectureView
}

// ProfilePage is the profile with effective preferences and form states.
type ProfilePage struct {
	Slot        store.Slot[types.Profile]
	Preferences types.Preferences
	Forms       map[Section]types.FormStatus
}

// open triggers r, which never refetches a loaded resource, and when wait is
// set blocks until the slot settles.
func open[T any](ctx context.Context, r store.Resource[T], param string, wait bool) (store.Slot[T], error) {
	if _, err := r.Trigger(param); err != nil {
		return store.Slot[T]{Key: r.Key(param), Status: store.StatusNotStarted}, err
	}
	if !wait {
		return r.Select(param), nil
	}
	return r.Await(ctx, param)
}

// OpenDashboard loads the dashboard and derives its views.
func (p *Portal) OpenDashboard(ctx context.Context, wait bool) (DashboardPage, error) {
	slot, err := open(ctx, p.Dashboard, "", wait)
	if err != nil {
		return DashboardPage{Slot: slot}, err
	}
	return p.dashboardPage(slot), nil
}

func (p *Portal) dashboardPage(slot store.Slot[types.Dashboard]) DashboardPage {
	var dash *types.Dashboard
	if slot.HasData {
		dash = &slot.Data
	}
	var user *types.User
	if u, ok := p.currentUser(); ok {
		user = &u
	}
	page := DashboardPage{
		Slot:    slot,
		View:    p.derive.Dashboard(dash, user),
		Sidebar: p.derive.Sidebar(dash, user, slot.Status == store.StatusLoading),
	}
	if slot.Status == store.StatusFailed && !slot.HasData {
		page.Unavailable = &Notice{Title: insights.DashboardUnavailable, Message: orDefault(slot.Err, insights.DashboardUnavailableHint)}
	}
	return page
}

// OpenCourses loads the enrolled courses.
func (p *Portal) OpenCourses(ctx context.Context, wait bool) (store.Slot[[]types.Course], error) {
	return open(ctx, p.Courses, "", wait)
}

// OpenCatalog loads the public course catalog.
func (p *Portal) OpenCatalog(ctx context.Context, wait bool) (store.Slot[[]types.CatalogCourse], error) {
	return open(ctx, p.Catalog, "", wait)
}

// OpenOutline loads the outline of a course.
func (p *Portal) OpenOutline(ctx context.Context, courseID string, wait bool) (OutlinePage, error) {
	slot, err := open(ctx, p.Outline, courseID, wait)
	return OutlinePage{Slot: slot, Empty: slot.HasData && slot.Data.Empty()}, err
}

// OpenModuleLectures loads the lectures of a module.
func (p *Portal) OpenModuleLectures(ctx context.Context, moduleID string, wait bool) (LecturesPage, error) {
	slot, err := open(ctx, p.ModuleLectures, moduleID, wait)
	return LecturesPage{Slot: slot, Split: p.derive.SplitLectures(slot.Data)}, err
}

// OpenUpcoming loads the lectures scheduled in the upcoming window.
func (p *Portal) OpenUpcoming(ctx context.Context, wait bool) (LecturesPage, error) {
	slot, err := open(ctx, p.Upcoming, "", wait)
	return LecturesPage{Slot: slot, Split: p.derive.SplitLectures(slot.Data)}, err
}

// OpenLecture loads a lecture's detail.
func (p *Portal) OpenLecture(ctx context.Context, lectureID string, wait bool) (LecturePage, error) {
	slot, err := open(ctx, p.Lecture, lectureID, wait)
	page := LecturePage{Slot: slot}
	if slot.HasData {
		v := p.derive.Lecture(slot.Data)
		page.View = &v
	}
	return page, err
}

// OpenProfile loads the profile.
func (p *Portal) OpenProfile(ctx context.Context, wait bool) (ProfilePage, error) {
	slot, err := open(ctx, p.Profile, "", wait)
	page := ProfilePage{Slot: slot, Preferences: types.DefaultPreferences(), Forms: p.FormStatuses()}
	if slot.HasData {
		page.Preferences = slot.Data.EffectivePreferences()
	}
	return page, err
}
