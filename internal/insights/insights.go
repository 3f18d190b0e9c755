// Package insights derives the dashboard and sidebar view models from fetched
// portal data. Every function is pure given its clock and location; nothing
// here is cached, values are recomputed on each read.
package insights

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"portald/pkg/types"
)

// Accent names used by the quick stat cards.
const (
	AccentSky     = "sky"
	AccentEmerald = "emerald"
	AccentAmber   = "amber"
)

const (
	// SchedulePending stands in for a lecture with no start time.
	SchedulePending = "Schedule pending"
	// DefaultMentor is shown when a lecture names no mentor.
	DefaultMentor = "Mentor"
	// DefaultCohort is shown when neither batch nor course names a cohort.
	DefaultCohort = "Your cohort"
	// DashboardUnavailable is the title shown when the dashboard failed
	// before any data arrived.
	DashboardUnavailable = "We couldn’t load your dashboard"
	// DashboardUnavailableHint is shown under DashboardUnavailable when the
	// failure carried no message.
	DashboardUnavailableHint = "Please check your connection and try again. If the problem persists, contact support."

	pendingValue   = "—"
	pendingDetail  = "Pending data"
	pendingMessage = "We’re getting your cohort data ready. Hang tight for personalised insights."

	sparklineSize = 4
	timelineSize  = 3

	// en-IN style: "Mon, 5 Jan, 2:30 pm"
	lectureLayout  = "Mon, 2 Jan, 3:04 pm"
	scheduleLayout = "Monday, 2 Jan, 3:04 pm"
	clockLayout    = "3:04 pm"

	defaultDurationMinutes = 90
)

// ModuleProgress is one bar of the module sparkline.
type ModuleProgress struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Completion int    `json:"completion"`
}

// TimelineItem is an upcoming lecture as shown on the dashboard timeline.
type TimelineItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Meta  string `json:"meta"`
	Link  string `json:"link"`
}

// QuickStat is a headline counter card.
type QuickStat struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Detail string `json:"detail"`
	Accent string `json:"accent"`
}

// DashboardView is everything the dashboard page renders.
type DashboardView struct {
	Greeting         string           `json:"greeting"`
	Message          string           `json:"message"`
	Completion       int              `json:"completion"`
	ModuleSparkline  []ModuleProgress `json:"moduleSparkline"`
	Timeline         []TimelineItem   `json:"timeline"`
	QuickStats       []QuickStat      `json:"quickStats"`
	PrimaryBatchName string           `json:"primaryBatchName,omitempty"`
	MentorName       string           `json:"mentorName,omitempty"`
	NextLectureTime  string           `json:"nextLectureTime,omitempty"`
	Courses          []types.Course   `json:"courses"`
	Batches          []types.Batch    `json:"batches"`
	UpcomingLectures []types.Lecture  `json:"upcomingLectures"`
	RecentQueries    []types.Query    `json:"recentQueries"`
}

// SidebarProgress is the progress ring in the navigation sidebar.
type SidebarProgress struct {
	Initials    string `json:"initials"`
	Completion  int    `json:"completion"`
	StreakLabel string `json:"streakLabel"`
}

// LectureSplit partitions lectures around now.
type LectureSplit struct {
	Upcoming  []types.Lecture `json:"upcoming"`
	Completed []types.Lecture `json:"completed"`
}

// LectureView is the lecture detail page.
type LectureView struct {
	Title           string `json:"title"`
	MentorName      string `json:"mentorName"`
	ModuleLabel     string `json:"moduleLabel"`
	Schedule        string `json:"schedule"`
	DurationMinutes int    `json:"durationMinutes"`
	Upcoming        bool   `json:"upcoming"`
	// Badge is "Upcoming session" or "Recording".
	Badge string `json:"badge"`
	// Joinable reports whether a live player can be opened.
	Joinable bool `json:"joinable"`
}

// Deriver computes view models against a clock and a display location.
type Deriver struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Deriver formatting times in loc. Nil arguments fall back to
// time.Now and UTC.
func New(loc *time.Location, now func() time.Time) *Deriver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Deriver{now: now, loc: loc}
}

// Location returns the display location.
func (d *Deriver) Location() *time.Location { return d.loc }

// Now returns the current instant.
func (d *Deriver) Now() time.Time { return d.now() }

// Dashboard builds the dashboard view. A nil dashboard yields the pending
// placeholders; user may be nil.
func (d *Deriver) Dashboard(dash *types.Dashboard, user *types.User) DashboardView {
	name := ""
	if user != nil {
		name = strings.TrimSpace(user.DisplayName())
	}
	if dash == nil {
		greeting := "Hi there"
		if name != "" {
			greeting = "Hi, " + name
		}
		return DashboardView{
			Greeting:         greeting,
			Message:          pendingMessage,
			ModuleSparkline:  []ModuleProgress{},
			Timeline:         []TimelineItem{},
			QuickStats:       pendingStats(),
			Courses:          []types.Course{},
			Batches:          []types.Batch{},
			UpcomingLectures: []types.Lecture{},
			RecentQueries:    []types.Query{},
		}
	}

	now := d.now()
	modules := Modules(dash.Batches)
	completion := Completion(dash.Batches, now)
	openModules := 0
	for _, m := range modules {
		if m.Open() {
			openModules++
		}
	}

	v := DashboardView{
		Completion:       completion,
		ModuleSparkline:  d.sparkline(modules, now),
		Timeline:         d.timeline(dash.UpcomingLectures),
		Courses:          nonNil(dash.Courses),
		Batches:          nonNil(dash.Batches),
		UpcomingLectures: nonNil(dash.UpcomingLectures),
		RecentQueries:    nonNil(dash.RecentQueries),
		PrimaryBatchName: primaryBatchName(dash),
		MentorName:       mentorName(dash),
	}
	v.QuickStats = quickStats(len(dash.Courses), len(dash.UpcomingLectures), openModules)

	v.Greeting = strings.TrimSpace(dash.Greeting)
	if v.Greeting == "" {
		v.Greeting = "Your learning runway is clear."
		if name != "" {
			v.Greeting = strings.Fields(name)[0] + ", your learning runway is clear."
		}
	}
	v.Message = strings.TrimSpace(dash.Message)
	if v.Message == "" {
		if completion > 0 {
			v.Message = "You’re " + strconv.Itoa(completion) + "% through the program. Keep the momentum for mentor masterclasses."
		} else {
			v.Message = "Jump into your first module to unlock personalised guidance."
		}
	}
	if len(dash.UpcomingLectures) > 0 && dash.UpcomingLectures[0].StartTime.Set() {
		v.NextLectureTime = dash.UpcomingLectures[0].StartTime.In(d.loc).Format(clockLayout)
	}
	return v
}

// Sidebar builds the sidebar progress block. loading reports whether the
// dashboard is being fetched.
func (d *Deriver) Sidebar(dash *types.Dashboard, user *types.User, loading bool) SidebarProgress {
	p := SidebarProgress{Initials: "?"}
	if user != nil {
		p.Initials = Initials(user.DisplayName())
	}
	var batches []types.Batch
	if dash != nil {
		batches = dash.Batches
	}
	now := d.now()
	p.Completion = Completion(batches, now)

	upcoming := 0
	for _, l := range Lectures(batches) {
		if l.StartTime.Set() && !l.StartTime.Before(now) {
			upcoming++
		}
	}
	switch {
	case upcoming == 1:
		p.StreakLabel = "1 upcoming session"
	case upcoming > 1:
		p.StreakLabel = strconv.Itoa(upcoming) + " upcoming sessions"
	case loading:
		p.StreakLabel = "Loading progress…"
	default:
		p.StreakLabel = "No scheduled sessions"
	}
	return p
}

// SplitLectures partitions lectures into upcoming (start after now, soonest
// first) and completed (start at or before now, most recent first). Lectures
// without a start time are left out.
func (d *Deriver) SplitLectures(lectures []types.Lecture) LectureSplit {
	now := d.now()
	out := LectureSplit{Upcoming: []types.Lecture{}, Completed: []types.Lecture{}}
	for _, l := range lectures {
		if !l.StartTime.Set() {
			continue
		}
		if l.StartTime.After(now) {
			out.Upcoming = append(out.Upcoming, l)
		} else {
			out.Completed = append(out.Completed, l)
		}
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].StartTime.Before(out.Upcoming[j].StartTime.Time)
	})
	sort.SliceStable(out.Completed, func(i, j int) bool {
		return out.Completed[i].StartTime.After(out.Completed[j].StartTime.Time)
	})
	return out
}

// FormatLectureTime renders a lecture start in the display location, or
// SchedulePending when unset.
func (d *Deriver) FormatLectureTime(ts types.Timestamp) string {
	if !ts.Set() {
		return SchedulePending
	}
	return ts.In(d.loc).Format(lectureLayout)
}

// IsUpcoming reports whether the lecture starts after now.
func (d *Deriver) IsUpcoming(l types.Lecture) bool {
	return l.StartTime.Set() && l.StartTime.After(d.now())
}

// Lecture builds the lecture detail view.
func (d *Deriver) Lecture(l types.Lecture) LectureView {
	v := LectureView{
		Title:           l.Heading(),
		MentorName:      l.MentorName(),
		ModuleLabel:     "N/A",
		Schedule:        SchedulePending,
		DurationMinutes: l.Duration,
		Upcoming:        d.IsUpcoming(l),
		Badge:           "Recording",
	}
	if v.Title == "" {
		v.Title = "Lecture"
	}
	if v.MentorName == "" {
		v.MentorName = DefaultMentor
	}
	if l.Module != nil && l.Module.Title != "" {
		v.ModuleLabel = l.Module.Title
	}
	if l.StartTime.Set() {
		v.Schedule = l.StartTime.In(d.loc).Format(scheduleLayout)
	}
	if v.DurationMinutes <= 0 {
		v.DurationMinutes = defaultDurationMinutes
	}
	if v.Upcoming {
		v.Badge = "Upcoming session"
		v.Joinable = l.SessionID != ""
	}
	return v
}

func (d *Deriver) sparkline(modules []types.Module, now time.Time) []ModuleProgress {
	n := min(len(modules), sparklineSize)
	out := make([]ModuleProgress, 0, n)
	for _, m := range modules[:n] {
		pct := 0
		if total := len(m.Lectures); total > 0 {
			pct = percent(ended(m.Lectures, now), total)
		}
		out = append(out, ModuleProgress{ID: m.Identifier(), Title: m.Title, Completion: pct})
	}
	return out
}

func (d *Deriver) timeline(lectures []types.Lecture) []TimelineItem {
	n := min(len(lectures), timelineSize)
	out := make([]TimelineItem, 0, n)
	for _, l := range lectures[:n] {
		mentor := l.Mentor.Name
		if mentor == "" {
			mentor = DefaultMentor
		}
		link := l.MeetingLink
		if link == "" {
			link = "#"
		}
		out = append(out, TimelineItem{
			ID:    l.Identifier(),
			Title: l.Heading(),
			Meta:  mentor + " · " + d.FormatLectureTime(l.StartTime),
			Link:  link,
		})
	}
	return out
}

// Modules flattens the modules of all batches.
func Modules(batches []types.Batch) []types.Module {
	var out []types.Module
	for _, b := range batches {
		out = append(out, b.Modules...)
	}
	return out
}

// Lectures flattens the lectures of all modules of all batches.
func Lectures(batches []types.Batch) []types.Lecture {
	var out []types.Lecture
	for _, m := range Modules(batches) {
		out = append(out, m.Lectures...)
	}
	return out
}

// Completion is the share of lectures that ended before now, rounded and
// capped at 100. Zero when there are no lectures.
func Completion(batches []types.Batch, now time.Time) int {
	lectures := Lectures(batches)
	if len(lectures) == 0 {
		return 0
	}
	return min(100, percent(ended(lectures, now), len(lectures)))
}

// Initials takes the first letter of the first two words of name, upper
// cased. "?" when name is blank.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}
	var b strings.Builder
	for _, w := range words[:min(2, len(words))] {
		r := []rune(w)[0]
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}

func ended(lectures []types.Lecture, now time.Time) int {
	n := 0
	for _, l := range lectures {
		if l.EndTime.Set() && l.EndTime.Before(now) {
			n++
		}
	}
	return n
}

func percent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}

func quickStats(courses, upcoming, openModules int) []QuickStat {
	enrolled := "You’re part of " + strconv.Itoa(courses) + " active journeys"
	if courses == 1 {
		enrolled = "You’re part of 1 active journey"
	}
	schedule := "No sessions scheduled"
	if upcoming > 0 {
		schedule = "Next 7 days schedule"
	}
	unlocked := "Modules unlock soon"
	if openModules > 0 {
		unlocked = "Ready for deep dives"
	}
	return []QuickStat{
		{Label: "Enrolled courses", Value: strconv.Itoa(courses), Detail: enrolled, Accent: AccentSky},
		{Label: "Upcoming lectures", Value: strconv.Itoa(upcoming), Detail: schedule, Accent: AccentEmerald},
		{Label: "Open modules", Value: strconv.Itoa(openModules), Detail: unlocked, Accent: AccentAmber},
	}
}

func pendingStats() []QuickStat {
	return []QuickStat{
		{Label: "Enrolled courses", Value: pendingValue, Detail: pendingDetail, Accent: AccentSky},
		{Label: "Upcoming lectures", Value: pendingValue, Detail: pendingDetail, Accent: AccentEmerald},
		{Label: "Open modules", Value: pendingValue, Detail: pendingDetail, Accent: AccentAmber},
	}
}

func primaryBatchName(dash *types.Dashboard) string {
	if len(dash.Batches) > 0 && dash.Batches[0].Name != "" {
		return dash.Batches[0].Name
	}
	if len(dash.Courses) > 0 && dash.Courses[0].BatchName != "" {
		return dash.Courses[0].BatchName
	}
	return DefaultCohort
}

func mentorName(dash *types.Dashboard) string {
	if len(dash.Batches) > 0 && dash.Batches[0].Mentor.Name != "" {
		return dash.Batches[0].Mentor.Name
	}
	if len(dash.Courses) > 0 {
		c := dash.Courses[0]
		if c.MentorName != "" {
			return c.MentorName
		}
		return c.Mentor.Name
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
