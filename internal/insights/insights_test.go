package insights

import (
	"testing"
	"time"

	"portald/pkg/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixed() time.Time { return testNow }

func lecture(id string, start, end time.Duration) types.Lecture {
	return types.Lecture{
		ID:        id,
		Title:     "Lecture " + id,
		StartTime: types.At(testNow.Add(start)),
		EndTime:   types.At(testNow.Add(end)),
	}
}

func TestCompletion(t *testing.T) {
	batches := []types.Batch{{Modules: []types.Module{
		{Lectures: []types.Lecture{lecture("a", -3*time.Hour, -2*time.Hour), lecture("b", time.Hour, 2*time.Hour)}},
		{Lectures: []types.Lecture{lecture("c", -2*time.Hour, -time.Hour)}},
	}}}
	if got := Completion(batches, testNow); got != 67 {
		t.Fatalf("completion=%d want 67", got)
	}
	if got := Completion(nil, testNow); got != 0 {
		t.Fatalf("empty completion=%d", got)
	}
	// a lecture with no end time counts towards the total only
	batches[0].Modules[1].Lectures = append(batches[0].Modules[1].Lectures, types.Lecture{ID: "d"})
	if got := Completion(batches, testNow); got != 50 {
		t.Fatalf("completion=%d want 50", got)
	}
}

func TestDashboardPending(t *testing.T) {
	d := New(time.UTC, fixed)
	v := d.Dashboard(nil, &types.User{Name: "Asha Rao"})
	if v.Greeting != "Hi, Asha Rao" {
		t.Fatalf("greeting=%q", v.Greeting)
	}
	if len(v.QuickStats) != 3 || v.QuickStats[0].Value != "—" || v.QuickStats[2].Detail != "Pending data" {
		t.Fatalf("stats=%+v", v.QuickStats)
	}
	if v := d.Dashboard(nil, nil); v.Greeting != "Hi there" {
		t.Fatalf("anonymous greeting=%q", v.Greeting)
	}
}

func TestDashboardDerived(t *testing.T) {
	d := New(time.UTC, fixed)
	dash := &types.Dashboard{
		Courses: []types.Course{{Title: "DSA", BatchName: "Course batch", MentorName: "Course mentor"}},
		Batches: []types.Batch{{
			Name:   "Alpha",
			Mentor: types.Mentor{Name: "Ravi"},
			Modules: []types.Module{
				{ID: "m1", Title: "Arrays", IsOpen: true, Lectures: []types.Lecture{lecture("a", -3*time.Hour, -2*time.Hour)}},
				{Title: "Graphs", Accessible: true},
				{ID: "m3", Title: "DP"},
				{ID: "m4", Title: "Trees"},
				{ID: "m5", Title: "Heaps", IsOpen: true},
			},
		}},
		UpcomingLectures: []types.Lecture{
			{ID: "u1", Topic: "Two pointers", Title: "ignored", Mentor: types.Mentor{Name: "Ravi"}, StartTime: types.At(time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)), MeetingLink: "https://meet/x"},
			{ID: "u2", Title: "Sliding window"},
			{ID: "u3", Title: "Stacks"},
			{ID: "u4", Title: "Queues"},
		},
	}
	v := d.Dashboard(dash, &types.User{Name: "Asha Rao"})

	if v.Completion != 100 {
		t.Fatalf("completion=%d", v.Completion)
	}
	if v.Greeting != "Asha, your learning runway is clear." {
		t.Fatalf("greeting=%q", v.Greeting)
	}
	if v.Message != "You’re 100% through the program. Keep the momentum for mentor masterclasses." {
		t.Fatalf("message=%q", v.Message)
	}
	if len(v.ModuleSparkline) != 4 || v.ModuleSparkline[1].ID != "Graphs" || v.ModuleSparkline[0].Completion != 100 {
		t.Fatalf("sparkline=%+v", v.ModuleSparkline)
	}
	if len(v.Timeline) != 3 {
		t.Fatalf("timeline=%+v", v.Timeline)
	}
	first := v.Timeline[0]
	if first.Title != "Two pointers" || first.Meta != "Ravi · Thu, 12 Mar, 2:30 pm" || first.Link != "https://meet/x" {
		t.Fatalf("first=%+v", first)
	}
	if v.Timeline[1].Meta != "Mentor · Schedule pending" || v.Timeline[1].Link != "#" {
		t.Fatalf("second=%+v", v.Timeline[1])
	}
	if v.QuickStats[0].Detail != "You’re part of 1 active journey" || v.QuickStats[1].Value != "4" || v.QuickStats[2].Value != "3" {
		t.Fatalf("stats=%+v", v.QuickStats)
	}
	if v.PrimaryBatchName != "Alpha" || v.MentorName != "Ravi" {
		t.Fatalf("batch=%q mentor=%q", v.PrimaryBatchName, v.MentorName)
	}
	if v.NextLectureTime != "2:30 pm" {
		t.Fatalf("next=%q", v.NextLectureTime)
	}
}

func TestDashboardServerTextWins(t *testing.T) {
	d := New(time.UTC, fixed)
	v := d.Dashboard(&types.Dashboard{Greeting: "Welcome back", Message: "Keep going"}, nil)
	if v.Greeting != "Welcome back" || v.Message != "Keep going" {
		t.Fatalf("view=%+v", v)
	}
	if v.PrimaryBatchName != DefaultCohort || v.MentorName != "" {
		t.Fatalf("batch=%q mentor=%q", v.PrimaryBatchName, v.MentorName)
	}
	if v.QuickStats[0].Detail != "You’re part of 0 active journeys" || v.QuickStats[1].Detail != "No sessions scheduled" || v.QuickStats[2].Detail != "Modules unlock soon" {
		t.Fatalf("stats=%+v", v.QuickStats)
	}
}

func TestMentorFallsBackToCourse(t *testing.T) {
	d := New(time.UTC, fixed)
	v := d.Dashboard(&types.Dashboard{Courses: []types.Course{{BatchName: "Beta", Mentor: types.Mentor{Name: "Nina"}}}}, nil)
	if v.PrimaryBatchName != "Beta" || v.MentorName != "Nina" {
		t.Fatalf("batch=%q mentor=%q", v.PrimaryBatchName, v.MentorName)
	}
	if v.Message != "Jump into your first module to unlock personalised guidance." {
		t.Fatalf("message=%q", v.Message)
	}
}

func TestSidebar(t *testing.T) {
	d := New(time.UTC, fixed)
	dash := &types.Dashboard{Batches: []types.Batch{{Modules: []types.Module{{Lectures: []types.Lecture{
		lecture("a", -2*time.Hour, -time.Hour),
		lecture("b", time.Hour, 2*time.Hour),
		lecture("c", 0, time.Hour),
	}}}}}}
	p := d.Sidebar(dash, &types.User{FirstName: "asha", LastName: "rao kumar"}, false)
	if p.Initials != "AR" || p.Completion != 33 || p.StreakLabel != "2 upcoming sessions" {
		t.Fatalf("progress=%+v", p)
	}
	if p := d.Sidebar(nil, nil, true); p.StreakLabel != "Loading progress…" || p.Initials != "?" {
		t.Fatalf("loading=%+v", p)
	}
	if p := d.Sidebar(nil, nil, false); p.StreakLabel != "No scheduled sessions" {
		t.Fatalf("idle=%+v", p)
	}
	one := &types.Dashboard{Batches: []types.Batch{{Modules: []types.Module{{Lectures: []types.Lecture{lecture("b", time.Hour, 2*time.Hour)}}}}}}
	if p := d.Sidebar(one, nil, false); p.StreakLabel != "1 upcoming session" {
		t.Fatalf("one=%+v", p)
	}
}

func TestSplitLectures(t *testing.T) {
	d := New(time.UTC, fixed)
	split := d.SplitLectures([]types.Lecture{
		lecture("past-old", -48*time.Hour, -47*time.Hour),
		lecture("future-late", 48*time.Hour, 49*time.Hour),
		{ID: "unscheduled"},
		lecture("now", 0, time.Hour),
		lecture("future-soon", time.Hour, 2*time.Hour),
		lecture("past-recent", -2*time.Hour, -time.Hour),
	})
	ids := func(ls []types.Lecture) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.ID
		}
		return out
	}
	up, done := ids(split.Upcoming), ids(split.Completed)
	if len(up) != 2 || up[0] != "future-soon" || up[1] != "future-late" {
		t.Fatalf("upcoming=%v", up)
	}
	if len(done) != 3 || done[0] != "now" || done[1] != "past-recent" || done[2] != "past-old" {
		t.Fatalf("completed=%v", done)
	}
}

func TestFormatLectureTimeLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	d := New(ist, fixed)
	got := d.FormatLectureTime(types.At(time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)))
	if got != "Thu, 12 Mar, 2:30 pm" {
		t.Fatalf("got %q", got)
	}
	if d.FormatLectureTime(types.Timestamp{}) != SchedulePending {
		t.Fatalf("expected pending")
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{"": "?", "  ": "?", "asha": "A", "asha rao kumar": "AR", "élan vital": "ÉV"}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Fatalf("Initials(%q)=%q want %q", in, got, want)
		}
	}
}

func TestLectureView(t *testing.T) {
	d := New(time.UTC, fixed)
	l := types.Lecture{
		Title:     "Graphs II",
		Teacher:   &types.Teacher{User: &types.PersonName{FirstName: "Ravi", LastName: "K"}},
		Module:    &types.ModuleRef{Title: "Graphs"},
		StartTime: types.At(time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC)),
		SessionID: "sess",
	}
	v := d.Lecture(l)
	if v.Title != "Graphs II" || v.MentorName != "Ravi K" || v.ModuleLabel != "Graphs" {
		t.Fatalf("view=%+v", v)
	}
	if !v.Upcoming || !v.Joinable || v.Badge != "Upcoming session" || v.DurationMinutes != 90 {
		t.Fatalf("view=%+v", v)
	}
	if v.Schedule != "Thursday, 12 Mar, 2:30 pm" {
		t.Fatalf("schedule=%q", v.Schedule)
	}

	past := d.Lecture(types.Lecture{StartTime: types.At(testNow.Add(-time.Hour)), Duration: 60, SessionID: "s"})
	if past.Upcoming || past.Joinable || past.Badge != "Recording" || past.Title != "Lecture" || past.MentorName != "Mentor" || past.ModuleLabel != "N/A" || past.DurationMinutes != 60 {
		t.Fatalf("past=%+v", past)
	}
}
