package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"portald/internal/insights"
	"portald/internal/portal"
	"portald/internal/store"
	"portald/pkg/types"
)

// slotHeader is the resource state printed with every view.
type slotHeader struct {
	Key       string       `json:"key"`
	Status    store.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
}

func header[T any](slot store.Slot[T]) slotHeader {
	h := slotHeader{Key: slot.Key.String(), Status: slot.Status, Error: slot.Err}
	if !slot.UpdatedAt.IsZero() {
		t := slot.UpdatedAt
		h.UpdatedAt = &t
	}
	return h
}

// view opens the portal and runs fn with it.
func (a *app) view(fn func(p *portal.Portal) error) error {
	p, err := a.open()
	if err != nil {
		return err
	}
	if !p.Session().Authenticated() {
		return portal.ErrNotAuthenticated
	}
	return fn(p)
}

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(p *portal.Portal) error {
				page, err := p.OpenDashboard(cmd.Context(), true)
				if err != nil {
					return err
				}
				if page.Unavailable != nil {
					return fmt.Errorf("%s: %s", page.Unavailable.Title, page.Unavailable.Message)
				}
				if err := settled(a, page.Slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					View    insights.DashboardView   `json:"view"`
					Sidebar insights.SidebarProgress `json:"sidebar"`
				}{header(page.Slot), page.View, page.Sidebar}
				return a.render(out, func(w io.Writer) error { return printDashboard(w, page) })
			})
		},
	}
}

func printDashboard(w io.Writer, page portal.DashboardPage) error {
	v := page.View
	fmt.Fprintln(w, v.Greeting)
	if v.Message != "" {
		fmt.Fprintln(w, v.Message)
	}
	fmt.Fprintf(w, "\nProgress %d%%  %s  %s\n", v.Completion, orDash(v.PrimaryBatchName), page.Sidebar.StreakLabel)
	if v.MentorName != "" {
		fmt.Fprintf(w, "Mentor: %s\n", v.MentorName)
	}
	if v.NextLectureTime != "" {
		fmt.Fprintf(w, "Next lecture: %s\n", v.NextLectureTime)
	}
	fmt.Fprintln(w)
	rows := make([][]string, 0, len(v.QuickStats))
	for _, s := range v.QuickStats {
		rows = append(rows, []string{s.Label, s.Value, s.Detail})
	}
	if err := table(w, nil, rows); err != nil {
		return err
	}
	if len(v.ModuleSparkline) > 0 {
		fmt.Fprintln(w, "\nModules")
		rows = rows[:0]
		for _, m := range v.ModuleSparkline {
			rows = append(rows, []string{m.Title, strconv.Itoa(m.Completion) + "%"})
		}
		if err := table(w, nil, rows); err != nil {
			return err
		}
	}
	if len(v.Timeline) > 0 {
		fmt.Fprintln(w, "\nComing up")
		rows = rows[:0]
		for _, t := range v.Timeline {
			rows = append(rows, []string{t.Title, t.Meta})
		}
		return table(w, nil, rows)
	}
	return nil
}

func coursesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List enrolled courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(p *portal.Portal) error {
				slot, err := p.OpenCourses(cmd.Context(), true)
				if err := settled(a, slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					Courses []types.Course `json:"courses"`
				}{header(slot), slot.Data}
				return a.render(out, func(w io.Writer) error {
					if len(slot.Data) == 0 {
						_, err := fmt.Fprintln(w, "No courses yet.")
						return err
					}
					rows := make([][]string, 0, len(slot.Data))
					for _, c := range slot.Data {
						mentor := c.MentorName
						if mentor == "" {
							mentor = c.Mentor.Name
						}
						rows = append(rows, []string{orDash(c.ID), c.Title, orDash(c.BatchName), orDash(mentor), p.Insights().FormatLectureTime(c.BatchStartDate)})
					}
					return table(w, []string{"ID", "TITLE", "BATCH", "MENTOR", "STARTS"}, rows)
				})
			})
		},
	}
}

func catalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List courses open for signup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			slot, err := p.OpenCatalog(cmd.Context(), true)
			if err := settled(a, slot, err); err != nil {
				return err
			}
			out := struct {
				slotHeader
				Courses []types.CatalogCourse `json:"courses"`
			}{header(slot), slot.Data}
			return a.render(out, func(w io.Writer) error {
				rows := make([][]string, 0, len(slot.Data))
				for _, c := range slot.Data {
					rows = append(rows, []string{orDash(c.ID), c.Title, orDash(c.Slug)})
				}
				return table(w, []string{"ID", "TITLE", "SLUG"}, rows)
			})
		},
	}
}

func outlineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <course-id>",
		Short: "Show the modules of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireArg(args, "course id")
			if err != nil {
				return err
			}
			return a.view(func(p *portal.Portal) error {
				page, err := p.OpenOutline(cmd.Context(), id, true)
				if err := settled(a, page.Slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					Outline types.CourseOutline `json:"outline"`
					Empty   bool                `json:"empty"`
				}{header(page.Slot), page.Slot.Data, page.Empty}
				return a.render(out, func(w io.Writer) error {
					if page.Empty {
						_, err := fmt.Fprintln(w, "No modules have been published for this course yet.")
						return err
					}
					for _, b := range page.Slot.Data.Batches {
						fmt.Fprintf(w, "%s (mentor %s)\n", orDash(b.Name), orDash(b.Mentor.Name))
						rows := make([][]string, 0, len(b.Modules))
						for _, m := range b.Modules {
							state := "locked"
							if m.Open() {
								state = "open"
							}
							rows = append(rows, []string{m.Identifier(), m.Title, state,
								fmt.Sprintf("%d done, %d upcoming", m.CompletedCount, m.UpcomingCount)})
						}
						if err := table(w, nil, rows); err != nil {
							return err
						}
						fmt.Fprintln(w)
					}
					return nil
				})
			})
		},
	}
}

func lecturesCmd(a *app) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "lectures",
		Short: "List upcoming lectures, or the lectures of a module",
		Example: "  portald lectures\n" +
			"  portald lectures --module m1",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(p *portal.Portal) error {
				var page portal.LecturesPage
				var err error
				if module != "" {
					page, err = p.OpenModuleLectures(cmd.Context(), module, true)
				} else {
					page, err = p.OpenUpcoming(cmd.Context(), true)
				}
				if err := settled(a, page.Slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					insights.LectureSplit
				}{header(page.Slot), page.Split}
				return a.render(out, func(w io.Writer) error {
					d := p.Insights()
					fmt.Fprintln(w, "Upcoming")
					if err := lectureTable(w, d, page.Split.Upcoming); err != nil {
						return err
					}
					if module == "" {
						return nil
					}
					fmt.Fprintln(w, "\nCompleted")
					return lectureTable(w, d, page.Split.Completed)
				})
			})
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Module id; lists upcoming lectures when empty")
	return cmd
}

func lectureTable(w io.Writer, d *insights.Deriver, lectures []types.Lecture) error {
	if len(lectures) == 0 {
		_, err := fmt.Fprintln(w, "  none")
		return err
	}
	rows := make([][]string, 0, len(lectures))
	for _, l := range lectures {
		rows = append(rows, []string{l.Identifier(), d.FormatLectureTime(l.StartTime), l.Heading(), orDash(l.MentorName())})
	}
	return table(w, []string{"ID", "WHEN", "TITLE", "MENTOR"}, rows)
}

func lectureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lecture <lecture-id>",
		Short: "Show a lecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireArg(args, "lecture id")
			if err != nil {
				return err
			}
			return a.view(func(p *portal.Portal) error {
				page, err := p.OpenLecture(cmd.Context(), id, true)
				if err := settled(a, page.Slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					Lecture types.Lecture         `json:"lecture"`
					View    *insights.LectureView `json:"view,omitempty"`
				}{header(page.Slot), page.Slot.Data, page.View}
				return a.render(out, func(w io.Writer) error {
					if page.View == nil {
						return nil
					}
					return printLecture(w, page.Slot.Data, *page.View)
				})
			})
		},
	}
}

func printLecture(w io.Writer, l types.Lecture, v insights.LectureView) error {
	fmt.Fprintf(w, "%s  [%s]\n", v.Title, v.Badge)
	rows := [][]string{
		{"Mentor", v.MentorName},
		{"Module", orDash(v.ModuleLabel)},
		{"When", v.Schedule},
		{"Duration", strconv.Itoa(v.DurationMinutes) + " min"},
	}
	if l.RecordingLink != "" {
		rows = append(rows, []string{"Recording", l.RecordingLink})
	}
	if l.MeetingLink != "" {
		rows = append(rows, []string{"Meeting", l.MeetingLink})
	}
	for _, r := range l.Resources {
		rows = append(rows, []string{orDash(r.Label), r.URL})
	}
	if err := table(w, nil, rows); err != nil {
		return err
	}
	if l.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, l.Description)
	}
	return nil
}

func attendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attend <lecture-id>",
		Short: "Print the live player URL of a lecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireArg(args, "lecture id")
			if err != nil {
				return err
			}
			p, err := a.open()
			if err != nil {
				return err
			}
			att, err := p.Attend(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(att, func(w io.Writer) error {
				fmt.Fprintf(w, "%s  [%s]\n", att.View.Title, att.View.Badge)
				if att.Status != nil && att.Status.Status != "" {
					fmt.Fprintf(w, "Session %s\n", att.Status.Status)
				}
				_, err := fmt.Fprintln(w, att.PlayerURL)
				return err
			})
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	var warm bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every loaded resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			if warm {
				if err := p.Warm(cmd.Context()); err != nil {
					return err
				}
			}
			snaps := p.Store().Status()
			out := struct {
				Authenticated bool         `json:"authenticated"`
				Slots         []slotHeader `json:"slots"`
			}{Authenticated: p.Session().Authenticated()}
			for _, s := range snaps {
				out.Slots = append(out.Slots, header(store.Typed[any](s)))
			}
			return a.render(out, func(w io.Writer) error {
				fmt.Fprintf(w, "Authenticated: %t\n", out.Authenticated)
				rows := make([][]string, 0, len(out.Slots))
				for _, s := range out.Slots {
					updated := "-"
					if s.UpdatedAt != nil {
						updated = s.UpdatedAt.Local().Format(time.Kitchen)
					}
					rows = append(rows, []string{s.Key, string(s.Status), updated, orDash(s.Error)})
				}
				return table(w, []string{"KEY", "STATUS", "UPDATED", "ERROR"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&warm, "warm", false, "Load the landing views before reporting")
	return cmd
}
