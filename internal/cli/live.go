package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"portald/internal/portal"
	"portald/pkg/types"
)

func liveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Manage live lecture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("live requires a subcommand: start|end|create")
		},
	}

	var req types.LiveSessionRequest
	start := &cobra.Command{
		Use:   "start",
		Short: "Mark a live session as started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.live(cmd.Context(), func(ctx context.Context, p *portal.Portal) (types.LiveSession, error) {
				return p.StartSession(ctx, req)
			})
		},
	}
	end := &cobra.Command{
		Use:   "end",
		Short: "Mark a live session as ended",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.live(cmd.Context(), func(ctx context.Context, p *portal.Portal) (types.LiveSession, error) {
				return p.EndSession(ctx, req)
			})
		},
	}
	for _, c := range []*cobra.Command{start, end} {
		c.Flags().StringVar(&req.LectureID, "lecture", "", "Lecture id")
		c.Flags().StringVar(&req.SessionID, "session", "", "Live session id")
	}

	var create types.CreateLiveSessionRequest
	createCmd := &cobra.Command{
		Use:     "create",
		Short:   "Schedule a live session for a lecture",
		Example: "  portald live create --lecture l1 --title \"Graphs\" --start 2026-03-10T10:00:00Z --end 2026-03-10T11:30:00Z",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.live(cmd.Context(), func(ctx context.Context, p *portal.Portal) (types.LiveSession, error) {
				return p.CreateSession(ctx, create)
			})
		},
	}
	createCmd.Flags().StringVar(&create.LectureID, "lecture", "", "Lecture id")
	createCmd.Flags().StringVar(&create.EventTitle, "title", "", "Event title")
	createCmd.Flags().StringVar(&create.StartTime, "start", "", "Start time, RFC 3339")
	createCmd.Flags().StringVar(&create.EndTime, "end", "", "End time, RFC 3339")

	cmd.AddCommand(start, end, createCmd)
	return cmd
}

func (a *app) live(ctx context.Context, call func(context.Context, *portal.Portal) (types.LiveSession, error)) error {
	p, err := a.open()
	if err != nil {
		return err
	}
	ls, err := call(ctx, p)
	if err != nil {
		return err
	}
	return a.render(ls, func(w io.Writer) error {
		return table(w, nil, [][]string{
			{"Lecture", orDash(ls.LectureID)},
			{"Session", orDash(ls.SessionID)},
			{"Title", orDash(ls.EventTitle)},
			{"Status", orDash(ls.Status)},
			{"Starts", p.Insights().FormatLectureTime(ls.StartTime)},
		})
	})
}
