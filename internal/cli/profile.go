package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"portald/internal/portal"
	"portald/pkg/types"
)

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the student profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("profile requires a subcommand: show|update|photo")
		},
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(p *portal.Portal) error {
				page, err := p.OpenProfile(cmd.Context(), true)
				if err := settled(a, page.Slot, err); err != nil {
					return err
				}
				out := struct {
					slotHeader
					Profile     types.Profile     `json:"profile"`
					Preferences types.Preferences `json:"preferences"`
				}{header(page.Slot), page.Slot.Data, page.Preferences}
				return a.render(out, func(w io.Writer) error { return printProfile(w, page) })
			})
		},
	}

	var file string
	update := &cobra.Command{
		Use:   "update <basic|education|links|preferences>",
		Short: "Update one profile section from a YAML file",
		Example: "  portald profile update links --file links.yaml\n" +
			"  echo 'communication: email' | portald profile update preferences --file -",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(portal.SectionBasic), string(portal.SectionEducation), string(portal.SectionLinks), string(portal.SectionPreferences)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := portal.Section(strings.ToLower(args[0]))
			var call func(p *portal.Portal) (types.Profile, error)
			switch s {
			case portal.SectionBasic:
				call = func(p *portal.Portal) (types.Profile, error) { return decodeAndSave(ctx, a, file, p.UpdateBasic) }
			case portal.SectionEducation:
				call = func(p *portal.Portal) (types.Profile, error) { return decodeAndSave(ctx, a, file, p.UpdateEducation) }
			case portal.SectionLinks:
				call = func(p *portal.Portal) (types.Profile, error) { return decodeAndSave(ctx, a, file, p.UpdateLinks) }
			case portal.SectionPreferences:
				call = func(p *portal.Portal) (types.Profile, error) { return decodeAndSave(ctx, a, file, p.UpdatePreferences) }
			default:
				return fmt.Errorf("unknown profile section %q", args[0])
			}
			return a.saveSection(s, call)
		},
	}
	update.Flags().StringVarP(&file, "file", "f", "", "Section file, or - for stdin (required)")
	_ = update.MarkFlagRequired("file")

	photo := &cobra.Command{
		Use:   "photo <image>",
		Short: "Upload a new profile photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return a.saveSection(portal.SectionPhoto, func(p *portal.Portal) (types.Profile, error) {
				return p.UploadPhoto(cmd.Context(), filepath.Base(args[0]), f)
			})
		},
	}
	cmd.AddCommand(show, update, photo)
	return cmd
}

// decodeAndSave decodes file into the section payload and submits it.
func decodeAndSave[T any](ctx context.Context, a *app, file string, update func(context.Context, T) (types.Profile, error)) (types.Profile, error) {
	var in T
	if err := a.decodeFile(file, &in); err != nil {
		return types.Profile{}, err
	}
	return update(ctx, in)
}

// saveSection runs an update and prints the section's form status.
func (a *app) saveSection(s portal.Section, call func(p *portal.Portal) (types.Profile, error)) error {
	p, err := a.open()
	if err != nil {
		return err
	}
	if _, err := call(p); err != nil {
		return err
	}
	st := p.FormStatus(s)
	return a.render(st, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, st.Message)
		return err
	})
}

func printProfile(w io.Writer, page portal.ProfilePage) error {
	pr := page.Slot.Data
	fmt.Fprintf(w, "%s <%s>\n", orDash(pr.DisplayName()), orDash(pr.Email))
	if pr.Bio != "" {
		fmt.Fprintln(w, pr.Bio)
	}
	rows := [][]string{
		{"Mobile", orDash(pr.MobileNumber)},
		{"Completion", fmt.Sprintf("%d%%", pr.Snapshot.Completion)},
		{"Streak", fmt.Sprintf("%d days", pr.Snapshot.Streak)},
		{"Mentor", orDash(pr.Snapshot.Mentor.Name)},
	}
	if e := pr.Education; e != nil {
		rows = append(rows, []string{"Education", orDash(joinNonEmpty(", ", e.Degree, e.FieldOfStudy, e.Institution))})
	}
	if l := pr.ProfileLinks; l != nil {
		for _, link := range [][2]string{{"LinkedIn", l.LinkedIn}, {"GitHub", l.GitHub}, {"Portfolio", l.Portfolio}, {"Twitter", l.Twitter}} {
			if link[1] != "" {
				rows = append(rows, []string{link[0], link[1]})
			}
		}
	}
	prefs := page.Preferences
	rows = append(rows,
		[]string{"Timezone", prefs.Timezone},
		[]string{"Communication", prefs.Communication},
		[]string{"Notifications", notifications(prefs.Notifications)},
	)
	if err := table(w, nil, rows); err != nil {
		return err
	}
	if len(pr.Achievements) > 0 {
		fmt.Fprintln(w, "\nAchievements")
		for _, ach := range pr.Achievements {
			fmt.Fprintf(w, "  %s\n", ach.Title)
		}
	}
	return nil
}

func notifications(n types.Notifications) string {
	var on []string
	for _, c := range []struct {
		name string
		v    *bool
	}{{"email", n.Email}, {"sms", n.SMS}, {"in-app", n.InApp}} {
		if c.v != nil && *c.v {
			on = append(on, c.name)
		}
	}
	if len(on) == 0 {
		return "off"
	}
	return strings.Join(on, ", ")
}
