package portal

import (
	"context"
	"io"
	"sort"

	"portald/internal/apiclient"
	"portald/internal/validate"
	"portald/pkg/types"
)

// Section names an independently submitted part of the profile form.
type Section string

const (
	SectionBasic       Section = "basic"
	SectionEducation   Section = "education"
	SectionLinks       Section = "links"
	SectionPreferences Section = "preferences"
	SectionPhoto       Section = "photo"
)

// Form states.
const (
	FormIdle      = "idle"
	FormLoading   = "loading"
	FormSucceeded = "succeeded"
	FormFailed    = "failed"
)

// sectionText holds the success and failure messages of a section. fallback
// is used when the backend rejects the update without a message.
type sectionText struct {
	saved    string
	fallback string
}

var sections = map[Section]sectionText{
	SectionBasic:       {saved: "Successfully saved your personal information", fallback: "Could not update basic profile."},
	SectionEducation:   {saved: "Successfully saved your education details", fallback: "Could not update education profile."},
	SectionLinks:       {saved: "Successfully saved your social links", fallback: "Could not update profile links."},
	SectionPreferences: {saved: "Successfully saved your preferences", fallback: "Could not update preferences."},
	SectionPhoto:       {saved: "Successfully updated your profile photo", fallback: "Could not upload profile photo."},
}

// Sections lists the form sections in a stable order.
func Sections() []Section {
	out := make([]Section, 0, len(sections))
	for s := range sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FormStatus returns the submission state of a section.
func (p *Portal) FormStatus(s Section) types.FormStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.forms[s]; ok {
		return st
	}
	return types.FormStatus{State: FormIdle}
}

// FormStatuses returns the state of every section.
func (p *Portal) FormStatuses() map[Section]types.FormStatus {
	out := make(map[Section]types.FormStatus, len(sections))
	for _, s := range Sections() {
		out[s] = p.FormStatus(s)
	}
	return out
}

func (p *Portal) setForm(s Section, st types.FormStatus) {
	p.mu.Lock()
	p.forms[s] = st
	p.mu.Unlock()
}

// UpdateBasic saves the personal information section.
func (p *Portal) UpdateBasic(ctx context.Context, in types.BasicProfileUpdate) (types.Profile, error) {
	return p.submit(ctx, SectionBasic, in, func(ctx context.Context) (types.Profile, error) {
		return p.api.UpdateBasic(ctx, in)
	})
}

// UpdateEducation saves the education section.
func (p *Portal) UpdateEducation(ctx context.Context, in types.Education) (types.Profile, error) {
	return p.submit(ctx, SectionEducation, in, func(ctx context.Context) (types.Profile, error) {
		return p.api.UpdateEducation(ctx, in)
	})
}

// UpdateLinks saves the social links section.
func (p *Portal) UpdateLinks(ctx context.Context, in types.ProfileLinks) (types.Profile, error) {
	return p.submit(ctx, SectionLinks, in, func(ctx context.Context) (types.Profile, error) {
		return p.api.UpdateLinks(ctx, in)
	})
}

// UpdatePreferences saves the preferences section.
func (p *Portal) UpdatePreferences(ctx context.Context, in types.Preferences) (types.Profile, error) {
	return p.submit(ctx, SectionPreferences, in, func(ctx context.Context) (types.Profile, error) {
		return p.api.UpdatePreferences(ctx, in)
	})
}

// UploadPhoto replaces the profile photo.
func (p *Portal) UploadPhoto(ctx context.Context, filename string, r io.Reader) (types.Profile, error) {
	return p.submit(ctx, SectionPhoto, nil, func(ctx context.Context) (types.Profile, error) {
		return p.api.UploadPhoto(ctx, filename, r)
	})
}

// submit runs one section update: validate, call, then fold the server's
// answer into the cached profile.
func (p *Portal) submit(ctx context.Context, s Section, in any, call func(context.Context) (types.Profile, error)) (types.Profile, error) {
	if !p.sess.Authenticated() {
		return types.Profile{}, ErrNotAuthenticated
	}
	text := sections[s]
	if in != nil {
		if err := validate.Struct(in); err != nil {
			oe := fieldsError("profile "+string(s), err)
			p.setForm(s, types.FormStatus{State: FormFailed, Error: oe.Message})
			return types.Profile{}, oe
		}
	}
	p.setForm(s, types.FormStatus{State: FormLoading})
	upd, err := call(ctx)
	if err != nil {
		oe := &OperationError{
			Op:      "profile " + string(s),
			Message: apiclient.Message(err, text.fallback),
			Status:  apiclient.StatusCode(err),
			Fields:  apiclient.FieldErrors(err),
			Err:     err,
		}
		p.setForm(s, types.FormStatus{State: FormFailed, Error: oe.Message})
		p.log.Info().Str("section", string(s)).Err(err).Msg("profile update failed")
		return types.Profile{}, oe
	}

	merged := upd
	if cur := p.Profile.Select(""); cur.HasData {
		merged = mergeProfile(s, cur.Data, upd)
	}
	if err := p.Profile.Put("", merged); err != nil {
		p.log.Warn().Err(err).Msg("cache profile")
	}
	if merged.User.Identifier() != "" {
		if err := p.sess.UpdateUser(merged.User); err != nil {
			p.log.Warn().Err(err).Msg("persist session user")
		}
	}
	p.setForm(s, types.FormStatus{State: FormSucceeded, Message: text.saved})
	return merged, nil
}

// mergeProfile folds the server's answer to a section update into cur. Only
// the submitted section is taken from upd.
func mergeProfile(s Section, cur, upd types.Profile) types.Profile {
	switch s {
	case SectionBasic, SectionPhoto:
		if upd.User.Identifier() != "" || upd.User.DisplayName() != "" {
			cur.User = upd.User
		}
	case SectionEducation:
		if upd.Education != nil {
			cur.Education = upd.Education
		}
	case SectionLinks:
		if upd.ProfileLinks != nil {
			cur.ProfileLinks = upd.ProfileLinks
		}
	case SectionPreferences:
		cur.Preferences = cur.Preferences.Merge(upd.Preferences)
	}
	return cur
}
