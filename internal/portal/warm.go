package portal

import (
	"context"

	"golang.org/x/sync/errgroup"

	"portald/internal/store"
)

// Warm loads the landing views in parallel: dashboard, courses, upcoming
// lectures and profile. Fetch failures land in their slots; the returned
// error is non-nil only when ctx ends first.
func (p *Portal) Warm(ctx context.Context) error {
	if !p.sess.Authenticated() {
		return ErrNotAuthenticated
	}
	keys := []store.Key{
		p.Dashboard.Key(""),
		p.Courses.Key(""),
		p.Upcoming.Key(""),
		p.Profile.Key(""),
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			if _, err := p.store.Trigger(k); err != nil {
				return err
			}
			snap, err := p.store.Await(gctx, k)
			if err != nil {
				return err
			}
			p.log.Debug().Str("key", k.String()).Str("status", string(snap.Status)).Msg("warmed")
			return nil
		})
	}
	return g.Wait()
}
