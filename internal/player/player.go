// Package player builds the embed URL of the live-lecture video player.
package player

import (
	"errors"
	"net/url"
	"strings"
)

// Placeholders substituted in a URL template.
const (
	SessionIDPlaceholder = "{sessionId}"
	TokenPlaceholder     = "{token}"
)

// DefaultTemplates are tried after the configured template, in order.
var DefaultTemplates = []string{
	"https://player.fermion.app/player/{sessionId}?token={token}",
	"https://fermion.app/live/{sessionId}?token={token}",
	"https://codedamn.com/player/{sessionId}?token={token}",
}

// ErrNoTemplate is returned when no template yields a complete URL.
var ErrNoTemplate = errors.New("no valid player URL template configured")

// Templates returns the configured template followed by the defaults. A blank
// configured template is skipped.
func Templates(configured string) []string {
	out := make([]string, 0, len(DefaultTemplates)+1)
	if t := strings.TrimSpace(configured); t != "" {
		out = append(out, t)
	}
	return append(out, DefaultTemplates...)
}

// Build substitutes sessionID and token into each template and returns the
// first result that is an absolute http(s) URL with no placeholder left.
func Build(templates []string, sessionID, token string) (string, error) {
	if sessionID == "" || token == "" {
		return "", errors.New("player: session id and token are required")
	}
	r := strings.NewReplacer(
		SessionIDPlaceholder, url.PathEscape(sessionID),
		TokenPlaceholder, url.QueryEscape(token),
	)
	for _, t := range templates {
		if t == "" {
			continue
		}
		u := r.Replace(t)
		if strings.Contains(u, SessionIDPlaceholder) || strings.Contains(u, TokenPlaceholder) {
			continue
		}
		if p, err := url.Parse(u); err != nil || (p.Scheme != "https" && p.Scheme != "http") || p.Host == "" {
			continue
		}
		return u, nil
	}
	return "", ErrNoTemplate
}
