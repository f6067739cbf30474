package validation

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// RedirectURIValidator decides whether a redirect_uri belongs to a
// client. Pluggable so deployments can relax matching for native apps.
type RedirectURIValidator interface {
	IsRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error)
	IsPostLogoutRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error)
}

// StrictRedirectURIValidator matches by exact string comparison.
type StrictRedirectURIValidator struct{}

func (StrictRedirectURIValidator) IsRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error) {
	return containsExact(client.RedirectURIs, requested), nil
}

func (StrictRedirectURIValidator) IsPostLogoutRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error) {
	return containsExact(client.PostLogoutRedirectURIs, requested), nil
}

// LoopbackRedirectURIValidator is strict matching plus the RFC 8252
// §7.3 allowance: registered http loopback URIs match regardless of the
// port the native app actually bound.
type LoopbackRedirectURIValidator struct{}

func (LoopbackRedirectURIValidator) IsRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error) {
	if containsExact(client.RedirectURIs, requested) {
		return true, nil
	}
	req, err := url.Parse(requested)
	if err != nil || !isLoopback(req) {
		return false, nil
	}
	for _, registered := range client.RedirectURIs {
		reg, err := url.Parse(registered)
		if err != nil || !isLoopback(reg) {
			continue
		}
		if req.Hostname() == reg.Hostname() && req.Path == reg.Path {
			return true, nil
		}
	}
	return false, nil
}

func (LoopbackRedirectURIValidator) IsPostLogoutRedirectURIValid(ctx context.Context, requested string, client *model.Client) (bool, error) {
	return containsExact(client.PostLogoutRedirectURIs, requested), nil
}

func containsExact(registered []string, requested string) bool {
	if requested == "" {
		return false
	}
	for _, r := range registered {
		if r == requested {
			return true
		}
	}
	return false
}

func isLoopback(u *url.URL) bool {
	if !strings.EqualFold(u.Scheme, "http") {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
