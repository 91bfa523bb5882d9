package capture

import (
	"context"
	"net/url"
	"strings"
)

// LoginState is what the page suggests about the profile's session.
type LoginState string

const (
	LoginUnknown   LoginState = "unknown"
	LoginLoggedIn  LoginState = "logged-in"
	LoginLoggedOut LoginState = "logged-out"
)

// loginMarkers lists the selectors for one site. A user marker means logged
// in; otherwise a login marker, or absentOut, means logged out.
type loginMarkers struct {
	domain    string
	user      []string
	login     []string
	absentOut bool
}

var loginSites = []loginMarkers{
	{
		domain: "naver.com",
		user:   []string{".gnb_name", `[data-clk="gnb.myinfo"]`, ".MyView-module__user_name"},
		login:  []string{`a[href*="login"]`, ".MyView-module__link_login"},
	},
	{
		domain:    "google.com",
		user:      []string{"[data-ogsr-up]", ".gb_d", `[aria-label*="Google Account"]`},
		absentOut: true,
	},
}

func markersFor(rawURL string) (loginMarkers, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return loginMarkers{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, m := range loginSites {
		if host == m.domain || strings.HasSuffix(host, "."+m.domain) {
			return m, true
		}
	}
	return loginMarkers{}, false
}

// detectLogin inspects the current page of sess. Sites without known markers
// and selector errors yield LoginUnknown.
func detectLogin(ctx context.Context, sess Session, pageURL string) (LoginState, error) {
	m, ok := markersFor(pageURL)
	if !ok {
		return LoginUnknown, nil
	}
	found, err := anyMatch(ctx, sess, m.user)
	if err != nil {
		return LoginUnknown, err
	}
	if found {
		return LoginLoggedIn, nil
	}
	if m.absentOut {
		return LoginLoggedOut, nil
	}
	found, err = anyMatch(ctx, sess, m.login)
	if err != nil {
		return LoginUnknown, err
	}
	if found {
		return LoginLoggedOut, nil
	}
	return LoginUnknown, nil
}

func anyMatch(ctx context.Context, sess Session, selectors []string) (bool, error) {
	for _, sel := range selectors {
		n, err := sess.Count(ctx, sel)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
