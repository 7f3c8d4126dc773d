package server_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/internal/config"
	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/SIR2425/go-oauth20/providers/providerfakes"
	"github.com/SIR2425/go-oauth20/server"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	provider *providerfakes.FakeProvider
}

func newHarness(t *testing.T, overrides map[string]string) *harness {
	t.Helper()

	vars := map[string]string{
		"ENV":                  "TEST",
		"GOOGLE_CLIENT_ID":     "client-id",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"SESSION_SECRET":       testSessionSecret,
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.NewFromMap(vars)
	require.NoError(t, err)

	repo := sessions.NewInMemoryRepo(sessions.Policy{IdleTimeout: cfg.GetIdleTimeout(), MaxAge: cfg.GetMaxSessionAge()})
	provider := providerfakes.NewFakeProvider(&identity.Assertion{Provider: "fake", Subject: "u123", DisplayName: "Ada"})

	s, err := server.New(cfg, repo, provider, metrics.New())
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{t: t, srv: srv, client: client, provider: provider}
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, string(body)
}

// start runs the start route and returns the state sent to the provider
func (h *harness) start() string {
	h.t.Helper()
	resp, _ := h.get(server.RouteAuthStart)
	require.Equal(h.t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(h.t, strings.HasPrefix(location, providerfakes.AuthURL), location)
	state := providerfakes.StateFrom(location)
	require.NotEmpty(h.t, state)
	return state
}

func (h *harness) callback(params url.Values) *http.Response {
	h.t.Helper()
	resp, _ := h.get(server.RouteAuthCallback + "?" + params.Encode())
	return resp
}

func (h *harness) sessionCookie() *http.Cookie {
	h.t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(h.t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	return nil
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `href="/auth/provider"`)
	require.Nil(t, h.sessionCookie(), "the entry page creates no session")

	resp, _ = h.get(server.RouteProfile)
	requireRedirect(t, resp, server.RouteIndex)

	state := h.start()
	preLogin := h.sessionCookie()
	require.NotNil(t, preLogin)

	resp = h.callback(url.Values{"code": {"validcode"}, "state": {state}})
	requireRedirect(t, resp, server.RouteProfile)
	require.NotEqual(t, preLogin.Value, h.sessionCookie().Value)

	resp, body = h.get(server.RouteProfile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Welcome, Ada")
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, _ = h.get(server.RouteLogout)
	requireRedirect(t, resp, server.RouteIndex)
	require.Nil(t, h.sessionCookie())

	resp, _ = h.get(server.RouteProfile)
	requireRedirect(t, resp, server.RouteIndex)
}

func TestLoginFlow_PreLoginCookieIsRetired(t *testing.T) {
	h := newHarness(t, nil)
	state := h.start()
	preLogin := h.sessionCookie()

	resp := h.callback(url.Values{"code": {"validcode"}, "state": {state}})
	requireRedirect(t, resp, server.RouteProfile)

	// A client still holding the pre-login cookie is not logged in
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+server.RouteProfile, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName, Value: preLogin.Value})
	stale, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer stale.Body.Close()
	requireRedirect(t, stale, server.RouteIndex)
}

func responseCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	return nil
}

func TestProfile_SlidingExpiryRefreshesCookie(t *testing.T) {
	h := newHarness(t, map[string]string{"SESSION_IDLE_TIMEOUT": "2s", "SESSION_MAX_AGE": "0s"})
	state := h.start()
	requireRedirect(t, h.callback(url.Values{"code": {"validcode"}, "state": {state}}), server.RouteProfile)
	loggedIn := h.sessionCookie()

	resp, _ := h.get(server.RouteProfile)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	refreshed := responseCookie(resp)
	require.NotNil(t, refreshed, "protected responses reissue the session cookie")
	require.Equal(t, 2, refreshed.MaxAge)
	require.True(t, refreshed.HttpOnly)

	codec, err := sessions.NewCookieCodec(testSessionSecret, false, time.Minute)
	require.NoError(t, err)
	before, err := codec.Decode(loggedIn.Value)
	require.NoError(t, err)
	after, err := codec.Decode(refreshed.Value)
	require.NoError(t, err)
	require.Equal(t, before, after, "the refreshed cookie names the same session")

	resp, _ = h.get(server.RouteProfile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfile_FixedExpiryKeepsCookie(t *testing.T) {
	h := newHarness(t, map[string]string{"SESSION_SLIDING": "false"})
	state := h.start()
	requireRedirect(t, h.callback(url.Values{"code": {"validcode"}, "state": {state}}), server.RouteProfile)

	resp, _ := h.get(server.RouteProfile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, responseCookie(resp))
}

func TestCallback_IssuesCookieWithoutRotation(t *testing.T) {
	h := newHarness(t, map[string]string{"SESSION_ROTATE_ON_LOGIN": "false"})
	state := h.start()

	resp := h.callback(url.Values{"code": {"validcode"}, "state": {state}})
	requireRedirect(t, resp, server.RouteProfile)
	cookie := responseCookie(resp)
	require.NotNil(t, cookie, "login restarts the cookie lifetime")
	require.Equal(t, 30*60, cookie.MaxAge)
}

func TestStart_SessionCookieAttributes(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.client.Get(h.srv.URL + server.RouteAuthStart)
	require.NoError(t, err)
	defer resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessions.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, 30*60, cookie.MaxAge)
}

func TestStart_ReusesLiveSession(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	first := h.sessionCookie()

	h.start()
	require.Equal(t, first.Value, h.sessionCookie().Value)
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name   string
		params func(state string) url.Values
	}{
		{
			name:   "provider denied",
			params: func(state string) url.Values { return url.Values{"error": {"access_denied"}, "state": {state}} },
		},
		{
			name:   "forged state",
			params: func(string) url.Values { return url.Values{"code": {"validcode"}, "state": {"S2"}} },
		},
		{
			name:   "missing state",
			params: func(string) url.Values { return url.Values{"code": {"validcode"}} },
		},
		{
			name:   "missing code",
			params: func(state string) url.Values { return url.Values{"state": {state}} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			state := h.start()

			resp := h.callback(tt.params(state))
			requireRedirect(t, resp, server.RouteIndex)
			require.Empty(t, h.provider.Exchanges())

			resp, _ = h.get(server.RouteProfile)
			requireRedirect(t, resp, server.RouteIndex)
		})
	}
}

func TestCallback_ExchangeFailure(t *testing.T) {
	h := newHarness(t, nil)
	state := h.start()
	h.provider.SetResult(nil, apperrors.Wrapf(apperrors.ErrNetwork, "dial tcp: connection refused"))

	resp := h.callback(url.Values{"code": {"validcode"}, "state": {state}})
	requireRedirect(t, resp, server.RouteIndex)

	resp, _ = h.get(server.RouteProfile)
	requireRedirect(t, resp, server.RouteIndex)
}

func TestCallback_Replay(t *testing.T) {
	h := newHarness(t, map[string]string{"SESSION_ROTATE_ON_LOGIN": "false"})
	state := h.start()
	params := url.Values{"code": {"validcode"}, "state": {state}}

	requireRedirect(t, h.callback(params), server.RouteProfile)
	requireRedirect(t, h.callback(params), server.RouteIndex)
	require.Len(t, h.provider.Exchanges(), 1)
}

func TestCallback_WithoutSession(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.callback(url.Values{"code": {"validcode"}, "state": {"S1"}})
	requireRedirect(t, resp, server.RouteIndex)
	require.Empty(t, h.provider.Exchanges())
}

func TestProfile_EscapesDisplayName(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.SetResult(&identity.Assertion{Provider: "fake", Subject: "u1", DisplayName: `<script>alert(1)</script>`}, nil)
	state := h.start()
	requireRedirect(t, h.callback(url.Values{"code": {"validcode"}, "state": {state}}), server.RouteProfile)

	_, body := h.get(server.RouteProfile)
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.Contains(t, body, "&lt;script&gt;")
}

func TestProfile_TamperedCookie(t *testing.T) {
	h := newHarness(t, nil)
	state := h.start()
	requireRedirect(t, h.callback(url.Values{"code": {"validcode"}, "state": {state}}), server.RouteProfile)

	cookie := h.sessionCookie()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+server.RouteProfile, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName, Value: cookie.Value + "x"})
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	requireRedirect(t, resp, server.RouteIndex)
}

func TestLogout_WithoutSession(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.get(server.RouteLogout)
	requireRedirect(t, resp, server.RouteIndex)
}

func TestOperationalRoutes(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	resp, body := h.get(server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)

	resp, body = h.get(server.RouteMetrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "oauth_login_flows_started_total 1")

	resp, _ = h.get("/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResponses_CarryRequestID(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.get("/")
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}
