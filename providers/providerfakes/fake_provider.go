package providerfakes

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/SIR2425/go-oauth20/identity"
	"github.com/SIR2425/go-oauth20/providers"
	"golang.org/x/oauth2"
)

var _ providers.IdentityProvider = (*FakeProvider)(nil)

// AuthURL is the consent endpoint the fake builds redirects against
const AuthURL = "https://provider.example/authorize"

// Exchange records one ExchangeCodeForAssertion call
type Exchange struct {
	Code         string
	CodeVerifier string
}

// FakeProvider is a scriptable IdentityProvider. It returns Assertion, or Err
// when set, and records every call.
type FakeProvider struct {
	lock sync.Mutex

	Assertion *identity.Assertion
	Err       error

	lastScopes []string
	lastState  string
	exchanges  []Exchange
}

func NewFakeProvider(assertion *identity.Assertion) *FakeProvider {
	return &FakeProvider{Assertion: assertion}
}

func (fp *FakeProvider) Name() string { return "fake" }

func (fp *FakeProvider) BuildAuthorizationURL(scopes []string, state string, opts ...oauth2.AuthCodeOption) string {
	fp.lock.Lock()
	fp.lastScopes = append([]string(nil), scopes...)
	fp.lastState = state
	fp.lock.Unlock()

	cfg := oauth2.Config{
		ClientID:    "fake-client",
		RedirectURL: "http://localhost/auth/provider/callback",
		Endpoint:    oauth2.Endpoint{AuthURL: AuthURL},
		Scopes:      scopes,
	}
	return cfg.AuthCodeURL(state, opts...)
}

// ExchangeCodeForAssertion records the code and the PKCE verifier carried by opts.
func (fp *FakeProvider) ExchangeCodeForAssertion(_ context.Context, code string, opts ...oauth2.AuthCodeOption) (*identity.Assertion, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	fp.exchanges = append(fp.exchanges, Exchange{Code: code, CodeVerifier: verifierFrom(opts)})
	if fp.Err != nil {
		return nil, fp.Err
	}
	if fp.Assertion == nil {
		return nil, nil
	}
	a := *fp.Assertion
	return &a, nil
}

// SetResult replaces the scripted outcome
func (fp *FakeProvider) SetResult(assertion *identity.Assertion, err error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.Assertion = assertion
	fp.Err = err
}

func (fp *FakeProvider) Exchanges() []Exchange {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return append([]Exchange(nil), fp.exchanges...)
}

func (fp *FakeProvider) LastState() string {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.lastState
}

func (fp *FakeProvider) LastScopes() []string {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return append([]string(nil), fp.lastScopes...)
}

// StateFrom extracts the state parameter from a URL built by the fake.
func StateFrom(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}

// verifierFrom applies opts to a throwaway config's token request to read the code_verifier.
func verifierFrom(opts []oauth2.AuthCodeOption) string {
	cfg := oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: AuthURL}}
	u, err := url.Parse(cfg.AuthCodeURL("", opts...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("code_verifier"))
}
