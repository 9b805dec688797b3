// Package authclient mirrors the server-side session for Go callers (CLIs,
// integration tools, UI shells). It holds an immutable Snapshot that is
// replaced wholesale on every transition and never mutated in place.
//
// Concurrent Login/Logout calls are not de-duplicated; callers disable the
// trigger while IsLoading is true.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	loginEndpoint  = "/api/auth/login"
	logoutEndpoint = "/api/auth/logout"
	meEndpoint     = "/api/auth/me"

	defaultTimeout   = 10 * time.Second
	defaultLoginPath = "/login"
)

type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is the session snapshot the server reports for the caller.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      Ref    `json:"role"`
	Specialty *Ref   `json:"specialty,omitempty"`
}

// Snapshot is the read-only auth state exposed to callers.
type Snapshot struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
}

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. "https://clinic.example".
	BaseURL string
	// HTTPClient defaults to a client with a cookie jar and a 10s timeout.
	// A custom client needs a Jar to carry the session cookie.
	HTTPClient *http.Client
	// LoginPath is where Logout navigates. Defaults to "/login".
	LoginPath string
	// Navigate is called with the login path after logout.
	Navigate func(path string)
	// OnChange observes every snapshot replacement.
	OnChange func(Snapshot)
}

// Client talks to the session endpoints and caches the resulting state.
type Client struct {
	base      *url.URL
	http      *http.Client
	loginPath string
	navigate  func(string)
	onChange  func(Snapshot)
	jar       *resettableJar // nil when the caller supplied the client

	state atomic.Pointer[Snapshot]
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authclient: invalid base url %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	var jar *resettableJar
	if hc == nil {
		inner, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("authclient: cookie jar: %w", err)
		}
		jar = &resettableJar{inner: inner}
		hc = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}

	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}

	c := &Client{
		base:      base,
		http:      hc,
		loginPath: loginPath,
		navigate:  opts.Navigate,
		onChange:  opts.OnChange,
		jar:       jar,
	}
	c.state.Store(&Snapshot{})
	return c, nil
}

// Snapshot returns the current state. The returned User must be treated as
// read-only; it is shared with other readers of the same snapshot.
func (c *Client) Snapshot() Snapshot {
	return *c.state.Load()
}

// Login submits credentials. It reports only success or failure: bad
// credentials and transport errors are indistinguishable to the caller.
func (c *Client) Login(ctx context.Context, username, password string) bool {
	c.set(Snapshot{IsLoading: true})

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	var resp struct {
		OK   bool  `json:"ok"`
		User *User `json:"user"`
	}
	status, err := c.do(ctx, http.MethodPost, loginEndpoint, payload, &resp)
	if err != nil || status != http.StatusOK || !resp.OK || resp.User == nil {
		c.set(Snapshot{})
		return false
	}

	c.set(Snapshot{User: resp.User, IsAuthenticated: true})
	return true
}

// Logout asks the server to revoke the session, clears local state whatever
// the outcome, and navigates to the login path.
func (c *Client) Logout(ctx context.Context) {
	prev := c.Snapshot()
	c.set(Snapshot{User: prev.User, IsAuthenticated: prev.IsAuthenticated, IsLoading: true})

	_, _ = c.do(ctx, http.MethodPost, logoutEndpoint, nil, nil)
	c.forgetCookies()

	c.set(Snapshot{})
	if c.navigate != nil {
		c.navigate(c.loginPath)
	}
}

// Refresh re-reads the session from the server, as done on navigation. A
// 401 clears the state; transport failures keep the previous user and are
// returned.
func (c *Client) Refresh(ctx context.Context) error {
	prev := c.Snapshot()
	c.set(Snapshot{User: prev.User, IsAuthenticated: prev.IsAuthenticated, IsLoading: true})

	var resp struct {
		OK   bool  `json:"ok"`
		User *User `json:"user"`
	}
	status, err := c.do(ctx, http.MethodGet, meEndpoint, nil, &resp)
	switch {
	case err != nil:
		c.set(Snapshot{User: prev.User, IsAuthenticated: prev.IsAuthenticated})
		return err
	case status == http.StatusOK && resp.OK && resp.User != nil:
		c.set(Snapshot{User: resp.User, IsAuthenticated: true})
		return nil
	case status == http.StatusUnauthorized:
		c.set(Snapshot{})
		return nil
	default:
		c.set(Snapshot{User: prev.User, IsAuthenticated: prev.IsAuthenticated})
		return fmt.Errorf("authclient: refresh returned %d", status)
	}
}

func (c *Client) set(s Snapshot) {
	c.state.Store(&s)
	if c.onChange != nil {
		c.onChange(s)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// forgetCookies drops the session cookie locally even when the server could
// not be reached. Jars supplied by the caller are left alone.
func (c *Client) forgetCookies() {
	if c.jar == nil {
		return
	}
	if inner, err := cookiejar.New(nil); err == nil {
		c.jar.reset(inner)
	}
}

// resettableJar lets Logout swap the cookie store while other requests are
// in flight on the same http.Client.
type resettableJar struct {
	mu    sync.RWMutex
	inner http.CookieJar
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.inner.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

func (j *resettableJar) reset(inner http.CookieJar) {
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}
