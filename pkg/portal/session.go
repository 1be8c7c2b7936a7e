// Package portal implements the authenticated client for the university's
// unified identity portal and the dormitory prepaid-power balance API.
package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultBaseURL is the unified identity service.
	DefaultBaseURL = "https://idas.uestc.edu.cn"
	// DefaultPortalURL is the campus service portal hosting the prepaid-power app.
	DefaultPortalURL = "https://eportal.uestc.edu.cn"

	loginPath  = "/authserver/login"
	targetPath = "/qljfwapp/sys/lwUestcDormElecPrepaid/index.do"

	// Fallback when the login form carries no pwdEncryptSalt input.
	defaultEncryptSalt = "rjBFAaHsNkKAhpoi"

	maxRedirects = 10
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
)

var encryptScriptRe = regexp.MustCompile(`encrypt\.js`)

// Credentials authenticate against the identity portal. They are never
// logged in plaintext.
type Credentials struct {
	Username string
	Password string
}

// Session is an opaque authenticated portal context backed by the cookie
// jar established at login. It is borrowed read-only by BalanceFetcher
// calls; invalidation goes through Manager.Invalidate.
type Session struct {
	client *http.Client
}

func (s *Session) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	return s.client.Do(req)
}

// Manager negotiates and caches a single authenticated session for all
// balance fetches in a polling cycle.
type Manager struct {
	baseURL   string
	portalURL string
	creds     Credentials
	computer  PayloadComputer
	client    *http.Client
	session   *Session
	logger    *slog.Logger
}

// NewManager creates a session manager. The computer executes the portal's
// crypto script; passing nil makes every login fail with
// ErrDependencyMissing.
func NewManager(baseURL, portalURL string, creds Credentials, computer PayloadComputer, logger *slog.Logger) *Manager {
	jar, _ := cookiejar.New(nil)
	return &Manager{
		baseURL:   baseURL,
		portalURL: portalURL,
		creds:     creds,
		computer:  computer,
		client: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
			// Redirects are followed manually so login responses can be
			// inspected hop by hop.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// EnsureSession returns the cached session, performing the login protocol
// when none is held. It never retries a rejected login itself; the retry
// budget belongs to the scheduler.
func (m *Manager) EnsureSession(ctx context.Context) (*Session, error) {
	if m.session != nil {
		return m.session, nil
	}
	if m.computer == nil {
		return nil, fmt.Errorf("%w: no payload computer configured", ErrDependencyMissing)
	}
	if err := m.login(ctx); err != nil {
		return nil, err
	}
	m.session = &Session{client: m.client}
	m.logger.Info("portal session established", "username", m.creds.Username)
	return m.session, nil
}

// Invalidate drops the cached session. The next EnsureSession re-runs the
// login protocol.
func (m *Manager) Invalidate() {
	m.session = nil
}

func (m *Manager) login(ctx context.Context) error {
	script, err := m.fetchEncryptScript(ctx)
	if err != nil {
		return err
	}

	// The portal app URL bounces through the identity service and lands on
	// the CAS form carrying the execution token for this login attempt.
	resp, err := m.followRedirects(ctx, m.portalURL+targetPath)
	if err != nil {
		return fmt.Errorf("fetch login form: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("parse login form: %w", err)
	}

	execution, ok := doc.Find(`input[name="execution"]`).Attr("value")
	if !ok {
		return fmt.Errorf("login form carries no execution parameter")
	}
	salt := doc.Find("#pwdEncryptSalt").AttrOr("value", defaultEncryptSalt)
	if salt == "" {
		salt = defaultEncryptSalt
	}

	encrypted, err := m.computer.Compute(script, m.creds.Password, salt)
	if err != nil {
		return err
	}

	form := url.Values{
		"username":  {m.creds.Username},
		"password":  {encrypted},
		"captcha":   {""},
		"_eventId":  {"submit"},
		"cllt":      {"userNameLogin"},
		"dllt":      {"generalLogin"},
		"lt":        {""},
		"execution": {execution},
	}
	// The form ships extra hidden parameters; pass them through untouched.
	doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, known := form[name]; known {
			return
		}
		form.Set(name, s.AttrOr("value", ""))
	})

	sess := &Session{client: m.client}
	loginResp, err := sess.postForm(ctx, m.baseURL+loginPath, form)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	defer drain(loginResp)

	switch {
	case loginResp.StatusCode == http.StatusUnauthorized:
		// Ambiguous on purpose: the portal answers 401 both for wrong
		// credentials and when it demands interactive slider verification.
		return fmt.Errorf("%w: status 401 (wrong credentials, or the portal demands interactive verification)", ErrAuthFailed)
	case !isRedirect(loginResp.StatusCode):
		return fmt.Errorf("%w: unexpected login status %d", ErrAuthFailed, loginResp.StatusCode)
	}

	loc := loginResp.Header.Get("Location")
	if loc == "" {
		return fmt.Errorf("%w: login redirect carries no Location header", ErrAuthFailed)
	}
	next, err := loginResp.Request.URL.Parse(loc)
	if err != nil {
		return fmt.Errorf("resolve login redirect %q: %w", loc, err)
	}

	final, err := m.followRedirects(ctx, next.String())
	if err != nil {
		return fmt.Errorf("complete login redirect chain: %w", err)
	}
	drain(final)
	return nil
}

// fetchEncryptScript locates the crypto script referenced by the login page
// and downloads it. The script URL changes between portal releases, so it
// is discovered rather than hardcoded.
func (m *Manager) fetchEncryptScript(ctx context.Context) (string, error) {
	resp, err := m.followRedirects(ctx, m.baseURL+loginPath)
	if err != nil {
		return "", fmt.Errorf("fetch login page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}

	var src string
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		if encryptScriptRe.MatchString(v) {
			src = v
			return false
		}
		return true
	})
	if src == "" {
		return "", fmt.Errorf("%w: login page references no crypto script", ErrDependencyMissing)
	}

	scriptURL, err := resp.Request.URL.Parse(src)
	if err != nil {
		return "", fmt.Errorf("resolve crypto script URL %q: %w", src, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	scriptResp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download crypto script: %w", err)
	}
	defer scriptResp.Body.Close()
	if scriptResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: crypto script returned status %d", ErrDependencyMissing, scriptResp.StatusCode)
	}

	body, err := io.ReadAll(scriptResp.Body)
	if err != nil {
		return "", fmt.Errorf("read crypto script: %w", err)
	}
	return string(body), nil
}

// followRedirects walks a redirect chain by hand, resolving relative
// Location headers, and returns the first non-redirect response.
func (m *Manager) followRedirects(ctx context.Context, start string) (*http.Response, error) {
	current := start
	for i := 0; i < maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, err
		}
		if !isRedirect(resp.StatusCode) {
			return resp, nil
		}

		loc := resp.Header.Get("Location")
		drain(resp)
		if loc == "" {
			return nil, fmt.Errorf("redirect from %s carries no Location header", current)
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("resolve redirect %q: %w", loc, err)
		}
		current = next.String()
	}
	return nil, fmt.Errorf("gave up after %d redirects from %s", maxRedirects, start)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
