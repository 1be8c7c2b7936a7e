package portal_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weilai0412/dormwatt/pkg/portal"
)

const testEncryptJS = `function encryptPassword(pwd, salt) { return salt + ":" + pwd; }`

func loginPageHTML(withScript bool) string {
	script := ""
	if withScript {
		script = `<script src="/authserver/uestcTheme/static/common/encrypt.js?v=20240901"></script>`
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>%s</head><body>
<form id="pwdFromId" action="/authserver/login" method="post">
  <input name="execution" value="e1s1-token"/>
  <input type="hidden" id="pwdEncryptSalt" value="saltsalt12345678"/>
  <input type="hidden" name="source" value="web"/>
</form>
</body></html>`, script)
}

// fakePortal simulates the identity service plus the balance portal on a
// single httptest server.
type fakePortal struct {
	srv        *httptest.Server
	loginPosts atomic.Int64
	rejectAll  bool
	noScript   bool

	lastPassword  string
	lastExecution string
	lastSource    string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	f := &fakePortal{}
	mux := http.NewServeMux()

	mux.HandleFunc("/authserver/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, loginPageHTML(!f.noScript))
			return
		}
		f.loginPosts.Add(1)
		require.NoError(t, r.ParseForm())
		f.lastPassword = r.PostFormValue("password")
		f.lastExecution = r.PostFormValue("execution")
		f.lastSource = r.PostFormValue("source")
		if f.rejectAll {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "CASTGC", Value: "ticket"})
		w.Header().Set("Location", "/portal/home")
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/authserver/uestcTheme/static/common/encrypt.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		io.WriteString(w, testEncryptJS)
	})

	// The portal app bounces unauthenticated visitors to the login form.
	mux.HandleFunc("/qljfwapp/sys/lwUestcDormElecPrepaid/index.do", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/authserver/login")
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/portal/home", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "welcome")
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(f *fakePortal, computer portal.PayloadComputer) *portal.Manager {
	creds := portal.Credentials{Username: "2022080912016", Password: "secret"}
	return portal.NewManager(f.srv.URL, f.srv.URL, creds, computer, testLogger())
}

func TestManager_EnsureSession_LoginFlow(t *testing.T) {
	f := newFakePortal(t)
	m := newTestManager(f, portal.NewGojaComputer())

	sess, err := m.EnsureSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)

	// Password travels only in its encrypted form.
	assert.Equal(t, "saltsalt12345678:secret", f.lastPassword)
	assert.Equal(t, "e1s1-token", f.lastExecution)
	// Hidden form fields are passed through.
	assert.Equal(t, "web", f.lastSource)
	assert.EqualValues(t, 1, f.loginPosts.Load())
}

func TestManager_EnsureSession_Cached(t *testing.T) {
	f := newFakePortal(t)
	m := newTestManager(f, portal.NewGojaComputer())

	_, err := m.EnsureSession(context.Background())
	require.NoError(t, err)
	_, err = m.EnsureSession(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.loginPosts.Load())
}

func TestManager_Invalidate_ForcesRelogin(t *testing.T) {
	f := newFakePortal(t)
	m := newTestManager(f, portal.NewGojaComputer())

	_, err := m.EnsureSession(context.Background())
	require.NoError(t, err)

	m.Invalidate()
	_, err = m.EnsureSession(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, f.loginPosts.Load())
}

func TestManager_EnsureSession_Rejected(t *testing.T) {
	f := newFakePortal(t)
	f.rejectAll = true
	m := newTestManager(f, portal.NewGojaComputer())

	_, err := m.EnsureSession(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrAuthFailed)
	// No internal retry on 401; that budget belongs to the scheduler.
	assert.EqualValues(t, 1, f.loginPosts.Load())
}

func TestManager_EnsureSession_NoComputer(t *testing.T) {
	f := newFakePortal(t)
	m := newTestManager(f, nil)

	_, err := m.EnsureSession(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrDependencyMissing)
	assert.EqualValues(t, 0, f.loginPosts.Load())
}

func TestManager_EnsureSession_NoCryptoScript(t *testing.T) {
	f := newFakePortal(t)
	f.noScript = true
	m := newTestManager(f, portal.NewGojaComputer())

	_, err := m.EnsureSession(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrDependencyMissing)
	assert.EqualValues(t, 0, f.loginPosts.Load())
}
