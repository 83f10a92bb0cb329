package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"rancho/internal/adapters/http/perf"
)

var csrfFieldRe = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

// newTestServer starts the full middleware stack over fresh stores.
// PRE: customize may be nil
// POST: server closed at test cleanup
func newTestServer(t *testing.T, customize func(*Options)) (*testEnv, *browser) {
	t.Helper()
	env := setupTest(t)
	o := env.options
	if customize != nil {
		customize(&o)
	}
	srv := httptest.NewServer(NewMux(stores, o, perf.NewCollector(100)))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return env, &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.base+path, nil)
	return b.do(req)
}

// token loads a page carrying a form and returns its CSRF token.
func (b *browser) token(path string) string {
	b.t.Helper()
	_, body := b.get(path)
	m := csrfFieldRe.FindStringSubmatch(body)
	if m == nil {
		b.t.Fatalf("no CSRF token on %s", path)
	}
	return m[1]
}

func (b *browser) postForm(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(password string) *http.Response {
	b.t.Helper()
	resp, _ := b.postForm("/login", url.Values{
		"senha":              {password},
		"gorilla.csrf.Token": {b.token("/login")},
	})
	return resp
}

func TestRoutes_AdminRequiresAuth(t *testing.T) {
	_, b := newTestServer(t, nil)
	for _, path := range []string{"/admin", "/admin/edit/abc", "/admin/perf"} {
		resp, _ := b.get(path)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s: status = %d, Location = %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestRoutes_PostWithoutCSRFTokenRejected(t *testing.T) {
	_, b := newTestServer(t, nil)
	resp, _ := b.postForm("/login", url.Values{"senha": {testPassword}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestRoutes_AdminFlow(t *testing.T) {
	env, b := newTestServer(t, nil)
	ctx := context.Background()

	resp := b.login(testPassword)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin" {
		t.Fatalf("login: status = %d, Location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp, _ := b.get("/admin"); resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /admin after login: %d", resp.StatusCode)
	}

	token := b.token("/admin")
	resp, _ = b.postForm("/admin/add", url.Values{
		"titulo":             {"Costela"},
		"preco":              {"45.50"},
		"gorilla.csrf.Token": {token},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin" {
		t.Fatalf("add: status = %d", resp.StatusCode)
	}
	list, _ := env.items.List(ctx)
	if len(list) != 1 {
		t.Fatalf("items = %d, want 1", len(list))
	}
	id := list[0].ID

	resp, _ = b.postForm("/admin/status/"+id+"?_method=PUT", url.Values{"gorilla.csrf.Token": {token}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("toggle: status = %d", resp.StatusCode)
	}
	if got, _ := env.items.GetByID(ctx, id); got.Available {
		t.Error("toggle via method override did not flip availability")
	}

	resp, _ = b.postForm("/admin/edit/"+id+"?_method=PUT", url.Values{
		"titulo":             {"Costela no bafo"},
		"preco":              {"50"},
		"gorilla.csrf.Token": {token},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("edit: status = %d", resp.StatusCode)
	}
	if got, _ := env.items.GetByID(ctx, id); got.Title != "Costela no bafo" || got.Price != 50 {
		t.Errorf("after edit = %+v", got)
	}

	resp, _ = b.postForm("/admin/delete/"+id+"?_method=DELETE", url.Values{"gorilla.csrf.Token": {token}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	if list, _ := env.items.List(ctx); len(list) != 0 {
		t.Errorf("items after delete = %d", len(list))
	}

	if resp, _ := b.get("/logout"); resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Errorf("logout: status = %d", resp.StatusCode)
	}
	if resp, _ := b.get("/admin"); resp.StatusCode != http.StatusSeeOther {
		t.Errorf("GET /admin after logout: %d, want 303", resp.StatusCode)
	}
}

func TestRoutes_WrongPassword(t *testing.T) {
	_, b := newTestServer(t, nil)
	resp := b.login("errada")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if resp, _ := b.get("/admin"); resp.StatusCode != http.StatusSeeOther {
		t.Errorf("GET /admin after failed login: %d, want 303", resp.StatusCode)
	}
}

func TestRoutes_LoginRateLimit(t *testing.T) {
	_, b := newTestServer(t, func(o *Options) {
		o.LoginRate = 0.001
		o.LoginBurst = 2
	})
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, b.login("errada").StatusCode)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [401 401 429]", codes)
	}
}

func TestRoutes_SessionExpires(t *testing.T) {
	_, b := newTestServer(t, func(o *Options) {
		o.SessionTTL = 100 * time.Millisecond
	})
	if resp := b.login(testPassword); resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login: %d", resp.StatusCode)
	}
	time.Sleep(200 * time.Millisecond)
	resp, _ := b.get("/admin")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("expired session: status = %d", resp.StatusCode)
	}
}

func TestRoutes_StaticAndUploads(t *testing.T) {
	env, b := newTestServer(t, nil)
	if err := os.MkdirAll(filepath.Join(env.staticDir, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.staticDir, "css", "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.uploadDir, "1700000000000.jpg"), []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if resp, body := b.get("/css/style.css"); resp.StatusCode != http.StatusOK || body != "body{}" {
		t.Errorf("static: status = %d body = %q", resp.StatusCode, body)
	}
	if resp, body := b.get("/uploads/1700000000000.jpg"); resp.StatusCode != http.StatusOK || body != "jpg" {
		t.Errorf("upload: status = %d body = %q", resp.StatusCode, body)
	}
	if resp, _ := b.get("/uploads/"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("upload listing: status = %d, want 404", resp.StatusCode)
	}
	if resp, _ := b.get("/nope.txt"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file: status = %d, want 404", resp.StatusCode)
	}
}

func TestRoutes_PublicPageAndHeaders(t *testing.T) {
	_, b := newTestServer(t, nil)
	resp, body := b.get("/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Cardápio") {
		t.Fatalf("GET /: status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("request ID missing")
	}
	if resp, _ := b.get("/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: %d", resp.StatusCode)
	}
}
