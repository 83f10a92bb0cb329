package browser_test

import (
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	web "rancho/internal/adapters/http"
	"rancho/internal/adapters/http/middleware"
	"rancho/internal/adapters/http/perf"
	"rancho/internal/adapters/storage"
	itemStore "rancho/internal/adapters/storage/item"
	sessionStore "rancho/internal/adapters/storage/session"
	"rancho/internal/adapters/upload"
	"rancho/internal/domain/credential"
)

const adminPassword = "TestPass123!"

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL   string
	DB        *sql.DB
	Server    *http.Server
	PW        *playwright.Playwright
	Browser   playwright.Browser
	Stores    *web.Stores
	UploadDir string
}

// newTestApp creates a fully wired app with a temp SQLite DB and starts an HTTP server.
// Skips when Playwright browsers are not installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	uploadDir := filepath.Join(tmpDir, "uploads")
	uploads, err := upload.NewDiskStore(uploadDir)
	if err != nil {
		t.Fatalf("failed to create upload dir: %v", err)
	}
	secret, err := credential.FromPassword(adminPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	stores := &web.Stores{
		ItemStore:    itemStore.NewSQLiteStore(db),
		SessionStore: sessionStore.NewMemoryStore(),
		UploadStore:  uploads,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host := ln.Addr().String()
	_, port, _ := net.SplitHostPort(host)
	middleware.ExtraTrustedOrigins = append(middleware.ExtraTrustedOrigins, host, "localhost:"+port)

	mux := web.NewMux(stores, web.Options{
		StaticDir: filepath.Join(findProjectRoot(t), "static"),
		UploadDir: uploadDir,
		Secret:    secret,
		CSRFKey:   []byte("0123456789abcdef0123456789abcdef"),
		Ping:      db.PingContext,
	}, perf.NewCollector(100))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("menu test server: %v", err)
		}
	}()
	baseURL := "http://" + host
	waitHealthy(t, baseURL)

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		db.Close()
		t.Skipf("Playwright unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		db.Close()
		t.Skipf("failed to launch browser: %v", err)
	}

	app := &testApp{
		BaseURL:   baseURL,
		DB:        db,
		Server:    srv,
		PW:        pw,
		Browser:   browser,
		Stores:    stores,
		UploadDir: uploadDir,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		db.Close()
	})

	return app
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login submits the admin password and waits for the panel.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=senha]").Fill(adminPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click login: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/admin", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to admin: %v", err)
	}
}

// waitHealthy polls /healthz until the server answers or two seconds pass.
func waitHealthy(t *testing.T, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(baseURL + "/healthz"); err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server at %s never became healthy", baseURL)
}

// findProjectRoot walks up from the working directory to find the project root (contains go.mod).
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod) from working directory")
		}
		dir = parent
	}
}
