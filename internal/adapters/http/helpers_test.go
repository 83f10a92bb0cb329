package web

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"rancho/internal/adapters/http/middleware"
	"rancho/internal/adapters/http/perf"
	"rancho/internal/adapters/storage"
	itemStore "rancho/internal/adapters/storage/item"
	sessionStore "rancho/internal/adapters/storage/session"
	"rancho/internal/adapters/upload"
	"rancho/internal/domain/credential"
	domainItem "rancho/internal/domain/item"
	domainSession "rancho/internal/domain/session"
)

const testPassword = "admin123"

// testEnv exposes the concrete stores behind the package globals.
type testEnv struct {
	items     itemStore.Store
	sessions  *sessionStore.MemoryStore
	uploads   *upload.DiskStore
	uploadDir string
	staticDir string
	options   Options
}

// setupTest wires the package globals to fresh stores.
// PRE: none
// POST: migrated in-memory database, empty session store, temp upload and static dirs
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	uploadDir := t.TempDir()
	uploads, err := upload.NewDiskStore(uploadDir)
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}
	secret, err := credential.FromPassword(testPassword)
	if err != nil {
		t.Fatalf("secret: %v", err)
	}

	env := &testEnv{
		items:     itemStore.NewSQLiteStore(db),
		sessions:  sessionStore.NewMemoryStore(),
		uploads:   uploads,
		uploadDir: uploadDir,
		staticDir: t.TempDir(),
	}
	env.options = Options{
		StaticDir: env.staticDir,
		UploadDir: uploadDir,
		Secret:    secret,
		CSRFKey:   bytes.Repeat([]byte("k"), 32),
		Ping:      db.PingContext,
	}
	stores = &Stores{ItemStore: env.items, SessionStore: env.sessions, UploadStore: uploads}
	opts = withDefaults(env.options)
	perfCollector = perf.NewCollector(100)
	return env
}

// seedItem stores an item directly.
func (e *testEnv) seedItem(t *testing.T, title string, price float64, image string) domainItem.Item {
	t.Helper()
	it, err := e.items.Create(context.Background(), domainItem.New(domainItem.Fields{Title: title, Price: price}, image))
	if err != nil {
		t.Fatalf("seed %s: %v", title, err)
	}
	return it
}

// asAdmin attaches an authenticated session to the request context, as Auth would.
func asAdmin(t *testing.T, env *testEnv, r *http.Request) *http.Request {
	t.Helper()
	sess, err := domainSession.New(time.Now(), time.Hour, true)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := env.sessions.Save(r.Context(), sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return r.WithContext(middleware.ContextWithSession(r.Context(), sess))
}

// multipartBody builds an item form; an empty fileName sends no foto part.
func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("field %s: %v", k, err)
		}
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("foto", fileName)
		if err != nil {
			t.Fatalf("file: %v", err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// newMultipartRequest builds an admin item request carrying a multipart form.
func newMultipartRequest(t *testing.T, method, target string, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, fields, fileName, content)
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// assertRedirect checks for a 303 to location.
func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %q)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}
