package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/anismabaziz/paper-mind/internal/api/handlers"
	"github.com/anismabaziz/paper-mind/internal/backendclient"
	"github.com/anismabaziz/paper-mind/internal/config"
	"github.com/anismabaziz/paper-mind/internal/pdfcheck"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/service"
	"github.com/anismabaziz/paper-mind/internal/testutil"
	uihandlers "github.com/anismabaziz/paper-mind/internal/ui/handlers"
	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
	uimiddleware "github.com/anismabaziz/paper-mind/internal/ui/middleware"
	"github.com/anismabaziz/paper-mind/internal/ui/session"
)

type readyStub struct{}

func (readyStub) CheckReady() (string, string) { return "ok", "" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T, logger *slog.Logger) Handlers {
	t.Helper()

	fb := testutil.NewFakeBackend(t)
	backend, err := backendclient.New(fb.URL(), "", 0, true, logger)
	if err != nil {
		t.Fatal(err)
	}
	library := service.NewLibraryService(backend, query.NewClient(16, time.Minute), pdfcheck.NewValidator(1<<20), logger)

	bundle, err := i18n.Load(logger)
	if err != nil {
		t.Fatal(err)
	}
	manager, err := session.NewManager("test", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	return Handlers{
		Health:    handlers.NewHealthHandler(readyStub{}),
		Workspace: uihandlers.NewWorkspaceHandler(library, 1<<20, logger),
		Events:    uihandlers.NewEventsHandler(library, time.Hour, logger),
		I18n:      bundle,
		Sessions:  uimiddleware.NewSessions(manager, selection.NewRegistry(4, time.Hour), logger),
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := testLogger()

	srv := httptest.NewServer(NewRouter(logger, newTestHandlers(t, logger)))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_ServicePathsWithoutSession(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/static/css/app.css"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: статус %d", path, resp.StatusCode)
		}
		for _, c := range resp.Cookies() {
			if c.Name == session.CookieName {
				t.Errorf("GET %s выдал session cookie", path)
			}
		}
	}
}

func TestRouter_PageIssuesSession(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "<html") {
		t.Error("ожидалась HTML-страница")
	}

	found := false
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			found = true
		}
	}
	if !found {
		t.Error("session cookie не выдан")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("статус %d", resp.StatusCode)
	}
}

// TestServer_ShutdownClosesEventStreams - открытый SSE-поток не задерживает
// остановку сервера до таймаута.
func TestServer_ShutdownClosesEventStreams(t *testing.T) {
	logger := testLogger()
	cfg := &config.Config{ShutdownTimeout: 10 * time.Second}
	srv := New(cfg, logger, newTestHandlers(t, logger))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	streamClosed := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(streamClosed)
	}()

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("сервер не остановился при открытом SSE-потоке")
	}
	if elapsed := time.Since(start); elapsed >= cfg.ShutdownTimeout {
		t.Errorf("остановка заняла %s", elapsed)
	}

	select {
	case <-streamClosed:
	case <-time.After(time.Second):
		t.Error("SSE-поток не закрыт после остановки")
	}
}
