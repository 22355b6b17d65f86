// fakebackend.go - in-memory реализация backend PaperMind для тестов.
// Поднимает httptest.Server с теми же endpoints и форматами ответов.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
)

// FakeBackend - mock backend с хранилищем документов в памяти.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	docs      []model.Document
	processed map[string]bool
	failures  map[string]fakeFailure
	calls     map[string]int
	nextID    int
}

// fakeFailure - принудительная ошибка для endpoint.
type fakeFailure struct {
	status  int
	message string
}

// NewFakeBackend запускает mock backend и регистрирует его остановку в t.Cleanup.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		processed: make(map[string]bool),
		failures:  make(map[string]fakeFailure),
		calls:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", fb.handleHealth)
	mux.HandleFunc("GET /files", fb.handleList)
	mux.HandleFunc("POST /upload", fb.handleUpload)
	mux.HandleFunc("DELETE /files/remove", fb.handleRemove)
	mux.HandleFunc("POST /file/is-processed", fb.handleIsProcessed)
	mux.HandleFunc("POST /process-file", fb.handleProcess)

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL возвращает базовый URL mock backend.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// Seed добавляет документы в хранилище (в порядке передачи).
func (fb *FakeBackend) Seed(docs ...model.Document) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.docs = append(fb.docs, docs...)
}

// Documents возвращает копию текущего списка документов.
func (fb *FakeBackend) Documents() []model.Document {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]model.Document, len(fb.docs))
	copy(out, fb.docs)
	return out
}

// Fail заставляет endpoint (например, "POST /upload") отвечать ошибкой.
// status == 0 снимает принудительную ошибку.
func (fb *FakeBackend) Fail(route string, status int, message string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if status == 0 {
		delete(fb.failures, route)
		return
	}
	fb.failures[route] = fakeFailure{status: status, message: message}
}

// Calls возвращает количество обращений к endpoint ("GET /files" и т.п.).
func (fb *FakeBackend) Calls(route string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[route]
}

// enter учитывает вызов и возвращает принудительную ошибку, если она задана.
func (fb *FakeBackend) enter(w http.ResponseWriter, route string) bool {
	fb.mu.Lock()
	fb.calls[route]++
	failure, ok := fb.failures[route]
	fb.mu.Unlock()

	if ok {
		writeJSON(w, failure.status, map[string]string{"error": failure.message})
		return false
	}
	return true
}

func (fb *FakeBackend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"response": "OK"})
}

func (fb *FakeBackend) handleList(w http.ResponseWriter, _ *http.Request) {
	if !fb.enter(w, "GET /files") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": fb.Documents()})
}

func (fb *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !fb.enter(w, "POST /upload") {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No File Provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	fb.mu.Lock()
	fb.nextID++
	now := time.Now().UTC()
	doc := model.Document{
		ID:   fmt.Sprintf("fake-%d", fb.nextID),
		Name: header.Filename,
		Metadata: model.DocumentMetadata{
			MimeType: header.Header.Get("Content-Type"),
			Size:     int64(len(data)),
		},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		URL:            fb.Server.URL + "/storage/" + header.Filename,
	}
	fb.docs = append(fb.docs, doc)
	fb.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File uploaded successfully",
		"file":    doc,
	})
}

func (fb *FakeBackend) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !fb.enter(w, "DELETE /files/remove") {
		return
	}

	name := r.URL.Query().Get("path")
	fb.mu.Lock()
	kept := fb.docs[:0]
	removed := false
	for _, d := range fb.docs {
		if d.Name == name {
			removed = true
			continue
		}
		kept = append(kept, d)
	}
	fb.docs = kept
	delete(fb.processed, name)
	fb.mu.Unlock()

	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

func (fb *FakeBackend) handleIsProcessed(w http.ResponseWriter, r *http.Request) {
	if !fb.enter(w, "POST /file/is-processed") {
		return
	}
	name, ok := readFilename(w, r)
	if !ok {
		return
	}

	fb.mu.Lock()
	processed := fb.processed[name]
	fb.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"is_processed": processed})
}

func (fb *FakeBackend) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !fb.enter(w, "POST /process-file") {
		return
	}
	name, ok := readFilename(w, r)
	if !ok {
		return
	}

	fb.mu.Lock()
	fb.processed[name] = true
	fb.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "PDF processed"})
}

// readFilename разбирает тело {"filename": "..."}.
func readFilename(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Filename is required"})
		return "", false
	}
	return req.Filename, true
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
