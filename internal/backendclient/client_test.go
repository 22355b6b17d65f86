package backendclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/testutil"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestClient создаёт клиент с проверкой контракта.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL, "", 0, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания клиента: %v", err)
	}
	return c
}

// setupMockBackend создаёт mock HTTP-сервер с произвольным обработчиком.
func setupMockBackend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClient_ListDocuments(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(
		model.Document{ID: "1", Name: "a.pdf", Metadata: model.DocumentMetadata{MimeType: "application/pdf", Size: 10}},
		model.Document{ID: "2", Name: "b.pdf", Metadata: model.DocumentMetadata{MimeType: "application/pdf", Size: 20}},
	)

	docs, err := newTestClient(t, fb.URL()).ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("ожидалось 2 документа, получено %d", len(docs))
	}
	// Порядок backend сохраняется
	if docs[0].ID != "1" || docs[1].ID != "2" {
		t.Errorf("порядок нарушен: %s, %s", docs[0].ID, docs[1].ID)
	}
}

func TestClient_ListDocuments_Empty(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	docs, err := newTestClient(t, fb.URL()).ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("ожидался пустой (не nil) список, получено %#v", docs)
	}
}

// TestClient_UploadThenList - загруженный файл появляется в списке под своим именем.
func TestClient_UploadThenList(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	client := newTestClient(t, fb.URL())
	ctx := context.Background()

	result, err := client.UploadDocument(ctx, model.Upload{
		Filename: "report.pdf",
		Data:     []byte("%PDF-1.4 test"),
	})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if result.Message == "" {
		t.Error("ожидалось сообщение о загрузке")
	}
	if result.StoredName() != "report.pdf" {
		t.Errorf("StoredName() = %q, ожидается report.pdf", result.StoredName())
	}

	docs, err := client.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "report.pdf" {
		t.Fatalf("ожидался report.pdf в списке, получено %+v", docs)
	}
	if docs[0].Metadata.MimeType != model.MimeTypePDF {
		t.Errorf("MimeType = %q, ожидается %q", docs[0].Metadata.MimeType, model.MimeTypePDF)
	}
}

// TestClient_UploadMultipartShape проверяет формат multipart-запроса.
func TestClient_UploadMultipartShape(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q, ожидается multipart/form-data", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("поле file отсутствует: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		if header.Filename != `my "quoted".pdf` {
			t.Errorf("filename = %q", header.Filename)
		}
		if header.Header.Get("Content-Type") != "application/pdf" {
			t.Errorf("Content-Type части = %q", header.Header.Get("Content-Type"))
		}
		if string(data) != "%PDF-payload" {
			t.Errorf("содержимое = %q", string(data))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"File uploaded successfully","url":"https://s/x.pdf","filename":"x.pdf"}`))
	})

	result, err := newTestClient(t, server.URL).UploadDocument(context.Background(), model.Upload{
		Filename: `my "quoted".pdf`,
		Data:     []byte("%PDF-payload"),
	})
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	// Ранний формат ответа: только url/filename
	if result.File != nil || result.StoredName() != "x.pdf" {
		t.Errorf("неожиданный результат: %+v", result)
	}
}

// TestClient_DeleteByName - удаление передаёт имя в query-параметре path.
func TestClient_DeleteByName(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(
		model.Document{ID: "1", Name: "a.pdf"},
		model.Document{ID: "2", Name: "b.pdf"},
	)
	client := newTestClient(t, fb.URL())
	ctx := context.Background()

	msg, err := client.DeleteDocument(ctx, model.Document{ID: "1", Name: "a.pdf"})
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if msg == "" {
		t.Error("ожидалось сообщение об удалении")
	}

	docs, err := client.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	for _, d := range docs {
		if d.Name == "a.pdf" {
			t.Fatal("a.pdf остался в списке после удаления")
		}
	}
}

func TestClient_DeleteQueryEncoding(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/files/remove" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("path"); got != "отчёт 2024 & итог.pdf" {
			t.Errorf("path = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"deleted"}`))
	})

	if _, err := newTestClient(t, server.URL).DeleteDocument(context.Background(),
		model.Document{Name: "отчёт 2024 & итог.pdf"}); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
}

// TestClient_ProcessFlow - check=false, process, check=true.
func TestClient_ProcessFlow(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Seed(model.Document{ID: "1", Name: "a.pdf"})
	client := newTestClient(t, fb.URL())
	ctx := context.Background()
	doc := model.Document{ID: "1", Name: "a.pdf"}

	processed, err := client.CheckProcessed(ctx, doc)
	if err != nil {
		t.Fatalf("CheckProcessed: %v", err)
	}
	if processed {
		t.Fatal("новый документ не должен быть обработан")
	}

	if _, err := client.ProcessDocument(ctx, doc); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	processed, err = client.CheckProcessed(ctx, doc)
	if err != nil {
		t.Fatalf("CheckProcessed: %v", err)
	}
	if !processed {
		t.Fatal("после ProcessDocument ожидался is_processed=true")
	}
}

// TestClient_ProcessResponseShapes - /process-file отвечает полем message или results.
func TestClient_ProcessResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message": "PDF processed"}`, "PDF processed"},
		{"results", `{"results": "embedded 12 chunks"}`, "embedded 12 chunks"},
		{"оба поля", `{"message": "ok", "results": "embedded 3 chunks"}`, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != pathProcess {
					t.Errorf("путь = %q, ожидается %q", r.URL.Path, pathProcess)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := newTestClient(t, server.URL).ProcessDocument(context.Background(), model.Document{Name: "a.pdf"})
			if err != nil {
				t.Fatalf("ProcessDocument: %v", err)
			}
			if got != tt.want {
				t.Errorf("ProcessDocument() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestClient_FilenameBody(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("тело не JSON: %v", err)
		}
		if body["filename"] != "a.pdf" || len(body) != 1 {
			t.Errorf("тело = %v, ожидается {filename: a.pdf}", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_processed": true}`))
	})

	processed, err := newTestClient(t, server.URL).CheckProcessed(context.Background(), model.Document{Name: "a.pdf"})
	if err != nil {
		t.Fatalf("CheckProcessed: %v", err)
	}
	if !processed {
		t.Error("ожидался is_processed=true")
	}
}

// TestClient_StatusError - не-2xx возвращается как *StatusError с текстом ошибки backend.
func TestClient_StatusError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail("GET /files", http.StatusInternalServerError, "Error fetching files boom")

	_, err := newTestClient(t, fb.URL()).ListDocuments(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("ожидался *StatusError, получено %T: %v", err, err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if se.Message != "Error fetching files boom" {
		t.Errorf("Message = %q", se.Message)
	}
	if se.Operation != "ListDocuments" {
		t.Errorf("Operation = %q", se.Operation)
	}
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Error("IsStatus вернул false")
	}
}

func TestClient_StatusError_PlainBody(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})

	_, err := newTestClient(t, server.URL).ProcessDocument(context.Background(), model.Document{Name: "a.pdf"})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("ожидался *StatusError, получено %v", err)
	}
	if se.Message != "" || se.Body != "bad gateway" {
		t.Errorf("Message=%q Body=%q", se.Message, se.Body)
	}
	if !strings.Contains(se.Error(), "502") {
		t.Errorf("Error() = %q, ожидается код 502", se.Error())
	}
}

// TestClient_MalformedResponse - ответы вне контракта дают ErrMalformedResponse.
func TestClient_MalformedResponse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"не JSON", "application/json", "<html>oops</html>"},
		{"нет поля files", "application/json", `{"documents": []}`},
		{"files не массив", "application/json", `{"files": "a.pdf"}`},
		{"документ без id", "application/json", `{"files": [{"name": "a.pdf"}]}`},
		{"отрицательный размер", "application/json", `{"files": [{"id": "1", "name": "a.pdf", "metadata": {"size": -1}}]}`},
		{"не тот Content-Type", "text/html", `{"files": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := newTestClient(t, server.URL).ListDocuments(context.Background())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("ожидалась ErrMalformedResponse, получено %v", err)
			}
		})
	}
}

// TestClient_ValidationDisabled - без контракта проверяется только JSON.
func TestClient_ValidationDisabled(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"documents": []}`))
	})

	client, err := New(server.URL, "", 0, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	docs, err := client.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ожидался успех без проверки контракта: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("ожидался пустой список, получено %d", len(docs))
	}

	server2 := setupMockBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	client2, _ := New(server2.URL, "", 0, false, testLogger())
	if _, err := client2.ListDocuments(context.Background()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("ожидалась ErrMalformedResponse для не-JSON, получено %v", err)
	}
}

// TestClient_Unreachable - транспортная ошибка не является StatusError.
func TestClient_Unreachable(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")

	_, err := client.ListDocuments(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка для недоступного backend")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Error("транспортная ошибка не должна быть StatusError")
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Error("транспортная ошибка не должна быть ErrMalformedResponse")
	}
}

func TestClient_TrailingSlash(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	client := newTestClient(t, fb.URL()+"/")

	if client.BaseURL() != fb.URL() {
		t.Errorf("BaseURL() = %q, ожидается %q", client.BaseURL(), fb.URL())
	}
	if _, err := client.ListDocuments(context.Background()); err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
}

func TestNew_InvalidCACert(t *testing.T) {
	if _, err := New("https://backend", "/nonexistent/ca.pem", 0, false, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка для отсутствующего CA-сертификата")
	}
}
