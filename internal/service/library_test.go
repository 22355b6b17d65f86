package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anismabaziz/paper-mind/internal/backendclient"
	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/pdfcheck"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestLibrary создаёт сервис поверх in-memory backend.
func newTestLibrary(t *testing.T) (*LibraryService, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	client, err := backendclient.New(fb.URL(), "", 0, true, testLogger())
	require.NoError(t, err)

	svc := NewLibraryService(
		client,
		query.NewClient(64, time.Minute),
		pdfcheck.NewValidator(1<<20),
		testLogger(),
	)
	return svc, fb
}

func pdfUpload(name string) model.Upload {
	return model.Upload{Filename: name, Data: testutil.MinimalPDF(1)}
}

func names(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

func TestLibrary_UploadThenList(t *testing.T) {
	svc, _ := newTestLibrary(t)
	ctx := context.Background()

	// Прогреваем кэш пустым списком
	r := svc.Documents(ctx, nil)
	require.NoError(t, r.Err)
	require.Empty(t, r.Data)

	_, err := svc.Upload(ctx, pdfUpload("report.pdf"))
	require.NoError(t, err)

	r = svc.Documents(ctx, nil)
	require.NoError(t, r.Err)
	assert.Contains(t, names(r.Data), "report.pdf")
}

func TestLibrary_DeleteThenList(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(
		model.Document{ID: "1", Name: "a.pdf"},
		model.Document{ID: "2", Name: "b.pdf"},
	)
	ctx := context.Background()

	require.NoError(t, svc.Documents(ctx, nil).Err)

	deleted, err := svc.Delete(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", deleted.Name)

	r := svc.Documents(ctx, nil)
	require.NoError(t, r.Err)
	assert.NotContains(t, names(r.Data), "a.pdf")
	assert.Contains(t, names(r.Data), "b.pdf")
}

func TestLibrary_DeleteUnknown(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(model.Document{ID: "1", Name: "a.pdf"})

	_, err := svc.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, fb.Calls("DELETE /files/remove"))
}

// TestLibrary_DeleteGoneOnBackend - 404 от backend: ErrNotFound и перечитывание списка.
func TestLibrary_DeleteGoneOnBackend(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(model.Document{ID: "1", Name: "a.pdf"})
	ctx := context.Background()

	require.NoError(t, svc.Documents(ctx, nil).Err)
	listCalls := fb.Calls("GET /files")
	fb.Fail("DELETE /files/remove", http.StatusNotFound, "File not found")

	_, err := svc.Delete(ctx, "1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, backendclient.IsStatus(err, http.StatusNotFound))

	require.NoError(t, svc.Documents(ctx, nil).Err)
	assert.Greater(t, fb.Calls("GET /files"), listCalls, "список должен быть запрошен заново")
}

// TestLibrary_ProcessInvalidatesStatus - false до обработки, true после.
func TestLibrary_ProcessInvalidatesStatus(t *testing.T) {
	svc, fb := newTestLibrary(t)
	doc := model.Document{ID: "1", Name: "a.pdf"}
	fb.Seed(doc)
	ctx := context.Background()

	r := svc.IsProcessed(ctx, doc)
	require.NoError(t, r.Err)
	require.False(t, r.Data)

	// Статус закэширован
	require.False(t, svc.IsProcessed(ctx, doc).Data)
	assert.Equal(t, 1, fb.Calls("POST /file/is-processed"))

	_, err := svc.Process(ctx, doc)
	require.NoError(t, err)

	r = svc.IsProcessed(ctx, doc)
	require.NoError(t, r.Err)
	assert.True(t, r.Data)
	assert.Equal(t, 2, fb.Calls("POST /file/is-processed"))
}

// TestLibrary_UploadFailureKeepsCache - неуспешная загрузка не меняет список.
func TestLibrary_UploadFailureKeepsCache(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(model.Document{ID: "1", Name: "a.pdf"})
	ctx := context.Background()

	require.NoError(t, svc.Documents(ctx, nil).Err)
	fb.Fail("POST /upload", http.StatusInternalServerError, "storage down")

	_, err := svc.Upload(ctx, pdfUpload("b.pdf"))
	require.Error(t, err)
	assert.True(t, backendclient.IsStatus(err, http.StatusInternalServerError))

	r := svc.Documents(ctx, nil)
	require.NoError(t, r.Err)
	assert.Equal(t, []string{"a.pdf"}, names(r.Data))
	assert.Equal(t, 1, fb.Calls("GET /files"), "список не должен перезапрашиваться")
}

func TestLibrary_UploadInvalid(t *testing.T) {
	svc, fb := newTestLibrary(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		upload model.Upload
	}{
		{"без имени", model.Upload{Data: testutil.MinimalPDF(1)}},
		{"пустой файл", model.Upload{Filename: "a.pdf"}},
		{"не PDF", model.Upload{Filename: "a.pdf", Data: []byte("plain text")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.upload)
			require.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
	assert.Zero(t, fb.Calls("POST /upload"))
}

func TestLibrary_ListErrorNotCached(t *testing.T) {
	svc, fb := newTestLibrary(t)
	ctx := context.Background()

	fb.Fail("GET /files", http.StatusInternalServerError, "db down")
	r := svc.Documents(ctx, nil)
	require.Error(t, r.Err)
	assert.False(t, r.OK())

	fb.Fail("GET /files", 0, "")
	assert.NoError(t, svc.Documents(ctx, nil).Err)
}

func TestLibrary_Find(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(model.Document{ID: "7", Name: "seven.pdf"})

	doc, err := svc.Find(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "seven.pdf", doc.Name)

	_, err = svc.Find(context.Background(), "8")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestLibrary_AutoSelectFirst - первое получение списка выбирает первый документ.
func TestLibrary_AutoSelectFirst(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(
		model.Document{ID: "1", Name: "a.pdf"},
		model.Document{ID: "2", Name: "b.pdf"},
	)
	sel := selection.NewStore()

	require.NoError(t, svc.Documents(context.Background(), sel).Err)
	assert.Equal(t, "1", sel.Get().ID())
}

// TestLibrary_SelectionScenario: [1:a, 2:b] → выбран 1 → клик по 2 → удаление 1 → выбран 2.
func TestLibrary_SelectionScenario(t *testing.T) {
	svc, fb := newTestLibrary(t)
	fb.Seed(
		model.Document{ID: "1", Name: "a.pdf"},
		model.Document{ID: "2", Name: "b.pdf"},
	)
	sel := selection.NewStore()
	ctx := context.Background()

	require.NoError(t, svc.Documents(ctx, sel).Err)
	require.Equal(t, "1", sel.Get().ID())

	b, err := svc.Find(ctx, "2")
	require.NoError(t, err)
	sel.Set(b)

	// Повторные получения списка не сбрасывают явный выбор
	require.NoError(t, svc.Documents(ctx, sel).Err)
	require.Equal(t, "2", sel.Get().ID())

	_, err = svc.Delete(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, svc.Documents(ctx, sel).Err)

	assert.Equal(t, "2", sel.Get().ID())
	assert.Equal(t, "b.pdf", sel.Get().Document.Name)
}

func TestLibrary_OnInvalidate(t *testing.T) {
	svc, _ := newTestLibrary(t)
	var keys []query.Key
	unsubscribe := svc.OnInvalidate(func(k query.Key) { keys = append(keys, k) })
	defer unsubscribe()

	_, err := svc.Upload(context.Background(), pdfUpload("x.pdf"))
	require.NoError(t, err)

	require.NotEmpty(t, keys)
	assert.Equal(t, FilesKey, keys[0])
}
