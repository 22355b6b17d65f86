package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048575, "1024.0 KB"},
		{1048576, "1.0 MB"},
		{2 * 1048576, "2.0 MB"},
		{5500000, "5.2 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.bytes); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, ожидается %q", tt.bytes, got, tt.want)
		}
	}
}

// TestDocument_DecodeBackendJSON проверяет разбор записи из GET /files.
func TestDocument_DecodeBackendJSON(t *testing.T) {
	raw := `{
		"id": "1",
		"name": "report.pdf",
		"metadata": {"mimetype": "application/pdf", "size": 2097152},
		"created_at": "2025-03-01T10:00:00.123Z",
		"updated_at": "2025-03-01T10:00:00.123Z",
		"last_accessed_at": "2025-03-02T08:30:00Z",
		"url": "https://storage.example.com/papermind-pdf/report.pdf"
	}`

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}

	if doc.ID != "1" || doc.Name != "report.pdf" {
		t.Errorf("ID/Name = %q/%q", doc.ID, doc.Name)
	}
	if doc.Metadata.MimeType != MimeTypePDF {
		t.Errorf("MimeType = %q", doc.Metadata.MimeType)
	}
	if doc.SizeLabel() != "2.0 MB" {
		t.Errorf("SizeLabel() = %q, ожидается 2.0 MB", doc.SizeLabel())
	}
	want := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	if !doc.LastAccessedAt.Equal(want) {
		t.Errorf("LastAccessedAt = %v, ожидается %v", doc.LastAccessedAt, want)
	}
}

// TestDocument_DecodeNullFields - backend отдаёт null для служебных записей.
func TestDocument_DecodeNullFields(t *testing.T) {
	raw := `{"id": "x", "name": "a.pdf", "metadata": null, "created_at": null, "url": ""}`

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if doc.Metadata.Size != 0 || !doc.CreatedAt.IsZero() {
		t.Errorf("ожидались нулевые значения, получено %+v", doc)
	}
}

func TestUploadResult_StoredName(t *testing.T) {
	withFile := UploadResult{File: &Document{Name: "abc.pdf"}, Filename: "ignored.pdf"}
	if got := withFile.StoredName(); got != "abc.pdf" {
		t.Errorf("StoredName() = %q, ожидается abc.pdf", got)
	}

	legacy := UploadResult{Filename: "0f1e.pdf", URL: "https://x/0f1e.pdf"}
	if got := legacy.StoredName(); got != "0f1e.pdf" {
		t.Errorf("StoredName() = %q, ожидается 0f1e.pdf", got)
	}
}

func TestUpload_ContentType(t *testing.T) {
	if got := (Upload{}).ContentType(); got != MimeTypePDF {
		t.Errorf("ContentType() = %q, ожидается %q", got, MimeTypePDF)
	}
	if got := (Upload{MimeType: "application/x-pdf"}).ContentType(); got != "application/x-pdf" {
		t.Errorf("ContentType() = %q", got)
	}
}

func TestIndexByID(t *testing.T) {
	docs := []Document{{ID: "1"}, {ID: "2"}}
	if IndexByID(docs, "2") != 1 {
		t.Error("ожидался индекс 1 для ID=2")
	}
	if IndexByID(docs, "3") != -1 {
		t.Error("ожидался -1 для отсутствующего ID")
	}
}
