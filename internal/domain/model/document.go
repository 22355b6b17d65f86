// Пакет model - доменные модели PaperMind UI.
// Document - запись о загруженном PDF, принадлежащая backend.
package model

import (
	"fmt"
	"time"
)

// MimeTypePDF - MIME-тип PDF-документов.
const MimeTypePDF = "application/pdf"

// DocumentMetadata - служебные сведения о файле, которые отдаёт backend.
type DocumentMetadata struct {
	// MimeType - MIME-тип файла
	MimeType string `json:"mimetype"`
	// Size - размер файла в байтах
	Size int64 `json:"size"`
}

// Document - один загруженный PDF, известный backend.
// Клиент никогда не изменяет документ локально: после любой мутации
// список перечитывается с backend.
type Document struct {
	// ID - непрозрачный идентификатор, назначенный backend
	ID string `json:"id"`
	// Name - имя файла; backend использует его как ключ для delete/process
	Name string `json:"name"`
	// Metadata - MIME-тип и размер
	Metadata DocumentMetadata `json:"metadata"`
	// CreatedAt - время создания записи
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt - время последнего изменения
	UpdatedAt time.Time `json:"updated_at"`
	// LastAccessedAt - время последнего обращения
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// URL - адрес, по которому браузер получает содержимое PDF
	URL string `json:"url"`
}

// Upload - исходные данные для загрузки файла.
type Upload struct {
	// Filename - имя файла в multipart-форме
	Filename string
	// MimeType - Content-Type части формы (пустой - application/pdf)
	MimeType string
	// Data - содержимое файла
	Data []byte
}

// ContentType возвращает MIME-тип загрузки с fallback на application/pdf.
func (u Upload) ContentType() string {
	if u.MimeType == "" {
		return MimeTypePDF
	}
	return u.MimeType
}

// UploadResult - ответ backend на загрузку файла.
// Ранние версии backend возвращают только url/filename,
// поздние - созданный Document в поле file.
type UploadResult struct {
	Message  string    `json:"message"`
	File     *Document `json:"file,omitempty"`
	URL      string    `json:"url,omitempty"`
	Filename string    `json:"filename,omitempty"`
}

// StoredName возвращает имя, под которым backend сохранил файл.
func (r UploadResult) StoredName() string {
	if r.File != nil && r.File.Name != "" {
		return r.File.Name
	}
	return r.Filename
}

// Границы единиц для FormatFileSize.
const (
	kilobyte = 1024
	megabyte = 1024 * 1024
)

// FormatFileSize форматирует размер файла для отображения:
// < 1 KB - "<n> bytes", < 1 MB - "<n.n> KB", иначе - "<n.n> MB".
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < kilobyte:
		return fmt.Sprintf("%d bytes", bytes)
	case bytes < megabyte:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/megabyte)
	}
}

// SizeLabel - FormatFileSize для размера документа.
func (d Document) SizeLabel() string {
	return FormatFileSize(d.Metadata.Size)
}

// IndexByID возвращает позицию документа с указанным ID или -1.
func IndexByID(docs []Document, id string) int {
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}
