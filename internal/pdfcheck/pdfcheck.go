// Пакет pdfcheck - локальная проверка PDF перед загрузкой в backend.
package pdfcheck

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfMagic - сигнатура начала PDF-файла.
var pdfMagic = []byte("%PDF-")

// Ошибки проверки.
var (
	ErrEmpty    = errors.New("файл пустой")
	ErrTooLarge = errors.New("файл превышает допустимый размер")
	ErrNotPDF   = errors.New("файл не является PDF")
	ErrNoPages  = errors.New("PDF не содержит страниц")
)

var disableConfigDir sync.Once

// Validator проверяет загружаемые PDF.
type Validator struct {
	maxBytes int64
	conf     *model.Configuration
}

// NewValidator создаёт валидатор с ограничением размера maxBytes (0 - без ограничения).
func NewValidator(maxBytes int64) *Validator {
	// pdfcpu по умолчанию создаёт каталог конфигурации в $HOME
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &Validator{maxBytes: maxBytes, conf: conf}
}

// Validate проверяет файл и возвращает количество страниц.
func (v *Validator) Validate(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return 0, fmt.Errorf("%w: %d из %d байт", ErrTooLarge, len(data), v.maxBytes)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return 0, ErrNotPDF
	}

	pages, err := api.PageCount(bytes.NewReader(data), v.conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotPDF, err)
	}
	if pages == 0 {
		return 0, ErrNoPages
	}
	return pages, nil
}
