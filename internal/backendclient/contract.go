package backendclient

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
)

// contractSpec - OpenAPI-описание используемых endpoints backend.
//
//go:embed contract/openapi.yaml
var contractSpec []byte

// contract проверяет ответы backend по встроенному OpenAPI-документу.
type contract struct {
	doc *openapi3.T
}

// loadContract разбирает и валидирует встроенный OpenAPI-документ.
func loadContract(ctx context.Context) (*contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(contractSpec)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI-контракта backend: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-контракта backend: %w", err)
	}

	return &contract{doc: doc}, nil
}

// validateResponse проверяет успешный ответ backend.
// path - шаблон пути из контракта (например, /files/remove), без базового URL:
// backend может быть опубликован под произвольным префиксом.
func (c *contract) validateResponse(ctx context.Context, req *http.Request, path string, status int, header http.Header, body []byte) error {
	pathItem := c.doc.Paths.Find(path)
	if pathItem == nil {
		return fmt.Errorf("путь %s отсутствует в контракте", path)
	}
	op := pathItem.GetOperation(req.Method)
	if op == nil {
		return fmt.Errorf("метод %s %s отсутствует в контракте", req.Method, path)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request: req,
			Route: &routers.Route{
				Spec:      c.doc,
				Path:      path,
				PathItem:  pathItem,
				Method:    req.Method,
				Operation: op,
			},
		},
		Status: status,
		Header: header,
		Body:   io.NopCloser(bytes.NewReader(body)),
	}

	return openapi3filter.ValidateResponse(ctx, input)
}
