// Package contract holds the OpenAPI description of the probe endpoint and
// checks encoded responses against it.
package contract

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

//go:embed openapi.yaml
var document []byte

type Contract struct {
	doc *openapi3.T
}

// Load parses and validates the embedded OpenAPI document
func Load() (*Contract, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI contract: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI contract validation failed: %w", err)
	}

	return &Contract{doc: doc}, nil
}

// Document returns the raw embedded YAML
func Document() []byte {
	return document
}

// ValidateResponse checks a JSON body returned by GET /api/health with the
// given status code against the declared schema.
func (c *Contract) ValidateResponse(statusCode int, body []byte) error {
	schema, err := c.responseSchema(constants.PathHealth, http.MethodGet, statusCode)
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("response body is not valid JSON: %w", err)
	}

	if err := schema.VisitJSON(value); err != nil {
		return fmt.Errorf("response %d does not match contract: %w", statusCode, err)
	}

	return nil
}

func (c *Contract) responseSchema(path, method string, statusCode int) (*openapi3.Schema, error) {
	pathItem := c.doc.Paths.Value(path)
	if pathItem == nil {
		return nil, fmt.Errorf("path %s not found in contract", path)
	}

	operation := pathItem.GetOperation(method)
	if operation == nil {
		return nil, fmt.Errorf("operation %s %s not found in contract", method, path)
	}

	response := operation.Responses.Value(strconv.Itoa(statusCode))
	if response == nil || response.Value == nil {
		return nil, fmt.Errorf("response %d not declared for %s %s", statusCode, method, path)
	}

	mediaType := response.Value.Content.Get(constants.ContentTypeJSON)
	if mediaType == nil || mediaType.Schema == nil || mediaType.Schema.Value == nil {
		return nil, fmt.Errorf("no %s schema for response %d", constants.ContentTypeJSON, statusCode)
	}

	return mediaType.Schema.Value, nil
}
