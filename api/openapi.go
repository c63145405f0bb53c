package api

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// LoadSwagger parses and validates an embedded OpenAPI document. Servers are
// dropped so requests are matched on path alone, whatever host serves them.
func LoadSwagger(doc []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()

	swagger, err := loader.LoadFromData(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}

	err = swagger.Validate(context.Background())
	if err != nil {
		return nil, fmt.Errorf("openapi document is invalid: %w", err)
	}

	swagger.Servers = nil

	return swagger, nil
}
