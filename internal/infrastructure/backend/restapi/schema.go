package restapi

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

var (
	schemaOnce sync.Once
	schemaDoc  *openapi3.T
	schemaErr  error
)

func loadSchema() (*openapi3.T, error) {
	schemaOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(openapiSpec)
		if err != nil {
			schemaErr = fmt.Errorf("load backend schema: %w", err)
			return
		}
		schemaDoc = doc
	})
	return schemaDoc, schemaErr
}

// validateComponent checks a decoded JSON value against a named component
// schema from the embedded backend description.
func validateComponent(name string, value any) error {
	doc, err := loadSchema()
	if err != nil {
		return err
	}
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %q is not defined", name)
	}
	return ref.Value.VisitJSON(value, openapi3.MultiErrors())
}
