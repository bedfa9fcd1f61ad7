package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"a2a-router/internal/domain"
)

//go:embed card.schema.json
var cardSchemaJSON []byte

var cardSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile(cardSchemaJSON)
})

// ValidateCard checks a raw agent card document before it is decoded, so
// wrongly typed fields are reported instead of silently zeroed.
func ValidateCard(raw []byte) error {
	schema, err := cardSchema()
	if err != nil {
		return fmt.Errorf("compile card schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.NewSubSystemError("registry", "ValidateCard", domain.ErrInvalidInput, "malformed JSON: "+err.Error())
	}
	result := schema.Validate(doc)
	if !result.IsValid() {
		return domain.NewSubSystemError("registry", "ValidateCard", domain.ErrInvalidInput, result.Error())
	}
	return nil
}
