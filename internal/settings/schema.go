package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed secrets_manager.schema.json
var secretsManagerSchema string

// SecretsManagerSection is the top-level key holding store configuration.
const SecretsManagerSection = "secrets_manager"

// validateSecretsManager checks the secrets_manager section of a layer
// against the embedded schema. A missing section is valid.
func validateSecretsManager(data map[string]interface{}) error {
	section, ok := data[SecretsManagerSection]
	if !ok || section == nil {
		return nil
	}

	jsonData, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("failed to marshal %s for validation: %w", SecretsManagerSection, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(secretsManagerSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}
