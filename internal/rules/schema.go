package rules

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://coaching-health-scorer.local/rules/"

const (
	schemaNAQ           = "naq.schema.json"
	schemaMicronutrient = "micronutrients.schema.json"
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	doc, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("rule schema %s not embedded: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("rule schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("rule schema compile failed: %w", err)
	}
	return compiled, nil
}

// validateDocument checks a YAML rule document against the named JSON schema. The YAML is
// round-tripped through JSON so the validator sees the same value shapes it would for a JSON file.
func validateDocument(schemaName string, data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse rule document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("rule document is empty")
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rule document is not representable as JSON: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return fmt.Errorf("rule document is not representable as JSON: %w", err)
	}

	schema, err := compileSchema(schemaName)
	if err != nil {
		return err
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
