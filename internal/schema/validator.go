package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed job.schema.yaml
var jobSchemaYAML []byte

//go:embed plan.schema.yaml
var planSchemaYAML []byte

// Validator handles JSON schema validation
type Validator struct {
	jobSchema  *jsonschema.Schema
	planSchema *jsonschema.Schema
}

// NewValidator compiles the embedded job definition and plan schemas
func NewValidator() (*Validator, error) {
	v := &Validator{}

	jobSchema, err := compileSchema("litejob://schemas/job.schema.json", jobSchemaYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load job schema: %w", err)
	}
	v.jobSchema = jobSchema

	planSchema, err := compileSchema("litejob://schemas/plan.schema.json", planSchemaYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan schema: %w", err)
	}
	v.planSchema = planSchema

	return v, nil
}

// ValidateDefinition validates a raw job definition document (YAML or JSON bytes)
func (v *Validator) ValidateDefinition(data []byte) error {
	if v.jobSchema == nil {
		return fmt.Errorf("job schema not loaded")
	}
	doc, err := ToJSONValue(data)
	if err != nil {
		return err
	}
	return v.jobSchema.Validate(doc)
}

// ValidatePlan validates a raw plan document (YAML or JSON bytes)
func (v *Validator) ValidatePlan(data []byte) error {
	if v.planSchema == nil {
		return fmt.Errorf("plan schema not loaded")
	}
	doc, err := ToJSONValue(data)
	if err != nil {
		return err
	}
	return v.planSchema.Validate(doc)
}

// ToJSONValue parses YAML (a superset of JSON) into the value shapes the
// schema validator expects: map[string]interface{}, []interface{}, json.Number.
func ToJSONValue(data []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return value, nil
}

// compileSchema compiles a schema file (JSON or YAML) under the given URL
func compileSchema(url string, data []byte) (*jsonschema.Schema, error) {
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(jsonData)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}
