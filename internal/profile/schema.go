package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RequestSchema is the JSON Schema for a run request body. VU counts and
// durations arrive either as JSON numbers or as form-style strings.
const RequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "selectedScriptId":    {"type": ["string", "null"]},
    "selectedEnvironment": {"type": ["string", "null"]},
    "selectedApplication": {"type": ["string", "null"]},
    "script":              {"type": ["string", "null"]},
    "rampUpVUs":           {"$ref": "#/definitions/vus"},
    "steadyVUs":           {"$ref": "#/definitions/vus"},
    "rampDownVUs":         {"$ref": "#/definitions/vus"},
    "rampUpDuration":      {"$ref": "#/definitions/duration"},
    "steadyDuration":      {"$ref": "#/definitions/duration"},
    "rampDownDuration":    {"$ref": "#/definitions/duration"}
  },
  "definitions": {
    "vus": {
      "oneOf": [
        {"type": "integer", "minimum": 0},
        {"type": "string", "pattern": "^\\s*[0-9]*\\s*$"},
        {"type": "null"}
      ]
    },
    "duration": {
      "oneOf": [
        {"type": "integer", "minimum": 0},
        {"type": "string", "pattern": "^(|[0-9]+|([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$"},
        {"type": "null"}
      ]
    }
  }
}`

var (
	requestSchemaOnce sync.Once
	requestSchema     *jsonschema.Schema
	requestSchemaErr  error
)

func compiledRequestSchema() (*jsonschema.Schema, error) {
	requestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("run-request.json", strings.NewReader(RequestSchema)); err != nil {
			requestSchemaErr = fmt.Errorf("invalid schema: %w", err)
			return
		}
		requestSchema, requestSchemaErr = compiler.Compile("run-request.json")
	})
	return requestSchema, requestSchemaErr
}

// ValidateRequestJSON validates a run request body against RequestSchema.
//
// Returns nil if valid, or a *ValidationErrors naming each failing field.
func ValidateRequestJSON(data []byte) error {
	schema, err := compiledRequestSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		errs := &ValidationErrors{}
		errs.Add("", fmt.Sprintf("invalid JSON: %v", err))
		return errs
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	errs := &ValidationErrors{}
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		collectSchemaErrors(verr, errs)
	}
	if !errs.HasErrors() {
		errs.Add("", err.Error())
	}
	return errs
}

// collectSchemaErrors flattens the leaf causes of a schema validation error.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		errs.Add(field, err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}
