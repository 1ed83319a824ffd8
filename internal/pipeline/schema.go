package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed report.schema.json
var reportSchemaJSON []byte

var (
	reportSchemaOnce sync.Once
	reportSchema     *jsonschema.Schema
	reportSchemaErr  error
)

func compiledReportSchema() (*jsonschema.Schema, error) {
	reportSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource("report.schema.json", bytes.NewReader(reportSchemaJSON)); err != nil {
			reportSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		reportSchema, reportSchemaErr = compiler.Compile("report.schema.json")
	})
	return reportSchema, reportSchemaErr
}

// ValidateReportJSON checks a serialized report against the published
// report layout.
func ValidateReportJSON(data []byte) error {
	schema, err := compiledReportSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal report: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}
	return nil
}
