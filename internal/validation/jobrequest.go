// Package validation checks HTTP request bodies against embedded JSON
// Schemas before they reach pkg/jobmanager, using a compile-once,
// validate-many pattern built directly on santhosh-tekuri/jsonschema/v5.
package validation

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/3leaps/jobqueue/internal/assets/schemas"
)

const jobNewSchemaID = "jobqueue/v1/job-new"

var (
	jobNewOnce      sync.Once
	jobNewSchema    *jsonschema.Schema
	jobNewSchemaErr error
)

func getJobNewSchema() (*jsonschema.Schema, error) {
	jobNewOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(jobNewSchemaID, bytes.NewReader(schemasassets.JobNewSchema)); err != nil {
			jobNewSchemaErr = fmt.Errorf("load job/new schema: %w", err)
			return
		}
		jobNewSchema, jobNewSchemaErr = compiler.Compile(jobNewSchemaID)
		if jobNewSchemaErr != nil {
			jobNewSchemaErr = fmt.Errorf("compile job/new schema: %w", jobNewSchemaErr)
		}
	})
	return jobNewSchema, jobNewSchemaErr
}

// ValidateJobNew checks a decoded POST /0.1.0/job/new body against the
// embedded schema, returning a human-readable error describing the first
// violation (e.g. a missing or empty "version" field).
func ValidateJobNew(body map[string]any) error {
	schema, err := getJobNewSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(body); err != nil {
		return fmt.Errorf("invalid job/new request: %w", err)
	}
	return nil
}
