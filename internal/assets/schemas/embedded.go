// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time to ensure the server works
// correctly regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// JobNewSchema is the embedded schema for the POST /0.1.0/job/new request
// body. Embedding it keeps request validation working in installed
// binaries without requiring the schema file to be present on disk.
//
//go:embed job_new.schema.json
var JobNewSchema []byte
