package verdict

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FileSuffix is appended to an idea slug to name its verdict file.
const FileSuffix = ".verdict.json"

const schemaURL = "https://crucible.local/schemas/verdict.schema.json"

//go:embed schema/verdict.schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func verdictSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("verdict schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Encode renders v as indented JSON without HTML escaping.
func Encode(v Verdict) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode validates data against the verdict schema and decodes it.
func Decode(data []byte) (Verdict, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	sch, err := verdictSchema()
	if err != nil {
		return Verdict{}, err
	}
	if err := sch.Validate(doc); err != nil {
		return Verdict{}, fmt.Errorf("verdict schema: %w", err)
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return New(v.Decision, v.ConfLevel, v.Reasons, v.Redlines, v.NextSteps), nil
}

// WriteFile persists v at path, creating parent directories.
func WriteFile(path string, v Verdict) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create verdict dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads and schema-validates a verdict file.
func ReadFile(path string) (Verdict, error) {
	// #nosec G304 -- path is derived from the reports directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return Verdict{}, err
	}
	v, err := Decode(data)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// PathFor returns the verdict file path for an idea slug under dir.
func PathFor(dir, slug string) string {
	return filepath.Join(dir, slug+FileSuffix)
}
