package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"roguecloud.ai/internal/protocol"
)

func TestWriteSchemas_Compile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schemas")
	n, err := writeSchemas(dir)
	if err != nil {
		t.Fatalf("writeSchemas: %v", err)
	}
	if n != len(protocol.SchemaNames()) {
		t.Fatalf("wrote %d of %d", n, len(protocol.SchemaNames()))
	}
	for _, name := range protocol.SchemaNames() {
		path := filepath.Join(dir, name+".schema.json")
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if _, err := jsonschema.Compile(path); err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
	}
	tmps, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(tmps) != 0 {
		t.Fatalf("leftover temp files: %v", tmps)
	}
}
