package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"roguecloud.ai/internal/protocol"
)

func main() {
	outDir := flag.String("out", "schemas", "directory to write <name>.schema.json files into")
	flag.Parse()

	n, err := writeSchemas(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schemas: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d schemas to %s\n", n, *outDir)
}

func writeSchemas(outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create schema directory: %w", err)
	}
	n := 0
	for _, name := range protocol.SchemaNames() {
		data, ok, err := protocol.SchemaJSON(name)
		if err != nil {
			return n, fmt.Errorf("marshal %s: %w", name, err)
		}
		if !ok {
			continue
		}
		outPath := filepath.Join(outDir, name+".schema.json")
		tmpPath := outPath + ".tmp"
		if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
			return n, fmt.Errorf("write temp schema: %w", err)
		}
		if err := os.Rename(tmpPath, outPath); err != nil {
			return n, fmt.Errorf("replace schema: %w", err)
		}
		n++
	}
	return n, nil
}
