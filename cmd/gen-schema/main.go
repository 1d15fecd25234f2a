// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Command gen-schema writes the GraphQL schema for client code generation.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gatekeep/gatekeep/internal/api"
)

func main() {
	outPath := filepath.Join("schemas", "gatekeep.graphql")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, []byte(api.SchemaSDL()), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
