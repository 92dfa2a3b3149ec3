package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/deno-lib/oned/"

// TestDomainHasNoExternalDependencies verifies that the domain layer only
// imports the standard library and other domain packages.
func TestDomainHasNoExternalDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join("..", "domain", pkg, "*.go"))
		require.NoError(t, err, "failed to glob %s files", pkg)

		for _, file := range files {
			// Test files may import testify and test helpers.
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			checkFileImports(t, fset, file, pkg)
		}
	}
}

func checkFileImports(t *testing.T, fset *token.FileSet, filename, pkg string) {
	t.Helper()

	f, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	require.NoError(t, err, "failed to parse %s", filename)

	for _, imp := range f.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		if strings.HasPrefix(importPath, modulePath) {
			assert.True(t,
				strings.HasPrefix(importPath, modulePath+"domain/"),
				"domain/%s package (%s) imports non-domain package: %s",
				pkg, filepath.Base(filename), importPath)
			continue
		}

		// Standard library paths have no dot in their first element.
		first, _, _ := strings.Cut(importPath, "/")
		assert.NotContains(t, first, ".",
			"domain/%s package (%s) must not import third-party package %s",
			pkg, filepath.Base(filename), importPath)
	}
}

// TestDomainEntitiesPortsErrorsExist verifies that required domain packages exist
func TestDomainEntitiesPortsErrorsExist(t *testing.T) {
	for _, dir := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join("..", "domain", dir, "*.go"))

		require.NoError(t, err, "failed to check %s directory", dir)
		assert.NotEmpty(t, files, "domain/%s should contain Go files", dir)
	}
}
