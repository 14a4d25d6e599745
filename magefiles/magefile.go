//go:build mage

// Package main provides build targets for the bibliothecula project using Mage.
//
// Usage:
//
//	mage build      Compile bibl binary to bin/
//	mage install    Install bibl to GOPATH/bin
//	mage test       Run all tests
//	mage testUnit   Run tests once without the race detector
//	mage lint       Run golangci-lint
//	mage schema     Export the statement catalog to docs/
//	mage clean      Remove build artifacts
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
)

const (
	binGo      = "go"
	binaryName = "bibl"
	binaryDir  = "bin"
	cmdDir     = "./cmd/bibl"
	docsDir    = "docs"
	versionVar = "github.com/mesh-intelligence/bibliothecula/internal/cli.Version"
)

// version derives the build version from git, falling back to the default
// compiled into the binary.
func version() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || out == "" {
		return ""
	}
	return strings.TrimPrefix(out, "v")
}

// Build compiles the bibl binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := version(); v != "" {
		args = append(args, "-ldflags", fmt.Sprintf("-X %s=%s", versionVar, v))
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Test runs all tests with the race detector.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// TestUnit runs all tests once, without the race detector and the test
// cache.
func TestUnit() error {
	return sh.RunV(binGo, "test", "-count=1", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Schema exports the main and extended schema as SQL and Markdown to docs/.
func Schema() error {
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return err
	}
	core, extended, err := catalog.Exports(catalog.Default())
	if err != nil {
		return err
	}
	exports := []struct {
		name   string
		export catalog.Export
		format catalog.Format
	}{
		{"schema.sql", core, catalog.FormatSQL},
		{"schema.md", core, catalog.FormatMarkdown},
		{"schema-extended.sql", extended, catalog.FormatSQL},
		{"schema-extended.md", extended, catalog.FormatMarkdown},
	}
	for _, e := range exports {
		path := filepath.Join(docsDir, e.name)
		if err := catalog.ExportFile(path, e.export, e.format, true); err != nil {
			return err
		}
		fmt.Println("wrote", path)
	}
	return nil
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
