//go:build mage

// Package main provides build targets for sitecms using Mage.
//
// Usage:
//
//	mage build             Compile the sitecms binary to bin/
//	mage test:all          Run all tests
//	mage test:unit         Run tests outside tests/
//	mage test:integration  Run the end-to-end suite
//	mage lint              Run go vet and golangci-lint
//	mage seed              Populate the configured database with sample content
//	mage clean             Remove build artifacts
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "sitecms"
	binaryDir  = "bin"
	cmdDir     = "./cmd/server"
)

// Default target when mage is run without arguments.
var Default = Build

// Build compiles the sitecms binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := fmt.Sprintf("-X main.version=%s", strings.TrimSpace(version))
	return sh.RunV(binGo, "build", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}

// Test groups test targets.
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Unit runs tests outside the tests/ directory.
func (Test) Unit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	args := []string{"test"}
	for _, pkg := range strings.Split(pkgs, "\n") {
		if pkg != "" && !strings.Contains(pkg, "/tests/") {
			args = append(args, pkg)
		}
	}
	return sh.RunV(binGo, args...)
}

// Integration runs the end-to-end suite.
func (Test) Integration() error {
	return sh.RunV(binGo, "test", "-count=1", "./tests/...")
}

// Lint runs go vet, then golangci-lint when it is installed.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	if _, err := sh.Output("golangci-lint", "version"); err != nil {
		fmt.Println("golangci-lint not found, skipping")
		return nil
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Seed populates the configured database with sample content.
func Seed() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "seed")
}
