//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/integralist/go-findroot/find"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/mholt/archiver"
	"github.com/pkg/errors"
	"github.com/wrouesnel/sibling-launcher/version"
)

const binDir = "bin"
const releaseDir = "release"

//nolint:gochecknoglobals
var Default = Build

func repoRoot() (string, error) {
	root, err := find.Repo()
	if err != nil {
		return "", errors.Wrap(err, "finding repository root")
	}
	return root.Path, nil
}

func versionString() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return version.Version
}

// Build compiles the launcher into bin/.
func Build() error {
	root, err := repoRoot()
	if err != nil {
		return err
	}

	output := filepath.Join(root, binDir, version.Name)
	ldflags := fmt.Sprintf("-X github.com/wrouesnel/sibling-launcher/version.Version=%s", versionString())
	return sh.RunWith(map[string]string{"CGO_ENABLED": "0"},
		"go", "build", "-trimpath", "-ldflags", ldflags, "-o", output, "./cmd/"+version.Name)
}

// Test runs the unit and script tests.
func Test() error {
	return sh.RunV("go", "test", "-v", "./...")
}

// Release packages the built binary as a tarball named for the platform.
func Release() error {
	mg.Deps(Build)

	root, err := repoRoot()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(root, releaseDir), os.FileMode(0o755)); err != nil {
		return errors.Wrap(err, "creating release directory")
	}

	archiveName := fmt.Sprintf("%s_%s_%s_%s.tar.gz", version.Name, versionString(), runtime.GOOS, runtime.GOARCH)
	archivePath := filepath.Join(root, releaseDir, archiveName)
	_ = os.Remove(archivePath)

	sources := []string{filepath.Join(root, binDir, version.Name)}
	return errors.Wrapf(archiver.Archive(sources, archivePath), "archiving %s", archivePath)
}

// Clean removes build outputs.
func Clean() error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	for _, dir := range []string{binDir, releaseDir} {
		if err := sh.Rm(filepath.Join(root, dir)); err != nil {
			return err
		}
	}
	return nil
}
