// Package artifact derives the published file names of per-architecture
// release packages.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultPrefix is the product name used in published file names.
	DefaultPrefix = "minex"
	// PackageExt is the extension of Android application packages.
	PackageExt = ".apk"
)

// ABI extracts the architecture token from a build tool's default output
// name: the hyphen-delimited segments between the module name and the build
// type, so "app-arm64-v8a-release.apk" yields "arm64-v8a".
func ABI(defaultName string) (string, error) {
	base := filepath.Base(defaultName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	segments := strings.Split(stem, "-")
	if len(segments) < 3 {
		return "", fmt.Errorf("%w: %q", ErrNoArchitecture, base)
	}
	abi := strings.Join(segments[1:len(segments)-1], "-")
	if abi == "" || strings.Trim(abi, "-") != abi {
		return "", fmt.Errorf("%w: %q", ErrNoArchitecture, base)
	}
	return abi, nil
}

// OutputName returns "<prefix>-<abi>.apk" for defaultName.
func OutputName(defaultName, prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	abi, err := ABI(defaultName)
	if err != nil {
		return "", err
	}
	return prefix + "-" + abi + PackageExt, nil
}

func validatePrefix(prefix string) error {
	if prefix == "" || strings.ContainsAny(prefix, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}
