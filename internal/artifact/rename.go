package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Rename records one file moved by RenameOutputs.
type Rename struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// RenameOutputs gives every package in dir its published name. Files that are
// already named, or that carry no architecture token, are left alone. An
// existing file at the destination is never overwritten.
func RenameOutputs(dir, prefix string, logger *zap.Logger) ([]Rename, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), PackageExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var renames []Rename
	for _, name := range names {
		if strings.HasPrefix(name, prefix+"-") {
			continue
		}
		target, err := OutputName(name, prefix)
		if errors.Is(err, ErrNoArchitecture) {
			logger.Debug("skipping output without architecture", zap.String("file", name))
			continue
		}
		if err != nil {
			return renames, err
		}

		from := filepath.Join(dir, name)
		to := filepath.Join(dir, target)
		if _, err := os.Lstat(to); err == nil {
			return renames, fmt.Errorf("rename %s: %w", name, fs.ErrExist)
		}
		if err := os.Rename(from, to); err != nil {
			return renames, fmt.Errorf("rename %s: %w", name, err)
		}

		logger.Info("renamed output", zap.String("from", name), zap.String("to", target))
		renames = append(renames, Rename{From: from, To: to})
	}
	return renames, nil
}
