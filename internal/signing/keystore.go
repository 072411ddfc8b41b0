package signing

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/multierr"
)

// DefaultKeystorePattern names the temporary keystore; "*" is replaced by a random suffix.
const DefaultKeystorePattern = "minex-*.jks"

// Keystore is a keystore file materialized from secret material. It is removed
// on Close unless Keep was called.
type Keystore struct {
	path string

	mu     sync.Mutex
	keep   bool
	closed bool
}

// Path returns the location of the keystore file.
func (k *Keystore) Path() string {
	return k.path
}

// Keep leaves the file on disk after Close.
func (k *Keystore) Keep() {
	k.mu.Lock()
	k.keep = true
	k.mu.Unlock()
}

// Close removes the keystore file. Calling it more than once is a no-op.
func (k *Keystore) Close() error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	if k.keep {
		return nil
	}
	if err := os.Remove(k.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove keystore: %w", err)
	}
	return nil
}

type keystoreFile interface {
	io.Writer
	Name() string
	Sync() error
	Close() error
}

// createKeystoreFile is replaced in tests to fail after the file exists.
var createKeystoreFile = func(dir, pattern string) (keystoreFile, error) {
	return os.CreateTemp(dir, pattern)
}

func materializeKeystore(dir, pattern string, data []byte) (_ *Keystore, err error) {
	if pattern == "" {
		pattern = DefaultKeystorePattern
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create keystore dir: %w", err)
		}
	}

	f, err := createKeystoreFile(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create keystore: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(f.Name()))
		}
	}()

	if _, err := f.Write(data); err != nil {
		return nil, multierr.Append(fmt.Errorf("write keystore: %w", err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return nil, multierr.Append(fmt.Errorf("sync keystore: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close keystore: %w", err)
	}

	return &Keystore{path: f.Name()}, nil
}
