package signing

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/eugenenazirov/signcfg/internal/buildenv"
)

// Resolver turns a build environment and its credential sources into signing credentials.
type Resolver struct {
	logger          *zap.Logger
	keystoreDir     string
	keystorePattern string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeystoreDir sets the directory the CI keystore is written to. Empty means the OS temp dir.
func WithKeystoreDir(dir string) Option {
	return func(r *Resolver) {
		r.keystoreDir = dir
	}
}

// WithKeystorePattern sets the os.CreateTemp pattern of the CI keystore file.
func WithKeystorePattern(pattern string) Option {
	return func(r *Resolver) {
		if pattern != "" {
			r.keystorePattern = pattern
		}
	}
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		logger:          logger,
		keystorePattern: DefaultKeystorePattern,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves with default options and no logging.
func Resolve(env buildenv.Environment, src Sources) (*Resolution, error) {
	return NewResolver(nil).Resolve(env, src)
}

// Resolve picks the credential source for env. In CI every secret is required
// and the keystore is written to a temporary file owned by the returned
// Resolution; callers must Close it. Locally, a missing properties file leaves
// every field unset without error.
func (r *Resolver) Resolve(env buildenv.Environment, src Sources) (*Resolution, error) {
	if env.IsCI() {
		return r.resolveCI(src.CI)
	}
	return r.resolveLocal(src.Local)
}

func (r *Resolver) resolveCI(src CISources) (*Resolution, error) {
	r.logger.Info("running in CI environment, setting up keystore from secrets")

	for _, s := range []Secret{src.KeystoreBase64, src.KeyAlias, src.KeyPassword, src.StorePassword} {
		if !s.Present() {
			return nil, missing(s.Name)
		}
	}

	data, err := decodeKeystore(src.KeystoreBase64.Value)
	if err != nil {
		return nil, err
	}

	ks, err := materializeKeystore(r.keystoreDir, r.keystorePattern, data)
	if err != nil {
		return nil, err
	}

	r.logger.Info("keystore created and signing configured from secrets",
		zap.String("store_file", ks.Path()),
		zap.Int("keystore_bytes", len(data)),
	)

	return &Resolution{
		Environment: buildenv.CI,
		Credentials: Credentials{
			StoreFile:     ks.Path(),
			KeyAlias:      src.KeyAlias.Value,
			KeyPassword:   src.KeyPassword.Value,
			StorePassword: src.StorePassword.Value,
		},
		Keystore: ks,
	}, nil
}

func (r *Resolver) resolveLocal(src LocalSources) (*Resolution, error) {
	path := src.PropertiesFile
	if path == "" {
		path = DefaultPropertiesFile
	}
	r.logger.Info("running locally, setting up keystore from properties file", zap.String("properties_file", path))

	props, ok, err := LoadProperties(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Warn("keystore properties file not found, signing fields left unset", zap.String("properties_file", path))
		return &Resolution{Environment: buildenv.Local}, nil
	}

	res := &Resolution{
		Environment: buildenv.Local,
		Credentials: props.Credentials(),
		Properties:  props,
	}
	if fields := res.Credentials.Missing(); len(fields) > 0 {
		r.logger.Warn("keystore properties incomplete", zap.Strings("missing", fields))
	}
	return res, nil
}

// decodeKeystore accepts standard base64, with or without line wrapping.
func decodeKeystore(blob string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, blob)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: decoded keystore is empty", ErrInvalidKeystore)
	}
	return data, nil
}
