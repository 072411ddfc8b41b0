package signing

import (
	"fmt"
	"strings"

	"github.com/eugenenazirov/signcfg/internal/buildenv"
)

// Field names as they appear in key.properties.
const (
	FieldKeyAlias      = "keyAlias"
	FieldKeyPassword   = "keyPassword"
	FieldStoreFile     = "storeFile"
	FieldStorePassword = "storePassword"
)

// Credentials are the four values the release signing step consumes.
type Credentials struct {
	StoreFile     string
	KeyAlias      string
	KeyPassword   string
	StorePassword string
}

// Missing lists the empty fields in key.properties order.
func (c Credentials) Missing() []string {
	var out []string
	if c.KeyAlias == "" {
		out = append(out, FieldKeyAlias)
	}
	if c.KeyPassword == "" {
		out = append(out, FieldKeyPassword)
	}
	if c.StoreFile == "" {
		out = append(out, FieldStoreFile)
	}
	if c.StorePassword == "" {
		out = append(out, FieldStorePassword)
	}
	return out
}

// Complete reports whether every field is set.
func (c Credentials) Complete() bool {
	return len(c.Missing()) == 0
}

// Validate returns ErrIncompleteCredentials naming the empty fields.
func (c Credentials) Validate() error {
	if fields := c.Missing(); len(fields) > 0 {
		return fmt.Errorf("%w: %s not set", ErrIncompleteCredentials, strings.Join(fields, ", "))
	}
	return nil
}

// Secret is an optional value read from the build environment.
type Secret struct {
	Name  string
	Value string
	Set   bool
}

// Present reports whether the secret was provided with a non-empty value.
func (s Secret) Present() bool {
	return s.Set && s.Value != ""
}

// SecretNames are the environment variables holding the CI secrets.
type SecretNames struct {
	KeystoreBase64 string `yaml:"keystore_base64"`
	KeyAlias       string `yaml:"key_alias"`
	KeyPassword    string `yaml:"key_password"`
	StorePassword  string `yaml:"store_password"`
}

// DefaultSecretNames returns the variable names used by the CI workflow.
func DefaultSecretNames() SecretNames {
	return SecretNames{
		KeystoreBase64: "KEYSTORE_BASE64",
		KeyAlias:       "KEY_ALIAS",
		KeyPassword:    "KEY_PASSWORD",
		StorePassword:  "STORE_PASSWORD",
	}
}

// CISources hold the secrets consumed in the CI branch.
type CISources struct {
	KeystoreBase64 Secret
	KeyAlias       Secret
	KeyPassword    Secret
	StorePassword  Secret
}

// CISourcesFromLookup snapshots the named secrets through lookup.
func CISourcesFromLookup(lookup buildenv.LookupFunc, names SecretNames) CISources {
	read := func(name string) Secret {
		s := Secret{Name: name}
		if lookup != nil {
			s.Value, s.Set = lookup(name)
		}
		return s
	}
	return CISources{
		KeystoreBase64: read(names.KeystoreBase64),
		KeyAlias:       read(names.KeyAlias),
		KeyPassword:    read(names.KeyPassword),
		StorePassword:  read(names.StorePassword),
	}
}

// LocalSources locate the properties file consumed in the Local branch.
type LocalSources struct {
	PropertiesFile string
}

// Sources bundle the credential sources of both branches.
type Sources struct {
	CI    CISources
	Local LocalSources
}

// Resolution is the outcome of resolving signing configuration for one build.
type Resolution struct {
	Environment buildenv.Environment
	Credentials Credentials
	// Properties is set only when a local properties file was read.
	Properties *Properties
	// Keystore is set only in CI and owns the materialized keystore file.
	Keystore *Keystore
}

// Close releases the materialized keystore, if any.
func (r *Resolution) Close() error {
	if r == nil || r.Keystore == nil {
		return nil
	}
	return r.Keystore.Close()
}

// Summary is a redacted view of a Resolution; it never carries passwords.
type Summary struct {
	Environment       string   `json:"environment" yaml:"environment"`
	StoreFile         string   `json:"storeFile,omitempty" yaml:"store_file,omitempty"`
	KeyAliasSet       bool     `json:"keyAliasSet" yaml:"key_alias_set"`
	KeyPasswordSet    bool     `json:"keyPasswordSet" yaml:"key_password_set"`
	StorePasswordSet  bool     `json:"storePasswordSet" yaml:"store_password_set"`
	TemporaryKeystore bool     `json:"temporaryKeystore" yaml:"temporary_keystore"`
	PropertiesFile    string   `json:"propertiesFile,omitempty" yaml:"properties_file,omitempty"`
	Complete          bool     `json:"complete" yaml:"complete"`
	Missing           []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Summary builds the redacted view of r.
func (r *Resolution) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	s := Summary{
		Environment:       r.Environment.String(),
		StoreFile:         r.Credentials.StoreFile,
		KeyAliasSet:       r.Credentials.KeyAlias != "",
		KeyPasswordSet:    r.Credentials.KeyPassword != "",
		StorePasswordSet:  r.Credentials.StorePassword != "",
		TemporaryKeystore: r.Keystore != nil,
		Complete:          r.Credentials.Complete(),
		Missing:           r.Credentials.Missing(),
	}
	if r.Properties != nil {
		s.PropertiesFile = r.Properties.Path
	}
	return s
}
