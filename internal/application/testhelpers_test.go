package application

import (
	"encoding/base64"
	"testing"

	"github.com/eugenenazirov/signcfg/internal/buildenv"
	"github.com/eugenenazirov/signcfg/internal/config"
)

var testKeystore = []byte("test-keystore-bytes")

// ciTestConfig loads a CI configuration with every secret set except those in drop.
func ciTestConfig(t *testing.T, drop ...string) config.Config {
	t.Helper()

	env := map[string]string{
		"CI":                  "true",
		"KEYSTORE_BASE64":     base64.StdEncoding.EncodeToString(testKeystore),
		"KEY_ALIAS":           "upload",
		"KEY_PASSWORD":        "key-pass",
		"STORE_PASSWORD":      "store-pass",
		config.EnvKeystoreDir: t.TempDir(),
	}
	for _, k := range drop {
		delete(env, k)
	}

	cfg, err := config.LoadWithLookup(nil, buildenv.MapLookup(env))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func localTestConfig(t *testing.T, propertiesFile string) config.Config {
	t.Helper()

	cfg, err := config.LoadWithLookup(nil, buildenv.MapLookup(map[string]string{
		config.EnvPropertiesFile: propertiesFile,
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}
