package signing

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/magiconair/properties"
)

// DefaultPropertiesFile is the repository-relative path of the local signing properties.
const DefaultPropertiesFile = "key.properties"

// Properties is the content of a key.properties file.
type Properties struct {
	Path          string
	KeyAlias      string
	KeyPassword   string
	StoreFile     string
	StorePassword string
}

// Credentials copies the four fields verbatim.
func (p *Properties) Credentials() Credentials {
	if p == nil {
		return Credentials{}
	}
	return Credentials{
		StoreFile:     p.StoreFile,
		KeyAlias:      p.KeyAlias,
		KeyPassword:   p.KeyPassword,
		StorePassword: p.StorePassword,
	}
}

// LoadProperties reads path. The boolean is false when the file does not exist.
func LoadProperties(path string) (*Properties, bool, error) {
	if path == "" {
		path = DefaultPropertiesFile
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: stat %s: %v", ErrInvalidProperties, path, err)
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("%w: %s is a directory", ErrInvalidProperties, path)
	}

	props, err := propertiesLoader().LoadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: parse %s: %v", ErrInvalidProperties, path, err)
	}

	get := func(key string) string {
		v, _ := props.Get(key)
		return v
	}
	return &Properties{
		Path:          path,
		KeyAlias:      get(FieldKeyAlias),
		KeyPassword:   get(FieldKeyPassword),
		StoreFile:     get(FieldStoreFile),
		StorePassword: get(FieldStorePassword),
	}, true, nil
}

// propertiesLoader reads files the way java.util.Properties.load does for a
// byte stream: ISO-8859-1 with \u escapes, and no ${key} expansion.
func propertiesLoader() *properties.Loader {
	return &properties.Loader{
		Encoding:         properties.ISO_8859_1,
		DisableExpansion: true,
	}
}

// WriteProperties writes creds in the layout LoadProperties reads.
func WriteProperties(w io.Writer, creds Credentials) error {
	props := properties.NewProperties()
	props.DisableExpansion = true

	for _, kv := range []struct{ key, value string }{
		{FieldStorePassword, creds.StorePassword},
		{FieldKeyPassword, creds.KeyPassword},
		{FieldKeyAlias, creds.KeyAlias},
		{FieldStoreFile, creds.StoreFile},
	} {
		if _, _, err := props.Set(kv.key, kv.value); err != nil {
			return fmt.Errorf("encode %s: %w", kv.key, err)
		}
	}

	_, err := props.Write(w, properties.ISO_8859_1)
	return err
}
