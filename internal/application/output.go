package application

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/signcfg/internal/signing"
)

// Output formats accepted by WriteResolution.
const (
	FormatText       = "text"
	FormatJSON       = "json"
	FormatYAML       = "yaml"
	FormatProperties = "properties"
)

// Formats lists the output formats in display order.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatProperties}
}

// WriteResolution prints res in the given format. Only the properties format
// carries passwords; it is meant to be piped into a build as key.properties.
func WriteResolution(w io.Writer, res *signing.Resolution, format string) error {
	switch format {
	case FormatText, "":
		return writeText(w, res.Summary())
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Summary())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res.Summary()); err != nil {
			return err
		}
		return enc.Close()
	case FormatProperties:
		return signing.WriteProperties(w, res.Credentials)
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

func writeText(w io.Writer, s signing.Summary) error {
	setOrMissing := func(ok bool) string {
		if ok {
			return "set"
		}
		return "missing"
	}

	storeFile := s.StoreFile
	if storeFile == "" {
		storeFile = "missing"
	}

	lines := []string{
		"environment:    " + s.Environment,
		"store file:     " + storeFile,
		"key alias:      " + setOrMissing(s.KeyAliasSet),
		"key password:   " + setOrMissing(s.KeyPasswordSet),
		"store password: " + setOrMissing(s.StorePasswordSet),
	}
	if s.PropertiesFile != "" {
		lines = append(lines, "properties:     "+s.PropertiesFile)
	}
	if s.TemporaryKeystore {
		lines = append(lines, "keystore:       temporary")
	}
	if s.Complete {
		lines = append(lines, "status:         complete")
	} else {
		lines = append(lines, "status:         incomplete ("+strings.Join(s.Missing, ", ")+")")
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}
