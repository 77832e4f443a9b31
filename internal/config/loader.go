package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults is the optional weftend.toml defaults file discovered in the
// working directory. It only seeds flag defaults; flags always win.
type Defaults struct {
	// Profile is the default --profile value (web, mod, generic).
	Profile string `toml:"profile"`

	// OutRoot is the out_root key. It is parsed but no command reads it;
	// --out is always used exactly as given.
	OutRoot string `toml:"out_root"`
}

// DefaultsFileName is the discovered defaults file name.
const DefaultsFileName = "weftend.toml"

// LoadDefaults reads weftend.toml from the working directory if present.
// A missing file yields zero defaults; unknown keys produce slog warnings
// (not errors) for forward compatibility. Invalid TOML is an error.
func LoadDefaults() (*Defaults, error) {
	return LoadDefaultsFrom(DefaultsFileName)
}

// LoadDefaultsFrom is the path-explicit variant of LoadDefaults, used by
// tests.
func LoadDefaultsFrom(path string) (*Defaults, error) {
	if _, err := os.Stat(path); err != nil {
		return &Defaults{}, nil
	}

	var d Defaults
	meta, err := toml.DecodeFile(path, &d)
	if err != nil {
		return nil, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	warnUndecodedKeys(meta, path)
	return &d, nil
}

// warnUndecodedKeys logs a warning for each key that did not map to a
// Defaults field, so users can add keys for newer versions without breaking
// older ones.
func warnUndecodedKeys(meta toml.MetaData, source string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}

	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}

	slog.Warn("unknown defaults keys will be ignored",
		"source", source,
		"keys", strings.Join(keys, ", "),
	)
}
