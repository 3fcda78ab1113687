package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the config file name looked up in each search directory.
const FileName = "edgecycle.yaml"

// ErrNotFound is returned by Resolve when no candidate file exists.
var ErrNotFound = errors.New("config: no configuration file found")

// Candidates returns the search order:
// $XDG_CONFIG_HOME/edgecycle/edgecycle.yaml → ~/.config/edgecycle/edgecycle.yaml → ./edgecycle.yaml
func Candidates() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "edgecycle", FileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "edgecycle", FileName))
	}
	return append(candidates, FileName)
}

// Resolve returns the first existing candidate.
func Resolve() (string, error) {
	candidates := Candidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (searched: %v)", ErrNotFound, candidates)
}

// LoadDefault loads the config at path, or the first candidate when path
// is empty. With no file anywhere it returns Default() and an empty path.
func LoadDefault(path string) (*Config, string, error) {
	if path == "" {
		resolved, err := Resolve()
		if errors.Is(err, ErrNotFound) {
			return Default(), "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
