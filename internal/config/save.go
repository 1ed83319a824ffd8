package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveAtomic writes cfg as YAML via temp file + rename, keeping the previous
// file as path.bak. Secrets are never written.
func SaveAtomic(path string, cfg Config) error {
	if _, v := NormalizeAndValidate(cfg); !v.OK() {
		// a user config may be incomplete until env vars are set; only
		// structural problems block saving
		if err := structural(v); err != nil {
			return err
		}
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func structural(v Validation) error {
	var keep Validation
	for _, e := range v.Errors {
		if isMissingCredential(e) {
			continue
		}
		keep.Errors = append(keep.Errors, e)
	}
	return keep.Err()
}

func isMissingCredential(msg string) bool {
	for _, p := range []string{"discourse.url", "discourse.username", "discourse.category_id", "telegram.chat_id"} {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}
