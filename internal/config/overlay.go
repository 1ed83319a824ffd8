package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// OverlayEnv applies environment overrides. Secrets only ever come from here
// or the keychain, never from the YAML file.
func OverlayEnv(cfg *Config) error {
	return overlay(cfg, os.LookupEnv)
}

func overlay(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("DISCOURSE_URL"); ok {
		cfg.Discourse.URL = v
	}
	if v, ok := get("DISCOURSE_API_KEY"); ok {
		cfg.Discourse.APIKey = v
	}
	if v, ok := get("DISCOURSE_USERNAME"); ok {
		cfg.Discourse.Username = v
	}
	if v, ok := get("DISCOURSE_CATEGORY_ID"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DISCOURSE_CATEGORY_ID: %w", err)
		}
		cfg.Discourse.CategoryID = n
	}
	if v, ok := get("JOBSYNC_LISTINGS_URL"); ok {
		cfg.Source.URL = v
	}
	if v, ok := get("TELEGRAM_BOT_TOKEN"); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get("TELEGRAM_CHAT_ID"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = n
	}
	return nil
}
