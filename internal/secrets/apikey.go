package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/tonykipkemboi/crewai-jobs/internal/config"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "crewai-jobs"
)

var ErrNotFound = errors.New("discourse API key not found (set DISCOURSE_API_KEY or run `jobsync secret set`)")

func GetAPIKey(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) == "" {
		return "", ErrNotFound
	}
	key, err := keyring.Get(KeyringService, keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(key) == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keychain: %w", err)
	}
	return key, nil
}

func SetAPIKey(keyringAccount string, key string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, strings.TrimSpace(key))
}

func DeleteAPIKey(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// APIKeyAccount names the keychain entry for the configured forum user.
func APIKeyAccount(cfg config.Config) string {
	host := cfg.Discourse.URL
	if u, err := url.Parse(cfg.Discourse.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("crewai-jobs:discourse:%s@%s", cfg.Discourse.Username, host)
}

// ResolveAPIKey fills cfg.Discourse.APIKey from the keychain when the
// environment did not provide one.
func ResolveAPIKey(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Discourse.APIKey) != "" {
		return nil
	}
	key, err := GetAPIKey(APIKeyAccount(*cfg))
	if err != nil {
		return err
	}
	cfg.Discourse.APIKey = key
	return nil
}
