package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tonykipkemboi/crewai-jobs/internal/secrets"
)

func cmdSecret(args []string) error {
	if len(args) == 0 {
		return errors.New("secret: want set or delete")
	}
	action, rest := args[0], args[1:]

	fs := flag.NewFlagSet("secret "+action, flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(rest); err != nil {
		return err
	}

	cfg, _, err := loadConfig(common)
	if err != nil {
		return err
	}
	account := secrets.APIKeyAccount(cfg)

	switch action {
	case "set":
		fmt.Fprintf(os.Stderr, "Discourse API key for %s: ", account)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		if err := secrets.SetAPIKey(account, strings.TrimSpace(line)); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "stored in keychain")
		return nil

	case "delete":
		if err := secrets.DeleteAPIKey(account); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "removed from keychain")
		return nil
	}
	return fmt.Errorf("secret: unknown action %q", action)
}
