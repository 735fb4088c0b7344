package geoquery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// storedCredentials is the on-disk shape of the credentials file the
// interactive flow maintains.
type storedCredentials struct {
	AccessToken string `json:"access_token"`
}

func loadCredentials(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no credentials file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parse credentials file: %w", err)
	}
	if creds.AccessToken == "" {
		return "", fmt.Errorf("credentials file has no access_token")
	}
	return creds.AccessToken, nil
}

func saveCredentials(path, token string) error {
	if path == "" {
		return fmt.Errorf("no credentials file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	data, err := json.Marshal(storedCredentials{AccessToken: token})
	if err != nil {
		return fmt.Errorf("serialize credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}
