package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Credentials are MQTT broker credentials kept outside the main config.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadCredentials reads a credentials file. The file is JSON and may contain
// comments and trailing commas:
//
//	{
//	  // TTN application id with tenant
//	  "username": "end-device-test-1@ttn",
//	  "password": "NNSXS.XXXX",
//	}
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(jsonc.ToJSON(data), &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("credentials file %s: username is required", path)
	}
	return creds, nil
}
