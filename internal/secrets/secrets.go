// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of
// plain-text files, an optional .env file and the process environment.
//
// In the secrets directory each file is one secret: the filename is the key
// name and the trimmed file contents are the value. In .env files and the
// environment the same secrets use upper-case variable names (see Keys).
// The environment wins over .env, which wins over the directory.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Key names used throughout the CLI.
const (
	AnthropicAPIKey = "anthropic-api-key"
	TranslateAPIKey = "google-translate-api-key"
	NCBIAPIKey      = "ncbi-api-key"
	NCBIEmail       = "ncbi-email"
)

// Keys maps each secret to its environment variable name.
var Keys = map[string]string{
	AnthropicAPIKey: "ANTHROPIC_API_KEY",
	TranslateAPIKey: "GOOGLE_TRANSLATE_API_KEY",
	NCBIAPIKey:      "NCBI_API_KEY",
	NCBIEmail:       "NCBI_EMAIL",
}

// Store holds loaded secrets by key name.
type Store map[string]string

// Get returns the secret for key, or "".
func (s Store) Get(key string) string { return s[key] }

// Or returns override when it is set, otherwise the stored secret.
func (s Store) Or(key, override string) string {
	if override != "" {
		return override
	}
	return s[key]
}

// Names returns the loaded key names in sorted order. Values are never
// exposed this way so the result is safe to log.
func (s Store) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Load merges the secrets directory, the dotenv file and the environment.
// A missing directory or dotenv file is not an error. Unreadable secret files
// are logged and skipped.
func Load(dir, dotenvPath string, logger zerolog.Logger) (Store, error) {
	s, err := loadDir(dir, logger)
	if err != nil {
		return nil, err
	}

	if dotenvPath != "" {
		env, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			for key, name := range Keys {
				if v := strings.TrimSpace(env[name]); v != "" {
					s[key] = v
				}
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading %s: %w", dotenvPath, err)
		}
	}

	for key, name := range Keys {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			s[key] = v
		}
	}
	return s, nil
}

func loadDir(dir string, logger zerolog.Logger) (Store, error) {
	s := Store{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}
