// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the filename is the key and the trimmed contents
// are the value. Credentials stay out of mycolist.yaml this way.
package secrets

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/pkg/types"
)

// Known keys.
const (
	// DatabaseDSN is the Postgres connection string, password included.
	DatabaseDSN = "database-dsn"

	// DatabasePassword is spliced into a configured DSN that has none.
	DatabasePassword = "database-password"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns no secrets. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable secret", zap.String("key", entry.Name()), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[entry.Name()] = value
		}
	}
	return secrets, nil
}

// ApplyDatabase fills Postgres credentials into cfg. A DSN secret replaces
// the configured DSN; a password secret is added to a URL DSN without one.
// SQLite configurations are left alone.
func (s Secrets) ApplyDatabase(cfg *types.DatabaseConfig) {
	if cfg.Driver != types.DriverPostgres {
		return
	}
	if dsn, ok := s[DatabaseDSN]; ok {
		cfg.DSN = dsn
		return
	}
	password, ok := s[DatabasePassword]
	if !ok || cfg.DSN == "" {
		return
	}
	u, err := url.Parse(cfg.DSN)
	if err != nil || u.User == nil {
		return
	}
	if _, set := u.User.Password(); set {
		return
	}
	u.User = url.UserPassword(u.User.Username(), password)
	cfg.DSN = u.String()
}
