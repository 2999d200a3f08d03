//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// DB groups targets that manage the local SQLite catalog.
type DB mg.Namespace

const (
	dbPath   = "data/mycolist.db"
	seedFile = "testdata/names.yaml"
	seedUser = "admin"
)

// Reset deletes the local database.
func (DB) Reset() error {
	if err := sh.Rm(dbPath); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", dbPath)
	return nil
}

// Seed creates the admin user and imports the seed name catalog.
func (DB) Seed() error {
	mg.Deps(Build, Init)
	if _, err := os.Stat(seedFile); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	bin := filepath.Join(binDir, binName)
	env := map[string]string{"MYCOLIST_DATABASE_PATH": dbPath}
	if err := sh.RunWithV(env, bin, "user", "add", seedUser); err != nil {
		return err
	}
	return sh.RunWithV(env, bin, "--user", seedUser, "name", "import", seedFile)
}

// Export writes a species list as YAML to data/exports/<id>.yaml.
func (DB) Export(id string) error {
	mg.Deps(Build, Init)
	out := filepath.Join("data", "exports", id+".yaml")
	bin := filepath.Join(binDir, binName)
	env := map[string]string{"MYCOLIST_DATABASE_PATH": dbPath}
	return sh.RunWithV(env, bin, "list", "export", id, "--format", "yaml", "--output", out)
}
