package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_statements.sql", true, 1, "create_statements"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("Expected valid=%v, got %v", tt.valid, ok)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("Expected %d/%q, got %d/%q", tt.version, tt.name, version, name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("0002_second.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")
	write("0001_first.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")
	write("README.md", "not a migration")

	migrations, err := readMigrations(dir, "proj", "recon")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("Expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("Expected migrations sorted by version, got %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.recon.a`") {
		t.Errorf("Expected placeholders replaced, got %s", migrations[0].SQL)
	}

	again, _ := readMigrations(dir, "other", "dataset")
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("Expected the checksum to ignore the target project and dataset")
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("Expected different files to have different checksums")
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations(all, map[int]bool{1: true, 3: true})
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("Expected only version 2 pending, got %+v", pending)
	}
}

func TestRepositoryMigrationsAreWellFormed(t *testing.T) {
	migrations, err := readMigrations("../../migrations/bigquery", "p", "d")
	if err != nil {
		t.Fatalf("Expected the shipped migrations to load: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("Expected at least one migration")
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("Expected contiguous versions, %s has %d", m.Filename, m.Version)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("Unreplaced placeholder in %s", m.Filename)
		}
	}
}
