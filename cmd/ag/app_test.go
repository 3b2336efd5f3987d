package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentry-ai/agentry/config"
)

func TestOpenStorageCreatesStateDirectory(t *testing.T) {
	logger = zerolog.Nop()

	dsn := filepath.Join(t.TempDir(), "nested", "state", "agentry.db")
	a := &app{cfg: &config.Config{
		Storage: config.StorageConfig{Driver: "sqlite", DSN: dsn},
	}}

	if err := a.openStorage(context.Background()); err != nil {
		t.Fatalf("openStorage failed on a fresh directory: %v", err)
	}
	defer a.Close()

	if _, err := os.Stat(dsn); err != nil {
		t.Errorf("state database file not created: %v", err)
	}
	if a.store == nil {
		t.Error("conversation store not initialized")
	}
}

func TestOpenStorageRejectsUnknownDriver(t *testing.T) {
	logger = zerolog.Nop()
	t.Setenv("HOME", t.TempDir())

	a := &app{cfg: &config.Config{
		Storage: config.StorageConfig{Driver: "cassandra", DSN: filepath.Join(t.TempDir(), "agentry.db")},
	}}

	err := a.openStorage(context.Background())
	if err == nil {
		a.Close()
		t.Fatal("Expected error for unknown storage driver")
	}
}
