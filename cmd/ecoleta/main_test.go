package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/ecoleta/internal/db"
	"github.com/erazemk/ecoleta/internal/model"
	"github.com/erazemk/ecoleta/internal/store"
)

func TestLevelRouter(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(&levelRouter{
		stdout: slog.NewTextHandler(&out, nil),
		stderr: slog.NewTextHandler(&errOut, nil),
	}).With("component", "test")

	logger.Info("point created")
	logger.Warn("login failed")
	logger.Error("server error")
	logger.Debug("hidden")

	if !strings.Contains(out.String(), "point created") || !strings.Contains(out.String(), "login failed") {
		t.Errorf("expected info and warn on stdout, got %q", out.String())
	}
	if strings.Contains(out.String(), "server error") || !strings.Contains(errOut.String(), "server error") {
		t.Errorf("expected error only on stderr, got stdout %q stderr %q", out.String(), errOut.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Error("debug records should be dropped")
	}
	if !strings.Contains(errOut.String(), "component=test") {
		t.Errorf("expected attrs to propagate, got %q", errOut.String())
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 || a == b {
		t.Errorf("expected two distinct 16-character passwords, got %q and %q", a, b)
	}
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecoleta.sqlite3")

	database, password, err := initDatabase(path, "Admin")
	if err != nil {
		t.Fatalf("initDatabase: %v", err)
	}
	defer database.Close()

	if err := model.ValidatePassword(password); err != nil {
		t.Errorf("generated password rejected: %v", err)
	}

	ctx := context.Background()
	admin, err := store.GetUserByUsername(ctx, database, "Admin")
	if err != nil || admin == nil || admin.Role != model.RoleAdmin {
		t.Fatalf("expected admin account, got %+v, %v", admin, err)
	}

	items, err := store.ListItems(ctx, database)
	if err != nil || len(items) != len(db.DefaultItems) {
		t.Errorf("expected seeded catalog, got %d items, %v", len(items), err)
	}
}
