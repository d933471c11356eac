package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/adminquery/pkg/adapters"
	"github.com/ruslano69/adminquery/pkg/dialect"
)

func TestConnect_Memory(t *testing.T) {
	ctx := context.Background()
	a := &Adapter{}
	if err := a.Connect(ctx, adapters.Config{Type: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer a.Close(ctx)

	if a.Dialect() != dialect.SQLite {
		t.Errorf("Dialect() = %s", a.Dialect())
	}

	// Таблица видна всем запросам: in-memory БД живет в одном соединении
	db := a.DB()
	if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO t (name) VALUES ('a'), ('b')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	version, err := a.GetDatabaseVersion(ctx)
	if err != nil || !strings.HasPrefix(version, "SQLite ") {
		t.Errorf("GetDatabaseVersion() = %q, %v", version, err)
	}
}

func TestConnect_File(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "test.db")

	a := &Adapter{}
	if err := a.Connect(ctx, adapters.Config{Type: "sqlite", DSN: dsn, MaxConns: 4}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer a.Close(ctx)

	if err := a.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPing_NotConnected(t *testing.T) {
	a := &Adapter{}
	if err := a.Ping(context.Background()); err == nil {
		t.Error("expected error for unconnected adapter")
	}
}

func TestIsRetryable(t *testing.T) {
	a := &Adapter{}
	if !a.IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("locked database must be retryable")
	}
	if a.IsRetryable(errors.New("no such table: users")) {
		t.Error("missing table must not be retryable")
	}
	if a.IsRetryable(nil) {
		t.Error("nil must not be retryable")
	}
}
