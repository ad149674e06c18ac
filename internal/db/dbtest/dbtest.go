// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"tradingbot/internal/config"
	"tradingbot/internal/db"
	gormrepository "tradingbot/internal/repository/gorm"
)

var seq atomic.Int64

// Open returns a fresh database private to t. A single connection keeps the
// shared-cache database alive and serializes writers like a row lock would.
func Open(t testing.TB) *db.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := db.Open(config.DBConfig{DSN: dsn, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

// Store is Open wrapped in the gorm repository.
func Store(t testing.TB) *gormrepository.Store {
	t.Helper()
	return gormrepository.New(Open(t).Gorm)
}
