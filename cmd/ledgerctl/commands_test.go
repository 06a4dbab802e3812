package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/supplies_backend/config"
	"gorm.io/gorm"
)

func useMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.InstallPlugins(db); err != nil {
		t.Fatalf("install plugins: %v", err)
	}

	prevDB, prevConnect := config.GetDB(), connectDatabase
	connectDatabase = func() error {
		config.SetDB(db)
		return nil
	}
	config.SetRedis(nil)
	t.Cleanup(func() {
		connectDatabase = prevConnect
		config.SetDB(prevDB)
		_ = sqlDB.Close()
	})
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateThenNextNumber(t *testing.T) {
	useMemoryDB(t)

	if out, err := run(t, "migrate"); err != nil || !strings.Contains(out, "migrations applied") {
		t.Fatalf("migrate: %q %v", out, err)
	}
	out, err := run(t, "next-number", "invoice")
	if err != nil {
		t.Fatalf("next-number: %v", err)
	}
	if strings.TrimSpace(out) != "INV-0001" {
		t.Fatalf("number: got %q", out)
	}
	if _, err := run(t, "next-number", "receipt"); err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
}

func TestReconcileReportsDriftUntilFixed(t *testing.T) {
	db := useMemoryDB(t)
	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if out, err := run(t, "reconcile"); err != nil || !strings.Contains(out, "checked 0 warehouse rows") {
		t.Fatalf("clean reconcile: %q %v", out, err)
	}

	// a row written without any movement
	if err := db.Exec("INSERT INTO warehouse_stocks (product_id, warehouse_name, available_stock, total_received_from_supplier, status) VALUES ('P', 'W', 4, 4, 'IN_WAREHOUSE')").Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	out, err := run(t, "reconcile")
	if err == nil || !strings.Contains(out, "WAREHOUSE P@W") {
		t.Fatalf("drifted reconcile: %q %v", out, err)
	}
	if _, err := run(t, "reconcile", "--fix"); err != nil {
		t.Fatalf("reconcile --fix: %v", err)
	}
	if _, err := run(t, "reconcile"); err != nil {
		t.Fatalf("reconcile after fix: %v", err)
	}
}

func TestOutboxDispatchOnceWithNothingPending(t *testing.T) {
	useMemoryDB(t)
	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := run(t, "outbox", "dispatch", "--once")
	if err != nil || strings.TrimSpace(out) != "claimed=0 sent=0 failed=0 dead=0" {
		t.Fatalf("dispatch: %q %v", out, err)
	}
}
