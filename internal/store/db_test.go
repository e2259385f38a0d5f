package store

import (
	"context"
	"testing"
)

func TestNewDB_PingFailureReturnsNoHandle(t *testing.T) {
	// nothing listens on port 1
	db, err := NewDB(context.Background(), "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")

	if err == nil {
		t.Fatal("expected a ping error")
	}
	if db != nil {
		t.Errorf("got a handle on failure: %+v", db)
	}
}

func TestDB_NilSafe(t *testing.T) {
	var db *DB
	if db.Healthy(context.Background()) {
		t.Error("nil DB reported healthy")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on nil DB: %v", err)
	}
}
