package database

import (
	"context"
	"testing"
	"time"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost:5432/invoices", DialectPostgres},
		{"postgresql://u:p@db/invoices?sslmode=disable", DialectPostgres},
		{"  POSTGRES://u@db/x", DialectPostgres},
		{"root:secret@tcp(127.0.0.1:3306)/invoices?parseTime=true", DialectMySQL},
		{"", DialectMySQL},
	}
	for _, tt := range tests {
		if got := DetectDialect(tt.url); got != tt.want {
			t.Errorf("DetectDialect(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestOpen_UnreachableIsLazy(t *testing.T) {
	for _, tt := range []struct {
		url     string
		dialect string
	}{
		{"postgres://u:p@127.0.0.1:1/db?sslmode=disable", DialectPostgres},
		{"u:p@tcp(127.0.0.1:1)/db", DialectMySQL},
	} {
		t.Run(tt.dialect, func(t *testing.T) {
			db, err := Open(tt.url)
			if err != nil {
				t.Fatalf("Open() error: %v, want lazy open", err)
			}
			defer Close(db)
			if db.Dialector.Name() != tt.dialect {
				t.Errorf("dialect = %s, want %s", db.Dialector.Name(), tt.dialect)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var one int
			if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err == nil {
				t.Errorf("query against unreachable database succeeded")
			}
		})
	}
}
