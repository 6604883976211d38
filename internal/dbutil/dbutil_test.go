package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?,?) LIMIT ? OFFSET ?"

	if got := DialectMySQL.Rebind(q); got != q {
		t.Fatalf("mysql query changed: %s", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y IN ($2,$3) LIMIT $4 OFFSET $5"
	if got := DialectPostgres.Rebind(q); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{"": DialectMySQL, "MySQL": DialectMySQL, "postgres": DialectPostgres, "pgx": DialectPostgres}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if DialectPostgres.DriverName() != "pgx" || DialectMySQL.DriverName() != "mysql" {
		t.Fatal("unexpected driver names")
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if !IsDuplicateKey(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})) {
		t.Fatal("expected mysql duplicate to match")
	}
	if !IsDuplicateKey(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected postgres duplicate to match")
	}
	if IsDuplicateKey(errors.New("other")) {
		t.Fatal("unexpected match")
	}
	if !IsForeignKeyConstraintError(&mysql.MySQLError{Number: 1452}) {
		t.Fatal("expected foreign key failure to match")
	}
	if !IsForeignKeyConstraintError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})) {
		t.Fatal("expected postgres foreign key failure to match")
	}
	if IsForeignKeyConstraintError(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not a foreign key failure")
	}
}
