package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the ticket/trip ledger. Every method joins the transaction
// carried by ctx, if any.
type Store struct {
	db     *dbx.DB
	driver string
}

type txKey struct{}

// Open connects to the ledger database. SQLite connections are limited to a
// single writer and get a busy timeout.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = withSQLitePragmas(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("ledger: unsupported driver %q", driver)
	}

	db, err := dbx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxOpenConns(50)
		db.DB().SetMaxIdleConns(10)
		db.DB().SetConnMaxIdleTime(5 * time.Minute)
	}

	return &Store{db: db, driver: driver}, nil
}

func withSQLitePragmas(dsn string) string {
	pragmas := []string{
		"_pragma=busy_timeout(10000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
	}
	var missing []string
	for _, p := range pragmas {
		name := p[len("_pragma="):strings.Index(p, "(")]
		if !strings.Contains(dsn, name) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

// WithinTransaction executes fn in a transaction and injects it into the
// context passed to fn. Nested calls reuse the outer transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*dbx.Tx); ok {
		return fn(ctx)
	}

	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) builder(ctx context.Context) dbx.Builder {
	if tx, ok := ctx.Value(txKey{}).(*dbx.Tx); ok {
		return tx
	}
	return s.db
}
