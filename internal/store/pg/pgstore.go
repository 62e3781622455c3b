// Package pg implements the account and claim stores on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/claims"
	"claimdesk.org/internal/store"
)

const (
	pgErrUniqueViolation = "23505"
	pgClassDataException = "22"
	pgClassIntegrity     = "23"
)

type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ accounts.Store = (*Store)(nil)
	_ claims.Store   = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// storageError classifies a driver failure. Rejected values (bad numeric or
// date text, check violations) become store.ErrInvalidData.
func storageError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassDataException):
			return fmt.Errorf("%w: %s", store.ErrInvalidData, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, pgClassIntegrity) && pgErr.Code != pgErrUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrInvalidData, pgErr.Message)
		}
	}
	return store.Wrap(err)
}
