package pg

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/auth"
)

var accountColumns = []string{"id", "user_name", "password", "user_type", "date_created"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (accounts.Account, error) {
	var (
		acc  accounts.Account
		role string
	)
	if err := row.Scan(&acc.ID, &acc.Name, &acc.PasswordHash, &role, &acc.CreatedAt); err != nil {
		return accounts.Account{}, err
	}
	acc.Role = auth.Role(role)
	return acc, nil
}

// CreateAccount holds a table lock for the insert so that exactly one
// concurrent registration can observe the empty table and become IT.
func (s *Store) CreateAccount(ctx context.Context, in accounts.NewAccount) (accounts.Account, error) {
	query, args, err := s.sb.
		Insert("users").
		Columns("user_name", "password", "user_type").
		Values(in.Name, in.PasswordHash,
			sq.Expr("case when exists (select 1 from users) then ? else 'IT' end", string(in.Role))).
		Suffix("returning id, user_name, password, user_type, date_created").
		ToSql()
	if err != nil {
		return accounts.Account{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return accounts.Account{}, storageError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `lock table users in share row exclusive mode`); err != nil {
		return accounts.Account{}, storageError(err)
	}
	acc, err := scanAccount(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return accounts.Account{}, accounts.ErrConflict
		}
		return accounts.Account{}, storageError(err)
	}
	if err := tx.Commit(); err != nil {
		return accounts.Account{}, storageError(err)
	}
	return acc, nil
}

func (s *Store) FindAccount(ctx context.Context, id int64) (accounts.Account, error) {
	return s.findAccount(ctx, sq.Eq{"id": id})
}

func (s *Store) FindAccountByName(ctx context.Context, name string) (accounts.Account, error) {
	return s.findAccount(ctx, sq.Eq{"user_name": name})
}

func (s *Store) findAccount(ctx context.Context, where sq.Eq) (accounts.Account, error) {
	query, args, err := s.sb.Select(accountColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return accounts.Account{}, err
	}
	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, storageError(err)
	}
	return acc, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]accounts.Account, error) {
	query, args, err := s.sb.Select(accountColumns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := make([]accounts.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, storageError(err)
		}
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id int64, upd accounts.Update) (accounts.Account, error) {
	set := map[string]any{}
	if upd.Name != nil {
		set["user_name"] = *upd.Name
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}
	if upd.Role != nil {
		set["user_type"] = string(*upd.Role)
	}
	if len(set) == 0 {
		return s.FindAccount(ctx, id)
	}

	query, args, err := s.sb.
		Update("users").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("returning id, user_name, password, user_type, date_created").
		ToSql()
	if err != nil {
		return accounts.Account{}, err
	}
	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return accounts.Account{}, accounts.ErrConflict
		}
		return accounts.Account{}, storageError(err)
	}
	return acc, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	query, args, err := s.sb.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

func (s *Store) AccountStats(ctx context.Context) (accounts.Stats, error) {
	query, args, err := s.sb.Select("user_type", "count(*)").From("users").GroupBy("user_type").ToSql()
	if err != nil {
		return accounts.Stats{}, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return accounts.Stats{}, storageError(err)
	}
	defer rows.Close()

	var st accounts.Stats
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return accounts.Stats{}, storageError(err)
		}
		st.Total += n
		switch auth.Role(role) {
		case auth.RoleIT:
			st.IT += n
		case auth.RoleAdmin:
			st.Admin += n
		case auth.RoleClient:
			st.Client += n
		}
	}
	if err := rows.Err(); err != nil {
		return accounts.Stats{}, storageError(err)
	}
	return st, nil
}
