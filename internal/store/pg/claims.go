package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"claimdesk.org/internal/claims"
)

// claimColumns renders nullable text-like columns as strings so values come
// back the way they were submitted.
func claimColumns(prefix string) []string {
	return []string{
		prefix + "claim_id",
		"coalesce(" + prefix + "claim_code, '')",
		"coalesce(" + prefix + "claim_amount::text, '')",
		"coalesce(" + prefix + "hospital_name, '')",
		"coalesce(" + prefix + "patient_name, '')",
		"coalesce(to_char(" + prefix + "date_of_claim, 'YYYY-MM-DD'), '')",
		prefix + "submitted_by",
		prefix + "claim_status",
		prefix + "claim_date_created",
		prefix + "claim_date_updated",
	}
}

func returningClaim() string {
	cols := claimColumns("")
	out := "returning "
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func claimDest(c *claims.Claim, status *string, updated *sql.NullTime) []any {
	return []any{&c.ID, &c.Code, &c.Amount, &c.HospitalName, &c.PatientName, &c.DateOfClaim,
		&c.SubmittedBy, status, &c.CreatedAt, updated}
}

func finishClaim(c *claims.Claim, status string, updated sql.NullTime) {
	c.Status = claims.Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if updated.Valid {
		t := updated.Time.UTC()
		c.UpdatedAt = &t
	}
}

func scanClaim(row rowScanner) (claims.Claim, error) {
	var (
		c       claims.Claim
		status  string
		updated sql.NullTime
	)
	if err := row.Scan(claimDest(&c, &status, &updated)...); err != nil {
		return claims.Claim{}, err
	}
	finishClaim(&c, status, updated)
	return c, nil
}

// CreateClaim passes the caller's amount and date text to Postgres; shape
// errors come back as store.ErrInvalidData.
func (s *Store) CreateClaim(ctx context.Context, f claims.Fields, owner int64) (claims.Claim, error) {
	query, args, err := s.sb.
		Insert("claims").
		Columns("claim_code", "claim_amount", "hospital_name", "patient_name", "date_of_claim", "submitted_by").
		Values(
			f.Code,
			sq.Expr("nullif(?, '')::numeric", f.Amount),
			f.HospitalName,
			f.PatientName,
			sq.Expr("nullif(?, '')::date", f.DateOfClaim),
			owner,
		).
		Suffix(returningClaim()).
		ToSql()
	if err != nil {
		return claims.Claim{}, err
	}
	c, err := scanClaim(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return claims.Claim{}, storageError(err)
	}
	return c, nil
}

func (s *Store) FindClaim(ctx context.Context, id int64) (claims.Claim, error) {
	query, args, err := s.sb.Select(claimColumns("")...).From("claims").Where(sq.Eq{"claim_id": id}).ToSql()
	if err != nil {
		return claims.Claim{}, err
	}
	c, err := scanClaim(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return claims.Claim{}, claims.ErrClaimNotFound
	}
	if err != nil {
		return claims.Claim{}, storageError(err)
	}
	return c, nil
}

func (s *Store) ListClaims(ctx context.Context) ([]claims.Claim, error) {
	query, args, err := s.sb.
		Select(append(claimColumns("c."), "u.user_name")...).
		From("claims c").
		Join("users u on u.id = c.submitted_by").
		OrderBy("c.claim_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := make([]claims.Claim, 0)
	for rows.Next() {
		var (
			c       claims.Claim
			status  string
			updated sql.NullTime
		)
		if err := rows.Scan(append(claimDest(&c, &status, &updated), &c.SubmitterName)...); err != nil {
			return nil, storageError(err)
		}
		finishClaim(&c, status, updated)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return result, nil
}

func (s *Store) ListClaimsByOwner(ctx context.Context, owner int64) ([]claims.Claim, error) {
	query, args, err := s.sb.
		Select(claimColumns("")...).
		From("claims").
		Where(sq.Eq{"submitted_by": owner}).
		OrderBy("claim_date_created desc", "claim_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := make([]claims.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, storageError(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return result, nil
}

// SetClaimStatus is one conditional update keyed by claim_id. When nothing
// matched, a follow-up existence probe tells a missing claim from a status
// that moved underneath the caller.
func (s *Store) SetClaimStatus(ctx context.Context, id int64, to, expected claims.Status, at time.Time) (claims.Claim, error) {
	where := sq.Eq{"claim_id": id}
	if expected != "" {
		where["claim_status"] = string(expected)
	}
	query, args, err := s.sb.
		Update("claims").
		Set("claim_status", string(to)).
		Set("claim_date_updated", sq.Expr("greatest(coalesce(claim_date_updated, ?), ?)", at, at)).
		Where(where).
		Suffix(returningClaim()).
		ToSql()
	if err != nil {
		return claims.Claim{}, err
	}
	c, err := scanClaim(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return claims.Claim{}, storageError(err)
	}
	if expected == "" {
		return claims.Claim{}, claims.ErrClaimNotFound
	}
	if _, err := s.FindClaim(ctx, id); err != nil {
		return claims.Claim{}, err
	}
	return claims.Claim{}, claims.ErrStatusConflict
}

func (s *Store) ClaimStats(ctx context.Context, scope claims.Scope) (claims.Stats, error) {
	b := s.sb.Select("claim_status", "count(*)").From("claims").GroupBy("claim_status")
	if !scope.Global() {
		b = b.Where(sq.Eq{"submitted_by": scope.Owner})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return claims.Stats{}, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return claims.Stats{}, storageError(err)
	}
	defer rows.Close()

	var st claims.Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return claims.Stats{}, storageError(err)
		}
		st.Add(claims.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return claims.Stats{}, storageError(err)
	}
	return st, nil
}
