package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/claims"
	"claimdesk.org/internal/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var claimCols = []string{"claim_id", "claim_code", "claim_amount", "hospital_name", "patient_name",
	"date_of_claim", "submitted_by", "claim_status", "claim_date_created", "claim_date_updated"}

func TestCreateAccountBootstrapsUnderLock(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(q("lock table users in share row exclusive mode")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("INSERT INTO users (user_name,password,user_type) VALUES ($1,$2,case when exists (select 1 from users) then $3 else 'IT' end)")).
		WithArgs("root", "hash", "Client").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "password", "user_type", "date_created"}).
			AddRow(int64(1), "root", "hash", "IT", created))
	mock.ExpectCommit()

	acc, err := s.CreateAccount(context.Background(), accounts.NewAccount{Name: "root", PasswordHash: "hash", Role: auth.RoleClient})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID != 1 || acc.Role != auth.RoleIT {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAccountDuplicateName(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("lock table users")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("INSERT INTO users")).WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, err := s.CreateAccount(context.Background(), accounts.NewAccount{Name: "dup", PasswordHash: "h", Role: auth.RoleAdmin})
	if !errors.Is(err, accounts.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindAccountByName(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, user_name, password, user_type, date_created FROM users WHERE user_name = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "password", "user_type", "date_created"}))

	if _, err := s.FindAccountByName(context.Background(), "ghost"); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAccountBuildsPartialSet(t *testing.T) {
	s, mock := newMock(t)
	role := auth.RoleAdmin
	mock.ExpectQuery(q("UPDATE users SET user_type = $1 WHERE id = $2 returning")).
		WithArgs("Admin", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "password", "user_type", "date_created"}).
			AddRow(int64(4), "bob", "h", "Admin", time.Now()))

	acc, err := s.UpdateAccount(context.Background(), 4, accounts.Update{Role: &role})
	if err != nil || acc.Role != auth.RoleAdmin {
		t.Fatalf("UpdateAccount: %+v %v", acc, err)
	}
}

func TestDeleteAccountMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM users WHERE id = $1")).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.DeleteAccount(context.Background(), 9); !errors.Is(err, accounts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountStats(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT user_type, count(*) FROM users GROUP BY user_type")).
		WillReturnRows(sqlmock.NewRows([]string{"user_type", "count"}).
			AddRow("IT", 1).AddRow("Admin", 2).AddRow("Client", 5))

	st, err := s.AccountStats(context.Background())
	if err != nil {
		t.Fatalf("AccountStats: %v", err)
	}
	if st != (accounts.Stats{Total: 8, IT: 1, Admin: 2, Client: 5}) {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCreateClaimPassesValuesVerbatim(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("INSERT INTO claims (claim_code,claim_amount,hospital_name,patient_name,date_of_claim,submitted_by) VALUES ($1,nullif($2, '')::numeric,$3,$4,nullif($5, '')::date,$6) returning claim_id")).
		WithArgs("C-1", "100.50", "North", "Jane", "2025-01-31", int64(3)).
		WillReturnRows(sqlmock.NewRows(claimCols).
			AddRow(int64(10), "C-1", "100.50", "North", "Jane", "2025-01-31", int64(3), "Pending", created, nil))

	c, err := s.CreateClaim(context.Background(), claims.Fields{
		Code: "C-1", Amount: "100.50", HospitalName: "North", PatientName: "Jane", DateOfClaim: "2025-01-31",
	}, 3)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if c.ID != 10 || c.Status != claims.StatusPending || c.UpdatedAt != nil || c.Amount != "100.50" {
		t.Fatalf("unexpected claim %+v", c)
	}
}

func TestCreateClaimRejectedValue(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("INSERT INTO claims")).
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type numeric: "abc"`})

	_, err := s.CreateClaim(context.Background(), claims.Fields{Amount: "abc"}, 3)
	if !errors.Is(err, store.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestListClaimsJoinsSubmitter(t *testing.T) {
	s, mock := newMock(t)
	created := time.Now().UTC()
	mock.ExpectQuery(q("FROM claims c JOIN users u on u.id = c.submitted_by ORDER BY c.claim_id desc")).
		WillReturnRows(sqlmock.NewRows(append(claimCols, "user_name")).
			AddRow(int64(2), "C-2", "20", "", "", "", int64(5), "Approved", created, created, "carol").
			AddRow(int64(1), "C-1", "100", "", "", "", int64(5), "Pending", created, nil, "carol"))

	list, err := s.ListClaims(context.Background())
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if len(list) != 2 || list[0].SubmitterName != "carol" || list[0].UpdatedAt == nil || list[1].UpdatedAt != nil {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestListClaimsByOwnerFilters(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("FROM claims WHERE submitted_by = $1 ORDER BY claim_date_created desc, claim_id desc")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(claimCols))

	list, err := s.ListClaimsByOwner(context.Background(), 7)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", list, err)
	}
}

func TestSetClaimStatusUnconditional(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 3, 3, 3, 3, 3, 0, time.UTC)
	mock.ExpectQuery(q("UPDATE claims SET claim_status = $1, claim_date_updated = greatest(coalesce(claim_date_updated, $2), $3) WHERE claim_id = $4 returning")).
		WithArgs("Approved", at, at, int64(1)).
		WillReturnRows(sqlmock.NewRows(claimCols).
			AddRow(int64(1), "C-1", "1", "", "", "", int64(2), "Approved", at.Add(-time.Hour), at))

	c, err := s.SetClaimStatus(context.Background(), 1, claims.StatusApproved, "", at)
	if err != nil {
		t.Fatalf("SetClaimStatus: %v", err)
	}
	if c.Status != claims.StatusApproved || c.UpdatedAt == nil || !c.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected claim %+v", c)
	}
}

func TestSetClaimStatusMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("UPDATE claims")).WillReturnRows(sqlmock.NewRows(claimCols))

	_, err := s.SetClaimStatus(context.Background(), 404, claims.StatusDenied, "", time.Now())
	if !errors.Is(err, claims.ErrClaimNotFound) {
		t.Fatalf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestSetClaimStatusConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("WHERE claim_id = $4 AND claim_status = $5")).
		WithArgs("Denied", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), "Pending").
		WillReturnRows(sqlmock.NewRows(claimCols))
	mock.ExpectQuery(q("FROM claims WHERE claim_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(claimCols).
			AddRow(int64(1), "C-1", "1", "", "", "", int64(2), "Approved", time.Now(), time.Now()))

	_, err := s.SetClaimStatus(context.Background(), 1, claims.StatusDenied, claims.StatusPending, time.Now())
	if !errors.Is(err, claims.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimStatsScoped(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT claim_status, count(*) FROM claims WHERE submitted_by = $1 GROUP BY claim_status")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"claim_status", "count"}).
			AddRow("Pending", 3).AddRow("Approved", 1).AddRow("Resubmit", 2))

	st, err := s.ClaimStats(context.Background(), claims.OwnerScope(5))
	if err != nil {
		t.Fatalf("ClaimStats: %v", err)
	}
	if st.Total != 6 || st.Pending+st.Approved+st.Denied+st.Resubmit != st.Total {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestStorageErrorWrapsDriverFailures(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT claim_status, count(*) FROM claims GROUP BY claim_status")).
		WillReturnError(errors.New("connection reset"))

	if _, err := s.ClaimStats(context.Background(), claims.Scope{}); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
