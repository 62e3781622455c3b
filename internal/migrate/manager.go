package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	defaultTable = "claimdesk_schema"

	kindMigration = "migration"
	kindSeed      = "seed"

	// lockKey serialises schema changes across replicas that auto-migrate
	// on startup.
	lockKey int64 = 0x636c61696d64
)

// ErrChecksumMismatch means an already applied file was edited afterwards.
var ErrChecksumMismatch = errors.New("migrate: applied file has changed")

// Entry is one migration as reported by Status.
type Entry struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
	Drifted   bool
}

func (e Entry) String() string {
	switch {
	case !e.Applied:
		return e.Name + "\tpending"
	case e.Drifted:
		return e.Name + "\tapplied " + e.AppliedAt.UTC().Format(time.RFC3339) + "\tCHANGED"
	default:
		return e.Name + "\tapplied " + e.AppliedAt.UTC().Format(time.RFC3339)
	}
}

// Manager applies up/down migrations and seed files from file systems and
// records them, with a checksum, in one bookkeeping table.
type Manager struct {
	db         *sql.DB
	migrations fs.FS
	seeds      fs.FS
	table      string
	sb         sq.StatementBuilderType
	now        func() time.Time
}

// NewManager constructs a Manager. seeds may be nil.
func NewManager(db *sql.DB, migrations, seeds fs.FS) *Manager {
	return &Manager{
		db:         db,
		migrations: migrations,
		seeds:      seeds,
		table:      defaultTable,
		sb:         sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:        time.Now,
	}
}

// Up applies every pending migration in name order. It refuses to run when
// an applied migration no longer matches its recorded checksum.
func (m *Manager) Up(ctx context.Context) error {
	return m.applyAll(ctx, kindMigration, m.migrations, ".up.sql")
}

// Seed applies pending seed files; each runs at most once.
func (m *Manager) Seed(ctx context.Context) error {
	return m.applyAll(ctx, kindSeed, m.seeds, ".sql")
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	recs, err := m.applied(ctx, kindMigration)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return errors.New("no migrations applied")
	}
	last := recs[len(recs)-1].name
	downPath, ok, err := findSQL(m.migrations, strings.TrimSuffix(last, ".up.sql")+".down.sql")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("missing down migration for %s", last)
	}
	body, err := fs.ReadFile(m.migrations, downPath)
	if err != nil {
		return err
	}

	del, args, err := m.sb.Delete(m.table).
		Where(sq.Eq{"kind": kindMigration, "name": last}).
		ToSql()
	if err != nil {
		return err
	}
	err = m.inLockedTx(ctx, func(tx *sql.Tx) error {
		if err := execStatements(ctx, tx, string(body)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, del, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	return nil
}

// Status lists every known migration, applied ones first in apply order,
// then pending ones in name order.
func (m *Manager) Status(ctx context.Context) ([]Entry, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	recs, err := m.applied(ctx, kindMigration)
	if err != nil {
		return nil, err
	}
	files, err := collectSQL(m.migrations, ".up.sql")
	if err != nil {
		return nil, err
	}
	sums := make(map[string]string, len(files))
	for _, f := range files {
		sums[f.Base] = f.Sum
	}

	out := make([]Entry, 0, len(files))
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		seen[r.name] = true
		sum, ok := sums[r.name]
		out = append(out, Entry{
			Name:      r.name,
			Applied:   true,
			AppliedAt: r.appliedAt,
			Drifted:   !ok || sum != r.checksum,
		})
	}
	for _, f := range files {
		if !seen[f.Base] {
			out = append(out, Entry{Name: f.Base})
		}
	}
	return out, nil
}

func (m *Manager) applyAll(ctx context.Context, kind string, fsys fs.FS, suffix string) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	recs, err := m.applied(ctx, kind)
	if err != nil {
		return err
	}
	done := make(map[string]string, len(recs))
	for _, r := range recs {
		done[r.name] = r.checksum
	}
	files, err := collectSQL(fsys, suffix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if sum, ok := done[f.Base]; ok {
			if sum != f.Sum {
				return fmt.Errorf("%w: %s", ErrChecksumMismatch, f.Base)
			}
			continue
		}
		if err := m.apply(ctx, kind, f); err != nil {
			return fmt.Errorf("apply %s %s: %w", kind, f.Base, err)
		}
	}
	return nil
}

// apply runs one file and records it in the same transaction. Another
// replica may have applied it while we waited for the lock; then it is a
// no-op.
func (m *Manager) apply(ctx context.Context, kind string, f sqlFile) error {
	exists, existsArgs, err := m.sb.Select("count(*)").From(m.table).
		Where(sq.Eq{"kind": kind, "name": f.Base}).
		ToSql()
	if err != nil {
		return err
	}
	ins, insArgs, err := m.sb.Insert(m.table).
		Columns("kind", "name", "checksum", "applied_at").
		Values(kind, f.Base, f.Sum, m.now().UTC()).
		ToSql()
	if err != nil {
		return err
	}
	return m.inLockedTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, exists, existsArgs...).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := execStatements(ctx, tx, f.Body); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, ins, insArgs...)
		return err
	})
}

func (m *Manager) inLockedTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("schema lock: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`create table if not exists %s (
	kind text not null,
	name text not null,
	checksum text not null,
	applied_at timestamptz not null default now(),
	primary key (kind, name)
)`, m.table)
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

type record struct {
	name      string
	checksum  string
	appliedAt time.Time
}

func (m *Manager) applied(ctx context.Context, kind string) ([]record, error) {
	query, args, err := m.sb.Select("name", "checksum", "applied_at").
		From(m.table).
		Where(sq.Eq{"kind": kind}).
		OrderBy("applied_at asc", "name asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []record
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.name, &r.checksum, &r.appliedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func execStatements(ctx context.Context, tx *sql.Tx, body string) error {
	for _, stmt := range splitStatements(body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type sqlFile struct {
	Base string
	Path string
	Body string
	Sum  string
}

func checksum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// collectSQL returns every file under fsys ending in suffix, ordered by base
// name. A nil or missing fsys yields nothing.
func collectSQL(fsys fs.FS, suffix string) ([]sqlFile, error) {
	if fsys == nil {
		return nil, nil
	}
	var files []sqlFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files = append(files, sqlFile{Base: d.Name(), Path: p, Body: string(raw), Sum: checksum(raw)})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Base < files[j].Base })
	return files, nil
}

func findSQL(fsys fs.FS, base string) (string, bool, error) {
	files, err := collectSQL(fsys, base)
	if err != nil {
		return "", false, err
	}
	for _, f := range files {
		if path.Base(f.Path) == base {
			return f.Path, true, nil
		}
	}
	return "", false, nil
}

// splitStatements splits on semicolons outside single-quoted strings and
// drops "--" line comments. Empty statements are skipped.
func splitStatements(body string) []string {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			inString = !inString
			cur.WriteRune(r)
		case !inString && r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case !inString && r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return stmts
}
