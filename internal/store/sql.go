package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlStore implements Store on database/sql for both backends. Queries are
// written with ? placeholders and rebound for postgres.
type sqlStore struct {
	sql     *sql.DB
	dialect string // "sqlite" or "postgres"
}

// OpenSQLite opens (and migrates) the default embedded store.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	s, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite handles one writer; serialize through a single conn.
	s.SetMaxOpenConns(1)
	s.SetMaxIdleConns(1)
	s.SetConnMaxLifetime(0)

	st := &sqlStore{sql: s, dialect: "sqlite"}
	if err := st.init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if _, err := s.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = s.Close()
		return nil, err
	}
	return st, nil
}

// OpenPostgres opens (and migrates) a postgres-backed store via pgx.
func OpenPostgres(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New("store dsn is required")
	}
	s, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	st := &sqlStore{sql: s, dialect: "postgres"}
	if err := st.init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return st, nil
}

func (d *sqlStore) init(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.sql.PingContext(pctx); err != nil {
		return err
	}
	return d.migrate(ctx)
}

func (d *sqlStore) Close() error { return d.sql.Close() }

// q rebinds ? placeholders to $n for postgres.
func (d *sqlStore) q(s string) string {
	if d.dialect != "postgres" {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nowUnix() int64 { return time.Now().Unix() }

func norm(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

const userCols = "email, COALESCE(name, ''), is_admin, last_login, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (AllowedUser, error) {
	var u AllowedUser
	var isAdmin int
	var lastLogin sql.NullInt64
	var created, updated int64
	if err := row.Scan(&u.Email, &u.Name, &isAdmin, &lastLogin, &created, &updated); err != nil {
		return AllowedUser{}, err
	}
	u.IsAdmin = isAdmin != 0
	if lastLogin.Valid {
		t := time.Unix(lastLogin.Int64, 0).UTC()
		u.LastLogin = &t
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return u, nil
}

// GetUser looks up an allow-list entry by email, case-insensitively.
// The boolean reports whether the entry exists.
func (d *sqlStore) GetUser(ctx context.Context, email string) (AllowedUser, bool, error) {
	row := d.sql.QueryRowContext(ctx, d.q(
		"SELECT "+userCols+" FROM allowed_users WHERE email = ?"), norm(email))
	u, err := scanUser(row)
	if err == nil {
		return u, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return AllowedUser{}, false, nil
	}
	return AllowedUser{}, false, err
}

// ListUsers returns all entries sorted by email.
func (d *sqlStore) ListUsers(ctx context.Context) ([]AllowedUser, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+userCols+" FROM allowed_users ORDER BY email ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AllowedUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddUser inserts a new entry; duplicates fail with ErrExists.
func (d *sqlStore) AddUser(ctx context.Context, email, name string, isAdmin bool) (AllowedUser, error) {
	e := norm(email)
	if e == "" {
		return AllowedUser{}, errors.New("email is required")
	}
	if _, ok, err := d.GetUser(ctx, e); err != nil {
		return AllowedUser{}, err
	} else if ok {
		return AllowedUser{}, ErrExists
	}
	now := nowUnix()
	_, err := d.sql.ExecContext(ctx, d.q(`
INSERT INTO allowed_users(email, name, is_admin, last_login, created_at, updated_at)
VALUES(?, ?, ?, NULL, ?, ?)
`), e, name, boolToInt(isAdmin), now, now)
	if err != nil {
		return AllowedUser{}, err
	}
	u, _, err := d.GetUser(ctx, e)
	return u, err
}

// SetAdmin flips the admin flag inside a transaction so the last-admin
// check and the update observe the same state.
func (d *sqlStore) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	e := norm(email)
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cur, ok, err := d.getUserTx(ctx, tx, e)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if cur.IsAdmin && !isAdmin {
		n, err := d.countAdminsTx(ctx, tx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}
	if _, err := tx.ExecContext(ctx, d.q(
		"UPDATE allowed_users SET is_admin = ?, updated_at = ? WHERE email = ?"),
		boolToInt(isAdmin), nowUnix(), e); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveUser deletes an entry, refusing to delete the last admin.
func (d *sqlStore) RemoveUser(ctx context.Context, email string) error {
	e := norm(email)
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cur, ok, err := d.getUserTx(ctx, tx, e)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if cur.IsAdmin {
		n, err := d.countAdminsTx(ctx, tx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}
	if _, err := tx.ExecContext(ctx, d.q(
		"DELETE FROM allowed_users WHERE email = ?"), e); err != nil {
		return err
	}
	return tx.Commit()
}

// TouchLastLogin refreshes lastLogin; unknown emails are ignored.
func (d *sqlStore) TouchLastLogin(ctx context.Context, email string, when time.Time) error {
	_, err := d.sql.ExecContext(ctx, d.q(
		"UPDATE allowed_users SET last_login = ?, updated_at = ? WHERE email = ?"),
		when.Unix(), nowUnix(), norm(email))
	return err
}

// ReplaceAll swaps the entire allow-list in one transaction.
func (d *sqlStore) ReplaceAll(ctx context.Context, users []AllowedUser) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM allowed_users"); err != nil {
		return err
	}
	now := nowUnix()
	for _, u := range users {
		e := norm(u.Email)
		if e == "" {
			return errors.New("snapshot entry missing email")
		}
		var last sql.NullInt64
		if u.LastLogin != nil {
			last = sql.NullInt64{Int64: u.LastLogin.Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, d.q(`
INSERT INTO allowed_users(email, name, is_admin, last_login, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
`), e, u.Name, boolToInt(u.IsAdmin), last, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *sqlStore) getUserTx(ctx context.Context, tx *sql.Tx, email string) (AllowedUser, bool, error) {
	row := tx.QueryRowContext(ctx, d.q(
		"SELECT "+userCols+" FROM allowed_users WHERE email = ?"), email)
	u, err := scanUser(row)
	if err == nil {
		return u, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return AllowedUser{}, false, nil
	}
	return AllowedUser{}, false, err
}

func (d *sqlStore) countAdminsTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM allowed_users WHERE is_admin = 1").Scan(&n)
	return n, err
}

// GetConfig fetches a single config key. The boolean reports existence.
func (d *sqlStore) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, d.q(
		"SELECT value FROM config WHERE key = ?"), key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return "", false, err
}

// SetConfig upserts a config key/value pair.
func (d *sqlStore) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	_, err := d.sql.ExecContext(ctx, d.q(`
INSERT INTO config(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`), key, value, nowUnix())
	return err
}

// IsInitialized reports whether setup has completed.
func (d *sqlStore) IsInitialized(ctx context.Context) (bool, error) {
	v, ok, err := d.GetConfig(ctx, "initialized")
	if err != nil {
		return false, err
	}
	return ok && v == "1", nil
}

// SetInitialized marks setup as complete.
func (d *sqlStore) SetInitialized(ctx context.Context) error {
	return d.SetConfig(ctx, "initialized", "1")
}

// boolToInt maps booleans to portable integer flags.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
