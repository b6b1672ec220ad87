package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/user"
)

// PGStore is the Postgres Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, applies pending migrations and returns the store.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PGStore{pool: pool}, nil
}

const userColumns = `id, email, password_hash, name, role, state, state_code, lga, cds_group, pop_date,
	gender, phone, mobilization_date, photo_url, COALESCE(last_seen_at, 'epoch'::timestamptz)`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.State, &u.StateCode, &u.LGA,
		&u.CDSGroup, &u.PopDate, &u.Gender, &u.Phone, &u.MobilizationDate, &u.PhotoURL, &u.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	u.Role = user.ParseRole(role)
	return &u, nil
}

func (s *PGStore) CreateUser(ctx context.Context, u User) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, state, state_code, lga, cds_group, pop_date,
			gender, phone, mobilization_date, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+userColumns,
		NormalizeEmail(u.Email), u.PasswordHash, u.Name, string(u.Role), u.State, u.StateCode, u.LGA,
		u.CDSGroup, u.PopDate, u.Gender, u.Phone, u.MobilizationDate, u.PhotoURL)

	created, err := scanUser(row)
	if IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	return created, err
}

func (s *PGStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
}

func (s *PGStore) UserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateProfile applies patch inside a transaction so concurrent patches do not interleave.
func (s *PGStore) UpdateProfile(ctx context.Context, id int64, patch user.ProfilePatch) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	p := patch.Apply(&current.Profile)

	updated, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users SET name = $2, state = $3, state_code = $4, lga = $5, cds_group = $6, pop_date = $7,
			gender = $8, phone = $9, mobilization_date = $10, photo_url = $11
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Name, p.State, p.StateCode, p.LGA, p.CDSGroup, p.PopDate, p.Gender, p.Phone,
		p.MobilizationDate, p.PhotoURL))
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit(ctx)
}

func (s *PGStore) TouchUser(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *PGStore) ListUsers(ctx context.Context) ([]user.Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []user.Profile{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u.Profile)
	}
	return out, rows.Err()
}

func (s *PGStore) Stats(ctx context.Context, dayStart time.Time) (*portal.AdminStats, error) {
	var st portal.AdminStats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE role = $1),
			count(*) FILTER (WHERE role = $2),
			count(*) FILTER (WHERE last_seen_at >= $3)
		FROM users`,
		string(user.RoleCorpsMember), string(user.RolePCM), dayStart,
	).Scan(&st.TotalUsers, &st.CorpsMembers, &st.PCMs, &st.ActiveToday)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return &st, nil
}

func (s *PGStore) Resources(ctx context.Context) ([]portal.Resource, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, category, url, date_added FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []portal.Resource{}
	for rows.Next() {
		var r portal.Resource
		if err := rows.Scan(&r.ID, &r.Title, &r.Category, &r.URL, &r.DateAdded); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) AddResource(ctx context.Context, r portal.Resource) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO resources (title, category, url, date_added) VALUES ($1, $2, $3, $4) RETURNING id`,
		r.Title, r.Category, r.URL, r.DateAdded,
	).Scan(&id)
	return id, err
}

func (s *PGStore) CreateClearance(ctx context.Context, c Clearance) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO clearances (user_id, user_name, state_code, month, date_submitted, status, file_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		c.UserID, c.UserName, c.StateCode, c.Month, c.DateSubmitted, c.Status, c.FileURL,
	).Scan(&id)
	if IsUniqueViolation(err) {
		return 0, ErrDuplicateClearance
	}
	return id, err
}

const clearanceColumns = `id, user_name, state_code, month, date_submitted, status, file_url, official_comment`

func (s *PGStore) queryClearances(ctx context.Context, where string, args ...any) ([]portal.Clearance, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clearanceColumns+` FROM clearances WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []portal.Clearance{}
	for rows.Next() {
		var c portal.Clearance
		if err := rows.Scan(&c.ID, &c.UserName, &c.StateCode, &c.Month, &c.DateSubmitted, &c.Status,
			&c.FileURL, &c.OfficialComment); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) ClearancesByUser(ctx context.Context, userID int64) ([]portal.Clearance, error) {
	return s.queryClearances(ctx, `user_id = $1`, userID)
}

func (s *PGStore) PendingClearances(ctx context.Context) ([]portal.Clearance, error) {
	return s.queryClearances(ctx, `status = $1`, portal.StatusPending)
}

func (s *PGStore) ActOnClearance(ctx context.Context, id int64, status, comment string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE clearances SET status = $2, official_comment = $3 WHERE id = $1`,
		id, status, comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *PGStore) News(ctx context.Context) ([]feed.NewsItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, date, type, content, url FROM news ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []feed.NewsItem{}
	for rows.Next() {
		var n feed.NewsItem
		if err := rows.Scan(&n.ID, &n.Title, &n.Date, &n.Type, &n.Content, &n.URL); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PGStore) AddNews(ctx context.Context, n feed.NewsItem) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO news (title, date, type, content, url) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.Title, n.Date, n.Type, n.Content, n.URL,
	).Scan(&id)
	return id, err
}

func (s *PGStore) Close() {
	s.pool.Close()
}
