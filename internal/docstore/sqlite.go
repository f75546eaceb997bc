package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	conn  *sql.DB
	clock func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply schema: %w", err)
	}
	return &SQLite{conn: conn, clock: time.Now}, nil
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

const commentColumns = `id, post_slug, author, email, content, parent_id, approved, is_admin, created_at`

func (db *SQLite) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	c, err := prepareComment(c, db.clock())
	if err != nil {
		return nil, err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.PostSlug, c.Author, c.Email, c.Content, c.ParentID, c.Approved, c.IsAdmin, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("docstore: insert comment: %w", err)
	}
	return &c, nil
}

func (db *SQLite) ListComments(ctx context.Context, f CommentFilter) ([]models.Comment, error) {
	if !validFilterStatus(f.Status) {
		return nil, apperr.Invalid(fmt.Errorf("status: must be one of all, pending, approved"))
	}
	q := `SELECT ` + commentColumns + ` FROM comments WHERE 1=1`
	var args []any
	if f.PostSlug != "" {
		q += ` AND post_slug = ?`
		args = append(args, f.PostSlug)
	}
	switch f.Status {
	case StatusPending:
		q += ` AND approved = 0`
	case StatusApproved:
		q += ` AND approved = 1`
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: list comments: %w", err)
	}
	defer rows.Close()

	out := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (db *SQLite) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return c, err
}

func (db *SQLite) ApproveComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE comments SET approved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("docstore: approve comment: %w", err)
	}
	return requireRow(res)
}

func (db *SQLite) DeleteComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("docstore: delete comment: %w", err)
	}
	return requireRow(res)
}

func (db *SQLite) CountComments(ctx context.Context) (int, int, error) {
	var total, pending int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN approved = 0 THEN 1 ELSE 0 END), 0) FROM comments`,
	).Scan(&total, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("docstore: count comments: %w", err)
	}
	return total, pending, nil
}

func (db *SQLite) AddSubscriber(ctx context.Context, s models.Subscriber) (*models.Subscriber, error) {
	s, err := prepareSubscriber(s, db.clock())
	if err != nil {
		return nil, err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO subscribers (id, email, email_key, post_slug, subscribed_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Email, emailKey(s.Email), s.PostSlug, s.SubscribedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, apperr.ErrAlreadyExists
		}
		return nil, fmt.Errorf("docstore: insert subscriber: %w", err)
	}
	return &s, nil
}

func (db *SQLite) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, email, post_slug, subscribed_at FROM subscribers
		ORDER BY subscribed_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list subscribers: %w", err)
	}
	defer rows.Close()

	out := []models.Subscriber{}
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.PostSlug, &s.SubscribedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *SQLite) DeleteSubscriber(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("docstore: delete subscriber: %w", err)
	}
	return requireRow(res)
}

func (db *SQLite) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("docstore: count subscribers: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(s scanner) (*models.Comment, error) {
	var c models.Comment
	err := s.Scan(&c.ID, &c.PostSlug, &c.Author, &c.Email, &c.Content, &c.ParentID, &c.Approved, &c.IsAdmin, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("docstore: scan comment: %w", err)
	}
	return &c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
