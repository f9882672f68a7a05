package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps records in a SQLite file. Timestamps are unix
// nanoseconds; messages are a JSON array. Expired rows are filtered on read
// and removed by DeleteExpired.
type SQLiteStore struct {
	db     *sql.DB
	expiry Expiry
	now    func() time.Time
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string, expiry Expiry) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	s := &SQLiteStore{db: db, expiry: expiry, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			phone_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			messages TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);
	`)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindUser(ctx context.Context, phone string) (*User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, phone_number, name, created_at FROM users WHERE phone_number = ? AND created_at > ?`,
		phone, s.expiry.UserCutoff(s.now()).UnixNano(),
	).Scan(&u.ID, &u.PhoneNumber, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", phone, err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

// CreateUser replaces any expired row that a sweep has not removed yet.
func (s *SQLiteStore) CreateUser(ctx context.Context, phone string) (*User, error) {
	u := newUser(phone, s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone_number, name, created_at) VALUES (?, ?, '', ?)
		 ON CONFLICT(phone_number) DO UPDATE SET id = excluded.id, name = '', created_at = excluded.created_at`,
		u.ID, u.PhoneNumber, u.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user %s: %w", phone, err)
	}
	return u, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone_number, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		user.ID, user.PhoneNumber, user.Name, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.PhoneNumber, err)
	}
	return nil
}

func (s *SQLiteStore) FindConversation(ctx context.Context, user string) (*Conversation, error) {
	var (
		c       Conversation
		raw     string
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, messages, created_at FROM conversations WHERE user_id = ? AND created_at > ?`,
		user, s.expiry.ConversationCutoff(s.now()).UnixNano(),
	).Scan(&c.ID, &c.User, &raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", user, err)
	}
	if err := json.Unmarshal([]byte(raw), &c.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", user, err)
	}
	if c.Messages == nil {
		c.Messages = []string{}
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return &c, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, user string) (*Conversation, error) {
	c := newConversation(user, s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, messages, created_at) VALUES (?, ?, '[]', ?)
		 ON CONFLICT(user_id) DO UPDATE SET id = excluded.id, messages = '[]', created_at = excluded.created_at`,
		c.ID, c.User, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation %s: %w", user, err)
	}
	return c, nil
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []string{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages for %s: %w", conv.User, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, messages, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET messages = excluded.messages`,
		conv.ID, conv.User, string(raw), conv.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.User, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	users, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE created_at <= ?`, s.expiry.UserCutoff(now).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired users: %w", err)
	}
	convs, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE created_at <= ?`, s.expiry.ConversationCutoff(now).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	nu, _ := users.RowsAffected()
	nc, _ := convs.RowsAffected()
	return int(nu + nc), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
