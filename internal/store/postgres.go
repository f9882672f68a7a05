package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in PostgreSQL. Like SQLiteStore it filters
// expired rows on read and relies on DeleteExpired for removal.
type PostgresStore struct {
	pool   *pgxpool.Pool
	expiry Expiry
	now    func() time.Time
}

// NewPostgresStore builds a pool for databaseURL. The pool connects lazily;
// call Init to check reachability and create the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, expiry Expiry) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool, expiry: expiry, now: time.Now}, nil
}

// Init pings the server and creates missing tables.
func (s *PostgresStore) Init(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			phone_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			messages TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations (created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) FindUser(ctx context.Context, phone string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, phone_number, name, created_at FROM users WHERE phone_number = $1 AND created_at > $2`,
		phone, s.expiry.UserCutoff(s.now()),
	).Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", phone, err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, phone string) (*User, error) {
	u := newUser(phone, s.now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, phone_number, name, created_at) VALUES ($1, $2, '', $3)
		 ON CONFLICT (phone_number) DO UPDATE SET id = EXCLUDED.id, name = '', created_at = EXCLUDED.created_at`,
		u.ID, u.PhoneNumber, u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user %s: %w", phone, err)
	}
	return u, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, user *User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, phone_number, name, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		user.ID, user.PhoneNumber, user.Name, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.PhoneNumber, err)
	}
	return nil
}

func (s *PostgresStore) FindConversation(ctx context.Context, user string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, messages, created_at FROM conversations WHERE user_id = $1 AND created_at > $2`,
		user, s.expiry.ConversationCutoff(s.now()),
	).Scan(&c.ID, &c.User, &c.Messages, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", user, err)
	}
	if c.Messages == nil {
		c.Messages = []string{}
	}
	return &c, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, user string) (*Conversation, error) {
	c := newConversation(user, s.now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, messages, created_at) VALUES ($1, $2, '{}', $3)
		 ON CONFLICT (user_id) DO UPDATE SET id = EXCLUDED.id, messages = '{}', created_at = EXCLUDED.created_at`,
		c.ID, c.User, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation %s: %w", user, err)
	}
	return c, nil
}

func (s *PostgresStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, messages, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET messages = EXCLUDED.messages`,
		conv.ID, conv.User, msgs, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.User, err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	users, err := s.pool.Exec(ctx, `DELETE FROM users WHERE created_at <= $1`, s.expiry.UserCutoff(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired users: %w", err)
	}
	convs, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE created_at <= $1`, s.expiry.ConversationCutoff(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	return int(users.RowsAffected() + convs.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
