package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Options selects and configures a backend.
type Options struct {
	Driver        string // memory, mongo, sqlite or postgres
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	Expiry        Expiry
}

// Open builds the configured backend. Configuration errors are returned;
// an unreachable mongo or postgres server is only logged so the bot keeps
// running and each later store call reports its own failure.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Repository, error) {
	switch opts.Driver {
	case "", "memory":
		logger.Warn().Msg("using in-memory store, records are lost on restart")
		return NewMemoryStore(opts.Expiry), nil

	case "mongo":
		s, err := NewMongoStore(opts.MongoURI, opts.MongoDatabase, opts.Expiry)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			logger.Error().Err(err).Msg("MongoDB connection error, indexes will be created by the sweeper")
			return s, nil
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to create MongoDB indexes, the sweeper will retry")
			return s, nil
		}
		logger.Info().Str("database", opts.MongoDatabase).Msg("Connected to MongoDB")
		return s, nil

	case "sqlite":
		s, err := OpenSQLite(ctx, opts.DatabaseURL, opts.Expiry)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", opts.DatabaseURL).Msg("opened SQLite store")
		return s, nil

	case "postgres":
		s, err := NewPostgresStore(ctx, opts.DatabaseURL, opts.Expiry)
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			logger.Error().Err(err).Msg("PostgreSQL connection error")
			return s, nil
		}
		logger.Info().Msg("Connected to PostgreSQL")
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}
