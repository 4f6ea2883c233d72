package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lilymagnc/lilysync/internal/docstore"
)

// syncPool creates the pgxpool.Pool shared by a subcommand's lifetime.
func syncPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, eris.New("no database url configured (set database.url or LILYSYNC_DATABASE_URL)")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, eris.Wrap(err, "parse database url")
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}

	fmt.Println("Connected to database")
	return pool, nil
}

// openDocstore connects to the configured Firestore project.
func openDocstore(ctx context.Context) (*docstore.FirestoreStore, error) {
	return docstore.NewFirestore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
}
