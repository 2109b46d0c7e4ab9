// Package store は設定されたドライバに応じてセッションストアを組み立てます。
package store

import (
	"context"
	"fmt"

	mongorepo "github.com/ogurasousui/worktime/internal/adapters/repository/mongodb"
	pgrepo "github.com/ogurasousui/worktime/internal/adapters/repository/postgres"
	literepo "github.com/ogurasousui/worktime/internal/adapters/repository/sqlite"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/ogurasousui/worktime/internal/platform/config"
	mdb "github.com/ogurasousui/worktime/internal/platform/db/mongodb"
	pgdb "github.com/ogurasousui/worktime/internal/platform/db/postgres"
	litedb "github.com/ogurasousui/worktime/internal/platform/db/sqlite"
	"github.com/rs/zerolog"
)

// TransactionManager はセッション・集計ユースケースの双方が必要とするトランザクション制御です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// Store は開いたストアとその後始末をまとめたものです。
type Store struct {
	Driver   string
	Sessions session.Repository
	// Tx が nil の場合、ユースケースはトランザクションなしで動作します。
	Tx    TransactionManager
	close func(context.Context) error
}

// Close はストアの接続を閉じます。
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open は cfg.Driver に従ってストアを開きます。
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "store").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgdb.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("store opened")
		return &Store{
			Driver:   cfg.Driver,
			Sessions: pgrepo.NewSessionRepository(pool),
			Tx:       pgdb.NewTransactionManager(pool),
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverSQLite:
		db, err := litedb.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("store opened")
		return &Store{
			Driver:   cfg.Driver,
			Sessions: literepo.NewSessionRepository(db),
			Tx:       litedb.NewTransactionManager(db),
			close: func(context.Context) error {
				return db.Close()
			},
		}, nil

	case config.DriverMongoDB:
		db, err := mdb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		repo, err := mongorepo.NewSessionRepository(ctx, db)
		if err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		st := &Store{Driver: cfg.Driver, Sessions: repo, close: db.Close}
		// スタンドアロンの mongod はトランザクションを持たない
		if cfg.MongoTransactions {
			st.Tx = mdb.NewTransactionManager(db)
		}
		log.Info().Str("database", cfg.MongoDatabase).Bool("transactions", cfg.MongoTransactions).Msg("store opened")
		return st, nil

	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
