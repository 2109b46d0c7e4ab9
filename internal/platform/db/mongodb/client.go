package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Database は MongoDB クライアントと対象データベースをまとめたものです。
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect は MongoDB に接続し、プライマリへの疎通を確認します。
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Database, error) {
	if uri == "" || database == "" {
		return nil, errors.New("mongodb: uri and database are required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetAppName("worktime"))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	log.Info().Str("database", database).Msg("connected to mongodb")

	return &Database{client: client, db: client.Database(database)}, nil
}

// Collection は指定名のコレクションを返します。
func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Close は接続を切断します。
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// TransactionManager は MongoDB のセッションを用いたトランザクション制御です。
// マルチドキュメントトランザクションはレプリカセットでのみ利用できます。
type TransactionManager struct {
	client *mongo.Client
}

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(d *Database) *TransactionManager {
	if d == nil {
		return nil
	}
	return &TransactionManager{client: d.client}
}

// WithinReadOnly は fn をそのまま実行します。読み取りは単一クエリで完結します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("mongodb: transaction function is required")
	}
	return fn(ctx)
}

// WithinReadWrite はトランザクション内で fn を実行します。
// 既にセッションが載っているコンテキストではそのまま実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("mongodb: transaction function is required")
	}
	if m == nil || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx)
	})
	return err
}
