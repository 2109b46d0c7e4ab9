package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ogurasousui/worktime/internal/platform/config"
)

const (
	applicationName = "worktime"
	pingTimeout     = 5 * time.Second
)

// BuildPoolConfig は database 設定から pgxpool.Config を構築します。
// セッション時刻は UTC で扱うため、接続ごとに timezone を固定します。
func BuildPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pinRuntimeParams(poolCfg.ConnConfig.RuntimeParams)
	if err := applyPoolLimits(poolCfg, cfg); err != nil {
		return nil, err
	}
	return poolCfg, nil
}

func pinRuntimeParams(params map[string]string) {
	params["timezone"] = "UTC"
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}
}

// 0 以下の値は pgxpool の既定値に任せる。
func applyPoolLimits(poolCfg *pgxpool.Config, cfg config.DatabaseConfig) error {
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if poolCfg.MinConns > poolCfg.MaxConns {
		return fmt.Errorf("postgres: max_idle_conns %d exceeds max_open_conns %d", poolCfg.MinConns, poolCfg.MaxConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	return nil
}

// NewPool は pgxpool.Pool を生成し、pingTimeout 以内に疎通できなければエラーを返します。
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return pool, nil
}
