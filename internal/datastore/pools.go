// Package datastore owns the process-wide connection pools and runs statements
// inside retried transactions.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const followerReadsSQL = "SET default_transaction_use_follower_reads = on"

// PoolConfig configures both pools.
type PoolConfig struct {
	DatabaseURL     string
	ReadSize        int32
	WriteSize       int32
	FollowerReads   bool
	ConnectTimeout  time.Duration
	ApplicationName string
}

// Pools holds the read and write pools. Create once at startup and Close at shutdown.
type Pools struct {
	Read  *pgxpool.Pool
	Write *pgxpool.Pool
}

// OpenPools connects both pools and pings them.
func OpenPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	write, err := openPool(ctx, cfg, cfg.WriteSize, false)
	if err != nil {
		return nil, fmt.Errorf("datastore: write pool: %w", err)
	}
	read, err := openPool(ctx, cfg, cfg.ReadSize, cfg.FollowerReads)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("datastore: read pool: %w", err)
	}
	return &Pools{Read: read, Write: write}, nil
}

func openPool(ctx context.Context, cfg PoolConfig, size int32, followerReads bool) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		poolCfg.MaxConns = size
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	if followerReads {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, followerReadsSQL)
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.ConnectTimeout))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func pingTimeout(connect time.Duration) time.Duration {
	if connect <= 0 {
		return 5 * time.Second
	}
	return 5 * connect
}

// Ping checks both pools.
func (p *Pools) Ping(ctx context.Context) error {
	if p == nil || p.Read == nil || p.Write == nil {
		return ErrNilPool
	}
	if err := p.Write.Ping(ctx); err != nil {
		return err
	}
	return p.Read.Ping(ctx)
}

// Close releases both pools.
func (p *Pools) Close() {
	if p == nil {
		return
	}
	if p.Read != nil {
		p.Read.Close()
	}
	if p.Write != nil {
		p.Write.Close()
	}
}
