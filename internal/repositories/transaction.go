package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManagerInterface runs publish work for one channel at a time.
type TxManagerInterface interface {
	// RunInChannelTx runs fn while holding the channel's publish lock. tx is
	// nil when there is no database behind the manager.
	RunInChannelTx(ctx context.Context, channel string, fn func(tx pgx.Tx) error) error
}

// TxManager serializes channels across every relay node with a Postgres
// advisory lock held for the life of the transaction.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) TxManagerInterface {
	return &TxManager{pool: pool}
}

func (m *TxManager) RunInChannelTx(ctx context.Context, channel string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = fmt.Errorf("commit transaction: %w", err)
			}
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", channel); err != nil {
		return fmt.Errorf("lock channel %s: %w", channel, err)
	}

	err = fn(tx)
	return err
}

// LocalTxManager serializes channels inside this process only.
type LocalTxManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalTxManager() *LocalTxManager {
	return &LocalTxManager{locks: make(map[string]*sync.Mutex)}
}

func (m *LocalTxManager) RunInChannelTx(ctx context.Context, channel string, fn func(tx pgx.Tx) error) error {
	m.mu.Lock()
	l, ok := m.locks[channel]
	if !ok {
		l = &sync.Mutex{}
		m.locks[channel] = l
	}
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(nil)
}
