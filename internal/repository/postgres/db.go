package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/reorderpoint/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentTx bounds in-flight transactions so a wide backfill cannot
// exhaust the pool the HTTP layer also reads from.
const maxConcurrentTx = 10

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB creates the process-wide connection pool from config
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		connStr := cfg.URL
		if connStr == "" {
			connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		}

		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", connStr)
		if err != nil {
			return
		}
		dbInstance = wrap(db)
	})

	return dbInstance, err
}

// Open connects with an explicit driver name and DSN, e.g. "pgx" and a
// DATABASE_URL. Unlike NewDB it never shares the pool.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return wrap(db), nil
}

func wrap(db *sqlx.DB) *DB {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(maxConcurrentTx),
	}
}

type connKey struct{}

// queryer is satisfied by both the pool and a dedicated *sqlx.Conn.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// withConn scopes ctx to a dedicated connection. Repositories called with the
// returned context run on it instead of borrowing a second one from the pool.
func withConn(ctx context.Context, conn *sqlx.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// q returns the connection bound to ctx by a product lock, or the pool.
func (db *DB) q(ctx context.Context) queryer {
	if conn, ok := ctx.Value(connKey{}).(*sqlx.Conn); ok && conn != nil {
		return conn
	}
	return db.DB
}

// namedExec binds :name parameters with the pool's driver and runs the
// statement on the connection bound to ctx.
func (db *DB) namedExec(ctx context.Context, query string, arg any) (sql.Result, error) {
	bound, args, err := db.BindNamed(query, arg)
	if err != nil {
		return nil, err
	}
	return db.q(ctx).ExecContext(ctx, bound, args...)
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
