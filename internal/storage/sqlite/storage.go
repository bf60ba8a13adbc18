package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose хранит dialect и FS глобально, поэтому миграции выполняются под мьютексом
var migrateMu sync.Mutex

// Storage represents SQLite implementation of storage.AccountStore
type Storage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Один процесс, одно соединение: все чтения и записи идут через него
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Включаем WAL mode и внешние ключи (нужны для каскадного удаления сессий)
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{db: db}

	// Запускаем миграции
	if err := storage.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}

// withTx выполняет fn в транзакции; при ошибке транзакция откатывается
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ErrClosed returned by Opener.Get after Close
var ErrClosed = errors.New("storage is closed")

// Opener lazily opens one Storage per process. Concurrent first callers
// share a single initialization and all receive its result.
type Opener struct {
	storage *Storage
	err     error
	done    chan struct{}
	path    string
	once    sync.Once
}

// NewOpener creates an opener for dbPath; nothing is opened until Get
func NewOpener(dbPath string) *Opener {
	return &Opener{
		path: dbPath,
		done: make(chan struct{}),
	}
}

// Get returns the shared Storage, starting initialization on first call.
// ctx only bounds how long the caller waits: initialization itself keeps
// running so that other callers can still use its result.
func (o *Opener) Get(ctx context.Context) (*Storage, error) {
	o.once.Do(func() {
		go func() {
			defer close(o.done)
			o.storage, o.err = New(context.WithoutCancel(ctx), o.path)
		}()
	})

	select {
	case <-o.done:
		return o.storage, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for database initialization: %w", ctx.Err())
	}
}

// Close closes the storage if it was opened successfully
func (o *Opener) Close() error {
	select {
	case <-o.done:
	default:
		// Инициализация не запускалась или еще идет
		o.once.Do(func() {
			o.err = ErrClosed
			close(o.done)
		})
		<-o.done
	}

	if o.storage == nil {
		return nil
	}
	return o.storage.Close()
}
