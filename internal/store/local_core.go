package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tasknerd/internal/logging"
	"tasknerd/internal/types"

	// SQLite drivers: "sqlite" (pure Go) and "sqlite3" (cgo).
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Options configures Open.
type Options struct {
	Driver       string // "sqlite" (default) or "sqlite3"
	Path         string
	DefaultUser  string
	DefaultEmail string
	Now          func() time.Time // clock for created_at/updated_at; defaults to time.Now
}

// LocalStore implements Store on a single SQLite file.
//
// All access goes through one connection. Reads outside a transaction take
// the read lock; WithTx holds the write lock for the whole unit of work.
type LocalStore struct {
	db            *sql.DB
	mu            sync.RWMutex
	dbPath        string
	driver        string
	now           func() time.Time
	defaultUserID int64
}

// NewLocalStore opens the store at path with default options.
func NewLocalStore(path string) (*LocalStore, error) {
	return Open(Options{Path: path})
}

// Open initializes the SQLite database described by opts.
func Open(opts Options) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if opts.Driver == "" {
		opts.Driver = "sqlite"
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "default"
	}
	if opts.DefaultEmail == "" {
		opts.DefaultEmail = opts.DefaultUser + "@localhost"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logging.Store("Opening task store at %s (driver=%s)", opts.Path, opts.Driver)

	if opts.Path != ":memory:" {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(opts.Driver, dsn(opts.Driver, opts.Path))
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", opts.Path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	s := &LocalStore{db: db, dbPath: opts.Path, driver: opts.Driver, now: opts.Now}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.ensureDefaultUser(opts.DefaultUser, opts.DefaultEmail); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Task store ready (default user id=%d)", s.defaultUserID)
	return s, nil
}

// dsn builds a connection string that enables foreign keys on every
// connection the pool opens, not just the first.
func dsn(driver, path string) string {
	if path == ":memory:" {
		return path
	}
	switch driver {
	case "sqlite3":
		return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	default:
		return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	project_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
	priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	due_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	project_id INTEGER REFERENCES projects(project_id) ON DELETE SET NULL,
	assigned_to INTEGER REFERENCES users(user_id) ON DELETE SET NULL,
	created_by INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tags (
	tag_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_by INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	UNIQUE (name, created_by)
);

CREATE TABLE IF NOT EXISTS task_tags (
	task_id INTEGER NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(tag_id) ON DELETE CASCADE,
	PRIMARY KEY (task_id, tag_id)
);

CREATE TABLE IF NOT EXISTS session_turns (
	session_id TEXT NOT NULL,
	turn_number INTEGER NOT NULL,
	utterance TEXT NOT NULL,
	intent_json TEXT NOT NULL DEFAULT '{}',
	reply TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	PRIMARY KEY (session_id, turn_number)
);
`

var indexSQL = []string{
	"CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id)",
	"CREATE INDEX IF NOT EXISTS idx_task_tags_tag_id ON task_tags(tag_id)",
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, stmt := range indexSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	logging.StoreDebug("Schema initialized")
	return nil
}

func (s *LocalStore) ensureDefaultUser(username, email string) error {
	var id int64
	err := s.db.QueryRow("SELECT user_id FROM users WHERE username = ?", username).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := s.db.Exec(
			"INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)",
			username, email, formatTime(s.now()),
		)
		if err != nil {
			return fmt.Errorf("failed to create default user: %w", mapError(err))
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		logging.Store("Created default user %q (id=%d)", username, id)
	} else if err != nil {
		return fmt.Errorf("failed to look up default user: %w", err)
	}
	s.defaultUserID = id
	return nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *LocalStore) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *LocalStore) Path() string { return s.dbPath }

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.StoreDebug("Closing task store %s", s.dbPath)
	return s.db.Close()
}

// DefaultUserID implements Reader.
func (s *LocalStore) DefaultUserID() int64 { return s.defaultUserID }

// reader returns read operations bound to the plain connection.
func (s *LocalStore) reader() *ops {
	return &ops{q: s.db, now: s.now, defaultUserID: s.defaultUserID}
}

// WithTx runs fn in one transaction. fn's error (or a panic) rolls back.
func (s *LocalStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	timer := logging.StartTimer(logging.CategoryStore, "WithTx")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logging.Get(logging.CategoryStore).Warn("Rollback failed: %v", rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", mapError(cErr))
		}
	}()

	return fn(&ops{q: tx, now: s.now, defaultUserID: s.defaultUserID})
}

// Read side, delegated under the read lock.

func (s *LocalStore) GetTask(ctx context.Context, id int64) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetTask(ctx, id)
}

func (s *LocalStore) ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListTasks(ctx, f)
}

func (s *LocalStore) CountTasks(ctx context.Context, f types.TaskFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().CountTasks(ctx, f)
}

func (s *LocalStore) GetProject(ctx context.Context, id int64) (types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetProject(ctx, id)
}

func (s *LocalStore) ListProjects(ctx context.Context) ([]types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListProjects(ctx)
}

func (s *LocalStore) GetUser(ctx context.Context, id int64) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetUser(ctx, id)
}

func (s *LocalStore) ListUsers(ctx context.Context, search string) ([]types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListUsers(ctx, search)
}

func (s *LocalStore) GetTag(ctx context.Context, id int64) (types.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().GetTag(ctx, id)
}

func (s *LocalStore) ListTags(ctx context.Context) ([]types.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().ListTags(ctx)
}

func (s *LocalStore) DescribeSchema(ctx context.Context) ([]types.SchemaTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().DescribeSchema(ctx)
}
