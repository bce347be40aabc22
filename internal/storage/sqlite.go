// Package storage keeps the optional server registry in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/twinfo/assets"
	"github.com/woozymasta/twinfo/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// ErrNotFound is returned when a named server is not in the registry.
var ErrNotFound = errors.New("server not found in registry")

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the registry at dbPath, creating it when missing, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// a CLI run holds the file only briefly
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db, assets.FS(), assets.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer stores s under its name, replacing the address of an existing entry.
// AddedAt is kept from the first insert.
func (r *Repository) UpsertServer(s models.Server) error {
	if s.AddedAt.IsZero() {
		s.AddedAt = time.Now()
	}

	_, err := r.db.Exec(`
	INSERT INTO servers (name, host, port, added_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		host = excluded.host,
		port = excluded.port;
	`, s.Name, s.Host, s.Port, s.AddedAt)

	return err
}

// ListServers returns all registry entries ordered by the time they were added, then by name.
func (r *Repository) ListServers() ([]models.Server, error) {
	rows, err := r.db.Query(`
		SELECT name, host, port, added_at
		FROM servers
		ORDER BY added_at, name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		var s models.Server
		if err := rows.Scan(&s.Name, &s.Host, &s.Port, &s.AddedAt); err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer retrieves a server by name, returning ErrNotFound when absent.
func (r *Repository) GetServer(name string) (*models.Server, error) {
	row := r.db.QueryRow(`SELECT name, host, port, added_at FROM servers WHERE name = ?`, name)

	var s models.Server
	err := row.Scan(&s.Name, &s.Host, &s.Port, &s.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteServer removes a server by name, returning ErrNotFound when nothing was deleted.
func (r *Repository) DeleteServer(name string) error {
	res, err := r.db.Exec(`DELETE FROM servers WHERE name = ?`, name)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
