package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/migrations/*.sql
var migrationScripts embed.FS

const migrationsDir = "sql/migrations"

// advisoryLockKey сериализует миграции между конкурирующими инстансами.
const advisoryLockKey = int64(0x46454952)

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migration — пара up/down скриптов одной версии схемы.
type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrateUp применяет pending-миграции по возрастанию версии.
// steps=0 применяет все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	migrations, err := loadMigrations(migrationScripts)
	if err != nil {
		return err
	}

	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}
			if err := applyMigration(ctx, conn, m, true); err != nil {
				return err
			}
			if done++; steps > 0 && done == steps {
				break
			}
		}
		return nil
	})
}

// MigrateDown откатывает применённые миграции по убыванию версии.
// steps<=0 трактуется как один шаг: полный откат только явным числом.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	migrations, err := loadMigrations(migrationScripts)
	if err != nil {
		return err
	}
	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		versions, err := appliedVersionsDesc(ctx, conn, steps)
		if err != nil {
			return err
		}

		for _, version := range versions {
			m, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			if err := applyMigration(ctx, conn, m, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает текущую версию схемы и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationsTable); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	err := s.db.QueryRowContext(queryCtx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&version, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

// withMigrationLock выполняет fn на выделенном соединении под advisory lock.
func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn)
}

// applyMigration выполняет скрипт и запись в schema_migrations одной транзакцией.
func applyMigration(ctx context.Context, conn *sql.Conn, m migration, up bool) error {
	direction := "up"
	script := m.Up
	bookkeeping := `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
	args := []any{m.Version, m.Name}
	if !up {
		direction = "down"
		script = m.Down
		bookkeeping = `DELETE FROM schema_migrations WHERE version = $1`
		args = []any{m.Version}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func appliedVersionsDesc(ctx context.Context, conn *sql.Conn, limit int) ([]int64, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations desc: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// parseScriptName разбирает имя вида 0001_init.up.sql.
func parseScriptName(name string) (version int64, base string, up bool, err error) {
	trimmed := name
	switch {
	case strings.HasSuffix(name, ".up.sql"):
		up = true
		trimmed = strings.TrimSuffix(name, ".up.sql")
	case strings.HasSuffix(name, ".down.sql"):
		trimmed = strings.TrimSuffix(name, ".down.sql")
	default:
		return 0, "", false, fmt.Errorf("migration script %s must end with .up.sql or .down.sql", name)
	}

	prefix, rest, ok := strings.Cut(trimmed, "_")
	if !ok || rest == "" {
		return 0, "", false, fmt.Errorf("migration script %s must be named <version>_<name>", name)
	}
	version, err = strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("migration script %s: bad version prefix: %w", name, err)
	}
	return version, rest, up, nil
}

// loadMigrations собирает пары up/down из встроенной директории скриптов.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, up, err := parseScriptName(entry.Name())
		if err != nil {
			return nil, err
		}

		body, err := fs.ReadFile(fsys, migrationsDir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration script %s: %w", entry.Name(), err)
		}
		script := strings.TrimSpace(string(body))
		if script == "" {
			return nil, fmt.Errorf("migration script %s is empty", entry.Name())
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("version %d has conflicting names %q and %q", version, m.Name, name)
		}

		if up {
			if m.Up != "" {
				return nil, fmt.Errorf("duplicate up script for version %d", version)
			}
			m.Up = script
		} else {
			if m.Down != "" {
				return nil, fmt.Errorf("duplicate down script for version %d", version)
			}
			m.Down = script
		}
	}

	if len(byVersion) == 0 {
		return nil, fmt.Errorf("no migration scripts embedded")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d_%s is missing its up or down script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
