// Путь: internal/repository/postgres/migration.go
package postgres

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// RunMigrations выполняет все еще не примененные миграции из каталога dir.
// Имя файла начинается с номера версии: 001_initial_schema.sql
func RunMigrations(db *sql.DB, dir string) error {
	// Создаем таблицу для отслеживания миграций, если её нет
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INT PRIMARY KEY,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		version, err := migrationVersion(path)
		if err != nil {
			return err
		}
		if err := applyMigration(db, version, path); err != nil {
			return err
		}
	}

	return nil
}

func migrationVersion(path string) (int, error) {
	name := filepath.Base(path)
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: missing version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %s: invalid version: %w", name, err)
	}
	return version, nil
}

func applyMigration(db *sql.DB, version int, path string) error {
	// Проверяем, выполнялась ли уже эта миграция
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if count > 0 {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	// Выполняем каждый запрос в транзакции
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range strings.Split(string(content), ";") {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}

		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration %d: %s\nError: %w", version, query, err)
		}
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
