package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ConfigRepository is a key/value store for process-wide settings.
type ConfigRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sql.DB, driver string) *ConfigRepository {
	return &ConfigRepository{db: sqlx.NewDb(db, driver)}
}

// Get returns the stored value and whether the key exists.
func (s *ConfigRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT config_value FROM app_config WHERE config_key = ?`), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query GetConfig: %w", err)
	}
	return value, true, nil
}

func (s *ConfigRepository) Upsert(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO app_config (config_key, config_value) VALUES (?, ?)
		ON CONFLICT (config_key) DO UPDATE SET config_value = excluded.config_value`

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), key, value); err != nil {
		return fmt.Errorf("exec UpsertConfig: %w", err)
	}
	return nil
}

// InsertIfAbsent writes value only when key has never been set and reports
// whether it did.
func (s *ConfigRepository) InsertIfAbsent(ctx context.Context, key, value string) (bool, error) {
	const query = `
		INSERT INTO app_config (config_key, config_value) VALUES (?, ?)
		ON CONFLICT (config_key) DO NOTHING`

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), key, value)
	if err != nil {
		return false, fmt.Errorf("exec InsertConfigIfAbsent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected InsertConfigIfAbsent: %w", err)
	}
	return n == 1, nil
}
