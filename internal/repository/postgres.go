// Package repository содержит хранилища долговременного состояния пульта розыгрыша.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SelectedCampaignKey задаёт единственный ключ, под которым хранится последняя выбранная кампания.
const SelectedCampaignKey = "roulette.selectedCampaign"

// ErrSelectionNotFound возвращается, если выбранная кампания не сохранена.
var ErrSelectionNotFound = errors.New("selected campaign not found")

// PostgresRepository хранит состояние пульта в PostgreSQL.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	backoff func() retry.Backoff
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, backoff: defaultBackoff}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// defaultBackoff даёт три повтора с паузами 1с, 2с, 4с.
func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(time.Second))
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func(context.Context) error) error {
	return withRetry(ctx, r.backoff(), fn)
}

func withRetry(ctx context.Context, b retry.Backoff, fn func(context.Context) error) error {
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isRetryable сообщает, стоит ли повторить операцию: конфликты сериализации,
// взаимные блокировки и обрывы соединения.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetSelectedCampaign возвращает идентификатор последней выбранной кампании.
func (r *PostgresRepository) GetSelectedCampaign(ctx context.Context) (string, error) {
	var id string
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`SELECT value FROM client_state WHERE key = $1`,
			SelectedCampaignKey,
		).Scan(&id)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSelectionNotFound
		}
		return "", fmt.Errorf("get selected campaign: %w", err)
	}
	return id, nil
}

// SetSelectedCampaign сохраняет идентификатор выбранной кампании.
func (r *PostgresRepository) SetSelectedCampaign(ctx context.Context, id string) error {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			SelectedCampaignKey, id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set selected campaign: %w", err)
	}
	return nil
}

// ClearSelectedCampaign удаляет сохранённую кампанию.
func (r *PostgresRepository) ClearSelectedCampaign(ctx context.Context) error {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, SelectedCampaignKey)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear selected campaign: %w", err)
	}
	return nil
}
