// Package repository содержит реализацию хранилища заказов в PostgreSQL.
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

	"github.com/mmeshcher/decorom-storefront/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrOrderNotFound возвращается, если заказ с указанным идентификатором не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторной вставке заказа с тем же идентификатором.
	ErrOrderExists = errors.New("order already exists")
)

const orderColumns = `id::text, category, material, size, total_sq_inch,
	frontend_price, server_price, price_valid, payment_status,
	customer_name, customer_email, customer_phone, customer_street,
	customer_city, customer_state, customer_zip_code,
	user_ip, lighting_included, fitting_included, created_at, updated_at`

// querier выполняет однострочные запросы; *pgxpool.Pool удовлетворяет ему.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к заказам в PostgreSQL.
type PostgresRepository struct {
	pool       *pgxpool.Pool
	db         querier
	retryDelay []time.Duration
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

	r := &PostgresRepository{
		pool:       pool,
		db:         pool,
		retryDelay: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second},
	}

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

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.retryDelay); i++ {
		err = fn()
		if err == nil || i == len(r.retryDelay) || !isRetryable(err) {
			return err
		}

		timer := time.NewTimer(r.retryDelay[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
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

// Ping проверяет доступность базы данных.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateOrder сохраняет новый заказ и заполняет время создания из БД.
// Если соединение оборвалось после фиксации INSERT, повтор находит ту же строку и считается успешным.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	attempts := 0
	return r.withRetry(ctx, func() error {
		attempts++
		err := r.db.QueryRow(ctx,
			`INSERT INTO orders (
				id, category, material, size, total_sq_inch,
				frontend_price, server_price, price_valid, payment_status,
				customer_name, customer_email, customer_phone, customer_street,
				customer_city, customer_state, customer_zip_code,
				user_ip, lighting_included, fitting_included
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING created_at, updated_at`,
			o.ID, o.Category, o.Material, o.Size, o.TotalSqInch,
			o.FrontendPrice, o.ServerPrice, o.PriceValid, string(o.PaymentStatus),
			o.CustomerAddress.FullName, o.CustomerAddress.Email, o.CustomerAddress.Phone, o.CustomerAddress.Street,
			o.CustomerAddress.City, o.CustomerAddress.State, o.CustomerAddress.ZipCode,
			o.UserIP, o.LightingIncluded, o.FittingIncluded,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				if attempts > 1 {
					return r.adoptCommittedInsert(ctx, o)
				}
				return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

// adoptCommittedInsert принимает строку, записанную предыдущей попыткой, если она совпадает с заказом o.
func (r *PostgresRepository) adoptCommittedInsert(ctx context.Context, o *model.Order) error {
	stored, err := r.GetOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load order after retried insert: %w", err)
	}
	if stored.ServerPrice != o.ServerPrice || stored.FrontendPrice != o.FrontendPrice || stored.UserIP != o.UserIP {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
	}
	o.CreatedAt = stored.CreatedAt
	o.UpdatedAt = stored.UpdatedAt
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// TransitionPaymentStatus атомарно переводит заказ из PENDING в статус to.
// Возвращает актуальное состояние заказа и признак того, что переход выполнен именно этим вызовом.
// Если заказ уже в терминальном статусе, он возвращается без изменений.
// Если попытка UPDATE оборвалась и после повтора заказ уже в статусе to, переход считается выполненным этим вызовом.
func (r *PostgresRepository) TransitionPaymentStatus(ctx context.Context, id string, to model.PaymentStatus) (*model.Order, bool, error) {
	if !to.IsTerminal() {
		return nil, false, fmt.Errorf("transition to non-terminal status %q", to)
	}

	var (
		o        *model.Order
		applied  bool
		attempts int
	)

	err := r.withRetry(ctx, func() error {
		attempts++
		var err error
		o, err = scanOrder(r.db.QueryRow(ctx,
			`UPDATE orders SET payment_status = $2, updated_at = now()
			 WHERE id = $1 AND payment_status = $3
			 RETURNING `+orderColumns,
			id, string(to), string(model.PaymentStatusPending),
		))
		if err == nil {
			applied = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update payment status: %w", err)
		}

		o, err = r.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		applied = attempts > 1 && o.PaymentStatus == to
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return o, applied, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Category, &o.Material, &o.Size, &o.TotalSqInch,
		&o.FrontendPrice, &o.ServerPrice, &o.PriceValid, &status,
		&o.CustomerAddress.FullName, &o.CustomerAddress.Email, &o.CustomerAddress.Phone, &o.CustomerAddress.Street,
		&o.CustomerAddress.City, &o.CustomerAddress.State, &o.CustomerAddress.ZipCode,
		&o.UserIP, &o.LightingIncluded, &o.FittingIncluded, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = model.PaymentStatus(status)
	return &o, nil
}
