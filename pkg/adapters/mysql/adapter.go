package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/ruslano69/adminquery/pkg/adapters"
	"github.com/ruslano69/adminquery/pkg/dialect"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

// Коды ошибок MySQL, после которых запрос можно повторить
const (
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Adapter реализует adapters.Adapter для MySQL
type Adapter struct {
	db     *sqlx.DB
	config adapters.Config
}

func init() {
	// Регистрируем MySQL адаптер в фабрике
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Connect подключается к MySQL базе данных.
// DATETIME колонки всегда сканируются в time.Time (parseTime=true).
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	ctx, cancel := adapters.ConnectContext(ctx, cfg)
	defer cancel()

	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}
	mcfg.ParseTime = true
	if mcfg.Loc == nil {
		mcfg.Loc = time.UTC
	}
	if cfg.Timeout > 0 {
		mcfg.Timeout = cfg.Timeout
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}

	db := sqlx.NewDb(sql.OpenDB(connector), "mysql")
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.config = cfg

	return nil
}

// Close закрывает соединение с базой данных
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping проверяет соединение с базой данных
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// GetDatabaseType возвращает тип адаптера
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию MySQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	err := a.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// Dialect возвращает диалект MySQL
func (a *Adapter) Dialect() dialect.Dialect {
	return dialect.MySQL
}

// DB возвращает подключение
func (a *Adapter) DB() *sqlx.DB {
	return a.db
}

// IsRetryable возвращает true для deadlock и lock wait timeout
func (a *Adapter) IsRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errLockDeadlock || myErr.Number == errLockWaitTimeout
}
