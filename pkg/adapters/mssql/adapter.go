package mssql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb" // MS SQL Server driver
	"github.com/jmoiron/sqlx"

	"github.com/ruslano69/adminquery/pkg/adapters"
	"github.com/ruslano69/adminquery/pkg/dialect"
)

// AdapterType идентификатор MS SQL адаптера
const AdapterType = "mssql"

// driverName - драйвер с плейсхолдерами @p1, @p2...
const driverName = "sqlserver"

// minServerVersion - SQL Server 2012: OFFSET/FETCH и FORMAT()
const minServerVersion = 11

// errDeadlockVictim - транзакция выбрана жертвой deadlock
const errDeadlockVictim = 1205

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Adapter implements the adapters.Adapter interface for Microsoft SQL Server.
type Adapter struct {
	db     *sqlx.DB
	config adapters.Config

	serverVersion    int    // Major version: 11=2012, 13=2016, 14=2017, 15=2019, 16=2022
	serverVersionStr string // Full version string
}

func init() {
	// Register MS SQL Server adapter in factory
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Connect implements adapters.Adapter interface.
// Connects to MS SQL Server and checks the server version.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	ctx, cancel := adapters.ConnectContext(ctx, cfg)
	defer cancel()

	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.config = cfg

	if err := a.detectVersion(ctx); err != nil {
		db.Close()
		return err
	}

	return nil
}

// detectVersion reads the server version and rejects servers older than 2012.
func (a *Adapter) detectVersion(ctx context.Context) error {
	var version string
	err := a.db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get server version: %w", err)
	}

	a.serverVersionStr = version
	a.serverVersion = parseServerVersion(version)

	if a.serverVersion < minServerVersion {
		return fmt.Errorf("%s is not supported: SQL Server 2012 or newer is required", a.getServerVersionName())
	}
	return nil
}

// parseServerVersion parses SQL Server version string to major version number.
// Examples:
//   - "11.0.2100.60" → 11 (SQL Server 2012)
//   - "13.0.5026.0"  → 13 (SQL Server 2016)
//   - "15.0.2000.5"  → 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	parts := strings.Split(version, ".")
	if len(parts) == 0 {
		return 0
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}

	return major
}

// getServerVersionName returns human-readable server version name.
func (a *Adapter) getServerVersionName() string {
	switch a.serverVersion {
	case 11:
		return "SQL Server 2012"
	case 12:
		return "SQL Server 2014"
	case 13:
		return "SQL Server 2016"
	case 14:
		return "SQL Server 2017"
	case 15:
		return "SQL Server 2019"
	case 16:
		return "SQL Server 2022"
	default:
		return fmt.Sprintf("SQL Server (version %d)", a.serverVersion)
	}
}

// Close implements adapters.Adapter interface.
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping implements adapters.Adapter interface.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// GetDatabaseType implements adapters.Adapter interface.
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion implements adapters.Adapter interface.
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return fmt.Sprintf("%s (%s)", a.getServerVersionName(), a.serverVersionStr), nil
}

// Dialect implements adapters.Adapter interface.
func (a *Adapter) Dialect() dialect.Dialect {
	return dialect.MSSQL
}

// DB implements adapters.Adapter interface.
func (a *Adapter) DB() *sqlx.DB {
	return a.db
}

// IsRetryable reports deadlock victims as retryable.
func (a *Adapter) IsRetryable(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == errDeadlockVictim
	}
	return false
}
