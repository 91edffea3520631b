package authorizer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blockloop/scan/v2"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"metamakers.org/rfid-access-mqtt/config"
)

var ErrUnknownDriver = errors.New("unknown database driver")

const (
	StatusInactive = 0
	StatusActive   = 1
)

// Registration is a row of rfid_reg.
type Registration struct {
	RFIDData   string `db:"rfid_data"`
	RFIDStatus int    `db:"rfid_status"`
}

// LogEntry is a row of rfid_logs.
type LogEntry struct {
	TimeLog    time.Time `db:"time_log"`
	RFIDData   string    `db:"rfid_data"`
	RFIDStatus int       `db:"rfid_status"`
}

type Store interface {
	Lookup(ctx context.Context, uid string) (Registration, bool, error)
	CountRegistrations(ctx context.Context) (int, error)
	Register(ctx context.Context, registration Registration) error
	SetStatus(ctx context.Context, uid string, status int) error
	AppendLog(ctx context.Context, entry LogEntry) error
	RecentLogs(ctx context.Context, limit int) ([]LogEntry, error)
	Registrations(ctx context.Context) ([]Registration, error)
}

var migrations = map[string][]string{
	config.DriverMySQL: {
		`create table if not exists rfid_reg (
			rfid_data varchar(64) not null primary key,
			rfid_status tinyint not null default 0
		)`,
		`create table if not exists rfid_logs (
			id bigint not null auto_increment primary key,
			time_log datetime(6) not null,
			rfid_data varchar(64) not null,
			rfid_status tinyint not null
		)`,
	},
	config.DriverSQLite: {
		`create table if not exists rfid_reg (
			rfid_data text not null primary key,
			rfid_status integer not null default 0
		)`,
		`create table if not exists rfid_logs (
			id integer primary key autoincrement,
			time_log datetime not null,
			rfid_data text not null,
			rfid_status integer not null
		)`,
	},
}

type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenStore opens the database named by cfg. MySQL DSNs get parseTime set so
// time_log scans into a time.Time.
func OpenStore(cfg config.DatabaseConfig) (*SQLStore, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case config.DriverMySQL:
		mysqlConfig, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		mysqlConfig.ParseTime = true
		mysqlConfig.Loc = time.UTC
		dsn = mysqlConfig.FormatDSN()
	case config.DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	return &SQLStore{db: db, driver: cfg.Driver}, nil
}

func (store *SQLStore) Migrate(ctx context.Context) error {
	for _, statement := range migrations[store.driver] {
		if _, err := store.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

func (store *SQLStore) Ping(ctx context.Context) error {
	return store.db.PingContext(ctx)
}

func (store *SQLStore) Close() error {
	return store.db.Close()
}

func (store *SQLStore) Lookup(ctx context.Context, uid string) (Registration, bool, error) {
	rows, err := store.db.QueryContext(ctx,
		"select rfid_data, rfid_status from rfid_reg where rfid_data = ?;", uid)
	if err != nil {
		return Registration{}, false, fmt.Errorf("looking up %s: %w", uid, err)
	}
	defer rows.Close()

	var registration Registration
	if err := scan.Row(&registration, rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, false, nil
		}
		return Registration{}, false, fmt.Errorf("looking up %s: %w", uid, err)
	}
	return registration, true, nil
}

func (store *SQLStore) CountRegistrations(ctx context.Context) (int, error) {
	var count int
	if err := store.db.QueryRowContext(ctx, "select count(*) from rfid_reg;").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting registrations: %w", err)
	}
	return count, nil
}

func (store *SQLStore) Register(ctx context.Context, registration Registration) error {
	if _, err := store.db.ExecContext(ctx,
		"insert into rfid_reg (rfid_data, rfid_status) values (?, ?);",
		registration.RFIDData, registration.RFIDStatus); err != nil {
		return fmt.Errorf("registering %s: %w", registration.RFIDData, err)
	}
	return nil
}

func (store *SQLStore) SetStatus(ctx context.Context, uid string, status int) error {
	if _, err := store.db.ExecContext(ctx,
		"update rfid_reg set rfid_status = ? where rfid_data = ?;", status, uid); err != nil {
		return fmt.Errorf("updating %s: %w", uid, err)
	}
	return nil
}

func (store *SQLStore) AppendLog(ctx context.Context, entry LogEntry) error {
	if _, err := store.db.ExecContext(ctx,
		"insert into rfid_logs (time_log, rfid_data, rfid_status) values (?, ?, ?);",
		entry.TimeLog.UTC(), entry.RFIDData, entry.RFIDStatus); err != nil {
		return fmt.Errorf("logging scan of %s: %w", entry.RFIDData, err)
	}
	return nil
}

// RecentLogs returns up to limit entries, newest first.
func (store *SQLStore) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := store.db.QueryContext(ctx,
		"select time_log, rfid_data, rfid_status from rfid_logs order by time_log desc, id desc limit ?;", limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	if err := scan.Rows(&entries, rows); err != nil {
		return nil, fmt.Errorf("scanning logs: %w", err)
	}
	return entries, nil
}

// Registrations returns every registered card ordered by uid.
func (store *SQLStore) Registrations(ctx context.Context) ([]Registration, error) {
	rows, err := store.db.QueryContext(ctx,
		"select rfid_data, rfid_status from rfid_reg order by rfid_data;")
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	registrations := make([]Registration, 0)
	if err := scan.Rows(&registrations, rows); err != nil {
		return nil, fmt.Errorf("scanning registrations: %w", err)
	}
	return registrations, nil
}
