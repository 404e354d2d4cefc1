package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	jerror "jalert/error"
	jlogger "jalert/logger"
	"jalert/service/model"

	"github.com/lib/pq"
)

const (
	DefaultAlertTable = "alerts"
	postgresTimeout   = 10 * time.Second
)

type postgresExporter struct {
	*baseExporter
	db          *sql.DB
	insertQuery string
	timeout     time.Duration
}

// OpenPostgres opens and pings the database behind dsn.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresExporter inserts every alert as a row of table, creating the
// table if needed. The exporter owns db and closes it on Stop.
func NewPostgresExporter(name string, maxSize uint, db *sql.DB, table string, timeout time.Duration, logger jlogger.JalertLogger) (Exporter, error) {
	if table == "" {
		table = DefaultAlertTable
	}
	if timeout <= 0 {
		timeout = postgresTimeout
	}
	quoted := pq.QuoteIdentifier(table)
	newPE := &postgresExporter{
		db:          db,
		insertQuery: fmt.Sprintf(`INSERT INTO %s (occurred_at, identifier, message, cursor) VALUES ($1, $2, $3, $4)`, quoted),
		timeout:     timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	identifier TEXT NOT NULL,
	message TEXT NOT NULL,
	cursor TEXT
)`, quoted))
	if err != nil {
		return nil, jerror.JalertPipelineError{
			Code:   jerror.ErrExporterCreate,
			Origin: err,
			Msg:    fmt.Sprintf("error while construct new exporter[%s]", name),
		}
	}
	newPE.baseExporter = newBaseExporter(name, maxSize, logger, newPE.insert, db.Close)
	return newPE, nil
}

func (pe *postgresExporter) insert(alert *model.Alert) error {
	occurredAt := alert.Time
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	var cursor sql.NullString
	if alert.Cursor != "" {
		cursor = sql.NullString{String: alert.Cursor, Valid: true}
	}
	ctx, cancel := context.WithTimeout(context.Background(), pe.timeout)
	defer cancel()
	_, err := pe.db.ExecContext(ctx, pe.insertQuery, occurredAt, alert.Identifier, alert.Message, cursor)
	return err
}
