package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	driverName     = "postgres"
	maxRetries     = 5
	connectTimeout = 5 * time.Second

	// invalid_catalog_name: the database named in the DSN does not exist.
	errCodeUnknownDatabase = "3D000"
	// serialization_failure and deadlock_detected are safe to retry.
	errCodeSerialization = "40001"
	errCodeDeadlock      = "40P01"
)

// OpenDb opens a connection with the DB and makes sure it is reachable.
// With autoCreate, a missing database is created first.
func OpenDb(dsn string, autoCreate bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil && autoCreate && pqErrorCode(err) == errCodeUnknownDatabase {
		log.Info("postgres database does not exist, creating it...")
		if err = createDatabase(ctx, dsn); err == nil {
			err = db.PingContext(ctx)
		}
	}
	if err != nil {
		// nolint:all
		db.Close()
		return nil, fmt.Errorf("unable to establish connection with db: %v", err)
	}

	return db, nil
}

// createDatabase connects to the server's default database and creates the
// one named in the URL-formatted dsn.
func createDatabase(ctx context.Context, dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("cannot auto-create database unless the DSN uses URL format")
	}

	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	dbName := strings.TrimPrefix(parsedURL.Path, "/")
	if dbName == "" {
		return fmt.Errorf("cannot auto-create when database name is empty")
	}
	parsedURL.Path = ""

	rootDB, err := sql.Open(driverName, parsedURL.String())
	if err != nil {
		return err
	}
	// nolint:all
	defer rootDB.Close()

	query := "CREATE DATABASE " + pq.QuoteIdentifier(dbName)
	log.Infof("executing query '%s'", query)
	_, err = rootDB.ExecContext(ctx, query)
	return err
}

func execTx(ctx context.Context, db *sql.DB, txBody func(*sql.Tx) error) error {
	var lastErr error
	for range maxRetries {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		err = txBody(tx)
		if err == nil {
			err = tx.Commit()
		} else {
			//nolint:all
			tx.Rollback()
		}
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}

	return lastErr
}

func isRetryable(err error) bool {
	code := pqErrorCode(err)
	return code == errCodeSerialization || code == errCodeDeadlock
}

func pqErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}
