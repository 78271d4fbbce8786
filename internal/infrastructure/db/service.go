package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/internal/core/ports"
	badgerdb "github.com/arkade-os/depositd/internal/infrastructure/db/badger"
	pgdb "github.com/arkade-os/depositd/internal/infrastructure/db/postgres"
	sqlitedb "github.com/arkade-os/depositd/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

var depositIndexStoreTypes = map[string]func(...interface{}) (domain.DepositIndexRepository, error){
	"badger":   badgerdb.NewDepositIndexRepository,
	"sqlite":   sqlitedb.NewDepositIndexRepository,
	"postgres": pgdb.NewDepositIndexRepository,
}

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	DataStoreType string

	// badger: base dir and badger.Logger, sqlite: base dir,
	// postgres: dsn and auto-create flag.
	DataStoreConfig []interface{}
}

type service struct {
	depositIndexStore domain.DepositIndexRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	depositIndexStoreFactory, ok := depositIndexStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var depositIndexStore domain.DepositIndexRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		depositIndexStore, err = depositIndexStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open deposit index store: %s", err)
		}
	case "postgres":
		if len(config.DataStoreConfig) != 2 {
			return nil, fmt.Errorf("invalid data store config for postgres")
		}
		dsn, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}
		autoCreate, ok := config.DataStoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}
		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}
		if err := runMigrations(pgMigration, "postgres/migration", "postgres", pgDriver); err != nil {
			return nil, err
		}

		depositIndexStore, err = depositIndexStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open deposit index store: %s", err)
		}
	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}
		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		db, err := openSqlite(baseDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}
		if err := runMigrations(migrations, "sqlite/migration", "depositdb", driver); err != nil {
			return nil, err
		}

		depositIndexStore, err = depositIndexStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open deposit index store: %s", err)
		}
	}

	return &service{depositIndexStore}, nil
}

func (s *service) DepositIndexes() domain.DepositIndexRepository {
	return s.depositIndexStore
}

func (s *service) Close() {
	s.depositIndexStore.Close()
}

func openSqlite(baseDir string) (*sql.DB, error) {
	dbFile := filepath.Join(baseDir, sqliteDbFile)
	db, err := sqlitedb.OpenDb(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %s", err)
	}
	return db, nil
}

func runMigrations(fs embed.FS, dir, dbName string, driver database.Driver) error {
	source, err := iofs.New(fs, dir)
	if err != nil {
		return fmt.Errorf("failed to embed migrations: %s", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %s", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %s", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Debugf("%s schema at version %d (dirty: %t)", dbName, version, dirty)
	}
	return nil
}
