package database

import (
	"context"
	"fmt"

	"github.com/Raytar/officehours/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database implements the storage capabilities the queue relies on: the
// identity directory, the ticket ledger and the availability registry.
type Database struct {
	conn *gorm.DB
	log  *logrus.Logger
}

func OpenDatabase(path string, logger *logrus.Logger) (*Database, error) {
	lgr, err := Zap()
	if err != nil {
		return nil, fmt.Errorf("failed to create storage logger: %w", err)
	}
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         NewGORMLogger(lgr),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite has a single writer; one pooled connection keeps transactions
	// from tripping over concurrent readers in shared-cache mode.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.AutoMigrate(
		&models.Student{},
		&models.Staff{},
		&models.Ticket{},
		&models.Availability{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Debugln("Opened database:", path)
	return &Database{conn, logger}, nil
}

// Transaction runs fn inside a single storage transaction. The *Database
// passed to fn is bound to the transaction; if fn returns an error everything
// it did is rolled back.
func (db *Database) Transaction(ctx context.Context, fn func(tx *Database) error) error {
	err := db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Database{conn: tx, log: db.log})
	})
	return storageError("transaction", err)
}

func (db *Database) Close() error {
	conn, err := db.conn.DB()
	if err != nil {
		return err
	}
	return conn.Close()
}
