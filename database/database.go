// Package database records delivery history: one row per terminal outcome of
// a download request, queried by the /history command.
package database

import (
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DeliveryStatus is the terminal outcome of one download request.
type DeliveryStatus string

const (
	StatusDelivered  DeliveryStatus = "delivered"
	StatusOversize   DeliveryStatus = "oversize"
	StatusFailed     DeliveryStatus = "failed"
	StatusSendFailed DeliveryStatus = "send_failed"
)

type Delivery struct {
	ID        string `gorm:"primaryKey"`
	ChatID    int64  `gorm:"index"`
	URL       string
	Title     string
	Tier      string
	SizeBytes int64
	Status    DeliveryStatus
	Error     string
	CreatedAt time.Time
}

func (Delivery) TableName() string {
	return "delivery"
}

type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(path string, logger *zap.Logger) (*Database, error) {
	gormLogger := zapgorm2.New(logger.Named("gorm"))
	gormLogger.SetAsDefault()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{
		db:  db,
		log: logger.Sugar().Named("database"),
	}, nil
}

// Migrate brings the schema up to date from the embedded migrations.
func (d *Database) Migrate() error {
	d.log.Info("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch err {
	case nil:
		d.log.Info("database migration complete")
	case migrate.ErrNoChange:
		d.log.Info("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordDelivery inserts one terminal outcome. Callers treat failures as
// log-only: history is never allowed to break a delivery.
func (d *Database) RecordDelivery(delivery *Delivery) error {
	return d.db.Create(delivery).Error
}

// RecentDeliveries returns a chat's newest records, most recent first.
func (d *Database) RecentDeliveries(chatID int64, limit int) ([]Delivery, error) {
	var deliveries []Delivery
	err := d.db.
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}
