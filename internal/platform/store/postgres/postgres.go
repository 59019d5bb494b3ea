// Package postgres implements a PostgreSQL persistence driver using GORM.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/gormdb"
)

func init() {
	store.Register("postgres", NewDriver)
}

// Driver implements store.Store using PostgreSQL via GORM.
type Driver struct {
	*gormdb.DB
	dsn string
}

// NewDriver creates a new postgres driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for postgres driver")
	}
	return &Driver{dsn: cfg.DSN}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "postgres"
}

// Init connects and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(d.dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	d.DB = gormdb.New(db)
	return d.DB.Migrate(ctx)
}

var _ store.Store = (*Driver)(nil)
