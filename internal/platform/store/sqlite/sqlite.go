// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/store/gormdb"
)

// DBFile is the database file name inside data_dir.
const DBFile = "portal.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements store.Store using SQLite via GORM.
type Driver struct {
	*gormdb.DB
	dataDir string
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	return &Driver{dataDir: cfg.DataDir}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database file and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(d.dataDir, DBFile)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.DB = gormdb.New(db)
	return d.DB.Migrate(ctx)
}

var _ store.Store = (*Driver)(nil)
