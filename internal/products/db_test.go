package product

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/shopcart-backend/pkg/config"
	"github.com/angelmondragon/shopcart-backend/pkg/db"
	"github.com/angelmondragon/shopcart-backend/pkg/migrate"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "products.db") + "?_busy_timeout=5000&_foreign_keys=on"
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: config.DBDriverSQLite}, nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := migrate.Run(context.Background(), sqlDB, config.DBDriverSQLite, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client.DB()
}
