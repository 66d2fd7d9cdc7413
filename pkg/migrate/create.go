package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/shopcart-backend/pkg/config"
)

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

	dialectDirs = []string{config.DBDriverPostgres, config.DBDriverSQLite}
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes one goose SQL file per dialect sharing a version:
//
//	<dir>/postgres/<YYYYMMDDHHMMSS>_<name>.sql
//	<dir>/sqlite/<YYYYMMDDHHMMSS>_<name>.sql
func CreateSQLMigration(dir string, name string, now time.Time) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), safe)

	paths := make([]string, 0, len(dialectDirs))
	for _, dialect := range dialectDirs {
		target := filepath.Join(dir, dialect)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", target, err)
		}
		fullpath := filepath.Join(target, filename)
		if _, err := os.Stat(fullpath); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", fullpath)
		}
		paths = append(paths, fullpath)
	}

	body := fmt.Sprintf(migrationTemplate, safe)
	for _, fullpath := range paths {
		if err := os.WriteFile(fullpath, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write migration %q: %w", fullpath, err)
		}
	}
	return paths, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}
