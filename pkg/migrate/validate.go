package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// ValidateDir validates an on-disk migration tree.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks filenames and goose markers for every dialect directory and
// that all dialects ship the same set of versions.
func ValidateFS(fsys fs.FS) error {
	versionsByDialect := map[string][]string{}

	for _, dialect := range dialectDirs {
		versions, err := validateDialect(fsys, dialect)
		if err != nil {
			return err
		}
		versionsByDialect[dialect] = versions
	}

	reference := versionsByDialect[dialectDirs[0]]
	for _, dialect := range dialectDirs[1:] {
		if strings.Join(reference, ",") != strings.Join(versionsByDialect[dialect], ",") {
			return fmt.Errorf("migration versions differ between %s %v and %s %v",
				dialectDirs[0], reference, dialect, versionsByDialect[dialect])
		}
	}
	return nil
}

func validateDialect(fsys fs.FS, dialect string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dialect)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dialect, err)
	}

	seen := map[string]string{} // version -> filename
	versions := []string{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %s/%s (expected YYYYMMDDHHMMSS_name.sql)", dialect, name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name
		versions = append(versions, version)

		b, err := fs.ReadFile(fsys, path.Join(dialect, name))
		if err != nil {
			return nil, fmt.Errorf("read file %s/%s: %w", dialect, name, err)
		}

		txt := string(b)
		if !strings.Contains(txt, "-- +goose Up") {
			return nil, fmt.Errorf("migration %s/%s missing \"-- +goose Up\"", dialect, name)
		}
		if !strings.Contains(txt, "-- +goose Down") {
			return nil, fmt.Errorf("migration %s/%s missing \"-- +goose Down\"", dialect, name)
		}
	}

	sort.Strings(versions)
	return versions, nil
}
