package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotKey returns the immutable key for a store file published at
// createdAt, e.g. customers/sqlite3/date=2026-02-19/customers-20260219T090500Z.db.
func BuildSnapshotKey(dataset, driver string, createdAt time.Time) (string, error) {
	ext, err := storeExtension(driver)
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}

	ts := createdAt.UTC()
	return path.Join(
		dataset,
		driver,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.%s", dataset, ts.Format("20060102T150405Z"), ext),
	), nil
}

// BuildLatestKey returns the mutable key that always points at the newest
// published store file for a dataset and driver.
func BuildLatestKey(dataset, driver string) (string, error) {
	ext, err := storeExtension(driver)
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	return path.Join(dataset, driver, "latest."+ext), nil
}

func storeExtension(driver string) (string, error) {
	switch strings.TrimSpace(driver) {
	case "sqlite3":
		return "db", nil
	case "duckdb":
		return "duckdb", nil
	default:
		return "", fmt.Errorf("invalid store driver: %q", driver)
	}
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
