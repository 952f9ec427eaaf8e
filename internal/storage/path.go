package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BuildExportKey returns the object key of a text dump:
// <table>/date=YYYY-MM-DD/<session>.txt. Characters of the table name that
// are not safe in a key are replaced with '_'.
func BuildExportKey(tableName string, at time.Time, sessionID string) (string, error) {
	component := SanitizeComponent(tableName)
	if err := validatePathComponent(component, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}

	ts := at.UTC()
	return path.Join(
		component,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		sessionID+".txt",
	), nil
}

func SanitizeComponent(value string) string {
	value = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(value), "_")
	value = strings.TrimLeft(value, "._-")
	if value == "" {
		return "table"
	}
	return value
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
