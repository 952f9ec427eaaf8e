package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotANumber      = errors.New("table selection is not a number")
	ErrTableOutOfRange = errors.New("table number out of range")
)

// SelectTable maps a 1-based number typed by the user onto tables.
func SelectTable(input string, tables []string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotANumber, input)
	}
	if n < 1 || n > len(tables) {
		return "", fmt.Errorf("%w: %d not in 1..%d", ErrTableOutOfRange, n, len(tables))
	}
	return tables[n-1], nil
}
