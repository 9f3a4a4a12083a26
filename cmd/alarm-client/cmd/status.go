package cmd

import (
	"errors"
	"fmt"
	"strconv"
)

var errNegativeStatus = errors.New("status must not be negative")

// parseStatus reads the numeric sensor status argument.
func parseStatus(raw string) (int, error) {
	status, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse status %q: %w", raw, err)
	}

	if status < 0 {
		return 0, fmt.Errorf("parse status %q: %w", raw, errNegativeStatus)
	}

	return status, nil
}
