package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/livepid/tracker/internal/util"
)

// ErrInsufficientFields is returned when a command carries fewer args than its format needs.
var ErrInsufficientFields = errors.New("insufficient fields")

// parseIntFromFloat parses a string that may be an integer ("32") or float ("32.00") into int64.
// Host bridges commonly serialize every number as a float.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// parseFlag accepts 0/1 as well as anything strconv.ParseBool does.
func parseFlag(s string) (bool, error) {
	if v, err := parseIntFromFloat(s); err == nil {
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return strconv.ParseBool(s)
}

func requireFields(data []string, n int) error {
	if len(data) < n {
		return fmt.Errorf("%w: got %d, want %d", ErrInsufficientFields, len(data), n)
	}
	return nil
}

// Parser provides pure []string -> core event conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

func clean(data []string) []string {
	return util.CleanArgs(data)
}
