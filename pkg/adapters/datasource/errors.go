package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
)

var unreachableMessages = []string{
	"database is closed",
	"connection refused",
	"connection reset",
	"no such host",
	"bad connection",
	"could not set lock",
}

// WrapConnError marks connectivity failures with apperrors.ErrBackendUnreachable
// so callers can distinguish them from query errors. Other errors pass through.
func WrapConnError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConnError(err) {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrBackendUnreachable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsConnError reports whether err is a connectivity failure rather than a
// problem with the statement itself.
func IsConnError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, apperrors.ErrBackendUnreachable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range unreachableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// TableNotFound builds the error returned by Describe for a missing table.
func TableNotFound(table string) error {
	return fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
}
