package services

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSourceUnavailable marks failures to reach the CRM database, as opposed to query errors.
var ErrSourceUnavailable = errors.New("client source unavailable")

// IsUnavailable reports whether err means the database could not be reached, across vendors.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgConnErr *pgconn.ConnectError
	if errors.As(err, &pgConnErr) {
		return true
	}

	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var netErr *net.OpError
	return errors.As(err, &netErr)
}
