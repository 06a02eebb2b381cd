package services

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether err came from a unique index, regardless
// of which database driver produced it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	// The sqlite driver only exposes violations through the message text.
	// Match the unique case specifically; NOT NULL and CHECK failures are
	// not conflicts.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed")
}
