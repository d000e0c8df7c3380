// Package repository holds the MySQL-backed stores for users, refresh
// tokens and bookings, plus an in-memory booking store used by tests.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrEmailExists is returned by UserRepo.Create when the email is taken.
	ErrEmailExists = errors.New("email already exists")

	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenInvalid means a refresh token is unknown, expired or revoked.
	ErrTokenInvalid = errors.New("refresh token invalid")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
