// Package repository defines the MySQL-backed credential store.  Sentinel
// errors let the service layer tell "absent" apart from "failed" without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or a consuming delete matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose e-mail is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrRoleNotFound is returned when a role name has no row in `roles`.
var ErrRoleNotFound = errors.New("role not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
