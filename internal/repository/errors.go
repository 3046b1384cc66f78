// Package repository holds the MySQL implementations of the persistence
// contracts: seats, the booking ledger, entry logs, library settings, users
// and refresh tokens.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists and ErrRollExists are returned by UserRepo.Create when the
// unique index on the matching column rejects the insert.
var (
	ErrEmailExists = errors.New("email already exists")
	ErrRollExists  = errors.New("roll number already exists")
)

// isDuplicate reports a MySQL unique key violation (error 1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isLockConflict reports an InnoDB deadlock (1213) or lock wait timeout
// (1205).  Either one rolled the statement or transaction back.
func isLockConflict(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205)
}
