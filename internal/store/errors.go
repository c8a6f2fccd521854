package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrEmailExists is returned when an insert or update would violate the
	// unique index on users.email.
	ErrEmailExists = errors.New("email already exists")

	// ErrAdminProtected is returned when a delete targets an account holding
	// the administrator role. Admin accounts are never deletable.
	ErrAdminProtected = errors.New("admin accounts cannot be deleted")
)
