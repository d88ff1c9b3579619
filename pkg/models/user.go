package models

import (
	"fmt"
	"strconv"
)

// User is a chat participant as recorded in the user directory.
type User struct {
	ID        int64  // Platform user id
	FirstName string // Given name
	LastName  string // Family name, may be empty
	Username  string // Handle without the leading @, may be empty
}

// Key returns the string form of the id used as the key in the flat-file stores.
func (u User) Key() string {
	return strconv.FormatInt(u.ID, 10)
}

// DirectoryLine renders the user as one line of the user directory.
func (u User) DirectoryLine() string {
	return fmt.Sprintf("UserID: %d | First: %s | Last: %s | Username: @%s", u.ID, u.FirstName, u.LastName, u.Username)
}

// AdminSet is the fixed allow-list of administrator user ids.
type AdminSet map[int64]struct{}

// Contains reports whether id is an administrator.
func (a AdminSet) Contains(id int64) bool {
	_, ok := a[id]
	return ok
}
