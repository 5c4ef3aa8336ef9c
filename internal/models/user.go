package models

// User is the read model returned by the user directory.
type User struct {
	ID          string `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	DisplayName string `db:"display_name" json:"display_name,omitempty"`
}
