package models

import "time"

// ConnectedPlatform is one authorized link between a user and a social
// platform account, identified by the publisher's profile id.
type ConnectedPlatform struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	ProfileID      string    `db:"profile_id" json:"profile_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	AccountHandle  string    `db:"account_handle" json:"account_handle"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string    `db:"access_token" json:"-"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
