package models

import "time"

type Settings struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	NotifyOnFailure bool      `db:"notify_on_failure" json:"notify_on_failure"`
	Timezone        string    `db:"timezone" json:"timezone"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
