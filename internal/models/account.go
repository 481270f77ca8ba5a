package models

import "time"

// Account is a dashboard user account as managed by admins.
type Account struct {
	ID           string        `json:"id"`
	FullName     string        `json:"fullname"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	Role         Role          `json:"role"`
	Address      string        `json:"address,omitempty"`
	Status       AccountStatus `json:"status"`
	AvatarURL    string        `json:"avatarUrl,omitempty"`
	LastActivity *time.Time    `json:"lastActivity,omitempty"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
}

// Activity is one entry of an account's activity log.
type Activity struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Profile is the signed-in user's own editable record.
type Profile struct {
	ID        string `json:"id"`
	FullName  string `json:"fullname"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
