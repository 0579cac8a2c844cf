package models

import "time"

type StudentProfile struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	FullName     *string   `json:"full_name"`
	ProfileImage *string   `json:"profile_image"`
	Phone        *string   `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
