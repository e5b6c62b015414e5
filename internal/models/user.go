package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает гражданина, который подаёт обращения.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FullName       *string   `db:"full_name" json:"full_name"`
	PhoneNumber    *string   `db:"phone_number" json:"phone_number"`
	Address        *string   `db:"address" json:"address"`
	UserType       *string   `db:"user_type" json:"user_type"`
	UserTypeCustom *string   `db:"user_type_custom" json:"user_type_custom"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileCompleted считается выполненным, если указано полное имя.
func (u *User) ProfileCompleted() bool {
	return u.FullName != nil && *u.FullName != ""
}

// ProfileFields - изменяемая часть профиля пользователя.
type ProfileFields struct {
	FullName       string
	PhoneNumber    string
	Address        string
	UserType       string
	UserTypeCustom string
}

// Admin описывает учётную запись администратора.
type Admin struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
