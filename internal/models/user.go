package models

import "time"

// User represents an account holder of the application. The username is the
// primary key.
type User struct {
	ID           string    `json:"id" db:"id"`
	PasswordHash string    `json:"-" db:"contraseña"` // Not serialized
	Email        string    `json:"email" db:"email"`
	CreatedAt    time.Time `json:"created_at" db:"creado_en"`
}
