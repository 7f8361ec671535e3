package domain

import "time"

type User struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"type:varchar(191);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"-" gorm:"autoCreateTime"`
}

// Principal is the resolved identity behind a bearer token.
type Principal struct {
	UserID   uint64
	Username string
}
