package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
    gorm.Model
    FullName       string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
    Email          string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
    PasswordHash   string    `gorm:"column:password_hash;size:255;not null" json:"-"`
    Refresh        string    `gorm:"column:refresh_token;size:255" json:"-"`
    RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
}

type PasswordResetToken struct {
    ID        uint      `gorm:"primaryKey"`
    UserID    uint      `gorm:"not null"`
    Token     string    `gorm:"not null"`
    ExpiresAt time.Time `gorm:"not null"`
}
