package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is an API principal belonging to one account.
type User struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Email     string `gorm:"not null;uniqueIndex" json:"email"`
	Name      string `json:"name"`

	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	Account Account `json:"-"`
}

func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
