package models

import "time"

// TwoFactorSession is a trusted-device token minted after a successful
// second-factor verification. While a non-expired row exists for a user and
// token pair, the login flow skips the 2FA prompt. Expired rows are swept by
// the cleanup-sessions command.
type TwoFactorSession struct {
	// ID is the unique identifier for the session row.
	ID uint64 `gorm:"primaryKey"`
	// UserID is the user this trusted device belongs to.
	UserID string `gorm:"size:36;not null;index"`
	// Token is the 64 character hex device token.
	Token string `gorm:"size:64;not null;uniqueIndex"`
	// ExpiresAt is the moment the token stops being honored.
	ExpiresAt time.Time `gorm:"not null;index"`
	// UserAgent is the device's user agent string at verification time.
	UserAgent string `gorm:"size:512"`
	// IPAddress is the device's address at verification time.
	IPAddress string `gorm:"size:64"`
	// CreatedAt is the timestamp when the session was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the TwoFactorSession model.
func (TwoFactorSession) TableName() string {
	return "two_factor_sessions"
}
