// Package models provides data models for the wallet portfolio store.
package models

import (
	"time"
)

// User is a logical owner of zero or more wallets
type User struct {
	UserID string `json:"userId" db:"user_id"`
}

// UserWallet associates a user with a wallet address (composite key user_id + wallet_address)
type UserWallet struct {
	UserID        string    `json:"userId" db:"user_id"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// UserSpamFilter is the set of token names a user has marked as spam
type UserSpamFilter struct {
	UserID     string    `json:"userId" db:"user_id"`
	SpamTokens []string  `json:"spamTokens" db:"spam_tokens"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
