package vault

import "time"

// TokenRecord is the persisted per-user grant: one row per uid per
// provider, holding only the long-lived refresh token. Access tokens are
// never stored.
type TokenRecord struct {
	UID          string
	Provider     string
	RefreshToken string
	CreatedAt    time.Time
}
