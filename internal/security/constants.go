package security

import "time"

// Security-related constants
const (
	// OAuth provider names (used as session keys)
	ProviderGoogle = "google"

	// Session keys for the signed-in profile
	SessionKeyUserID      = "userId"
	SessionKeyRoleID      = "roleId"
	SessionKeyEmail       = "email"
	SessionKeyDisplayName = "displayName"
	SessionKeyAccessToken = "access_token"

	// Cryptographic settings
	MinSessionSecretLength = 32
	AccessTokenByteLength  = 32

	// Session store settings
	MaxSessionSizeBytes = 1024 * 1024 // 1MB max size

	// Timeouts
	TokenCleanupInterval = time.Hour
	GoogleUserInfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// bcrypt cost used when hashing passwords. The default cost matches what the
// stored hashes were created with.
const passwordHashCost = 10
