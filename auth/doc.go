// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides admin key and IP hashing utilities.

# Admin Keys

Admin keys use HMAC-SHA256 over a scope to create deterministic, verifiable
keys:

	adminKey := auth.GenerateAdminKey(auth.AdminScope, salt)
	err := auth.ValidateAdminKey(auth.AdminScope, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same scope and salt always produce the same key. This allows validation
without storing the key anywhere. Rotating ADMIN_KEY_SALT revokes every
issued key.

Admin keys gate account opening and proposal management. Clients send them in
the X-Admin-Key header. Print the key for the configured salt with:

	ticket-vote -print-admin-key

# IP Hashing

Request logs carry a hashed client IP instead of the address:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
