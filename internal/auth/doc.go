// Package auth authenticates clinic staff.
//
// Two modes are supported:
//   - "none": single workstation, every request runs as user ID 0 and role checks are skipped
//   - "local": staff accounts with session cookies for the browser and bearer tokens for scripts
//
// Set AUTH_MODE to select the mode. Local mode also reads:
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Generated per process if empty (sessions survive, CSRF tokens do not)
//	AUTH_SESSION_LIFETIME=12h
//	AUTH_TOKEN_EXPIRY=720h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=false
//	AUTH_MAX_LOGIN_ATTEMPTS=5
//	AUTH_LOCKOUT_DURATION=30m
//
// Handlers read the caller with GetUserID and GetUserRole.
package auth
