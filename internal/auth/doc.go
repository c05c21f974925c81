// Package auth issues and verifies the bearer tokens that guard the bridge
// control endpoints.
//
// Tokens are HS256 JWTs signed with api.auth.jwt_secret. They carry a subject
// naming the operator or tool that holds them, and an expiry. There are no
// roles: a valid token may connect and disconnect the bridge.
package auth
