// Package auth provides user accounts, password hashing, and JWT access
// tokens for the Smart Pot API.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Access tokens are HS256 JWTs validated by signature only; there is no
// server-side session store.
package auth
