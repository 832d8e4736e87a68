package console

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is the single operator account of the console.
type Credentials struct {
	user     User
	password []byte
	hash     []byte
}

// NewCredentials creates credentials. A non-empty passwordHash (bcrypt)
// takes precedence over password.
func NewCredentials(username, password, passwordHash, email string) *Credentials {
	c := &Credentials{user: User{Username: username, Email: email}}
	if passwordHash != "" {
		c.hash = []byte(passwordHash)
	} else {
		c.password = []byte(password)
	}
	return c
}

// User returns the identity of the account
func (c *Credentials) User() User {
	return c.user
}

// Verify checks a login attempt. Username and password are both always compared.
func (c *Credentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.user.Username)) == 1

	var passOK bool
	if c.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	} else {
		passOK = len(c.password) > 0 && subtle.ConstantTimeCompare([]byte(password), c.password) == 1
	}
	return userOK && passOK
}

// HashPassword returns a bcrypt hash suitable for auth.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
