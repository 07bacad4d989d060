package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes an account password with bcrypt before it is
// stored on the user row.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword verifies a login attempt against the stored bcrypt
// hash.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
