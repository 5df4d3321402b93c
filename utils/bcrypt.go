package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password at the default cost. The result
// is what gets stored on the user row.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword returns nil when the plaintext matches the stored hash.
func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
