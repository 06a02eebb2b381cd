package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the supplied password. The salt is
// generated per call and embedded in the digest, so hashing the same password
// twice yields different digests.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
// A malformed or truncated digest is reported as a mismatch, not an error.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
