package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword produces the bcrypt hash stored in OPERATOR_PASSWORD_HASH.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
