package systemlock

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost factor used for PIN hashing. The PIN space is
// tiny, so the work factor is the whole defense against offline guessing.
const HashCost = 12

var pinFormat = regexp.MustCompile(`^\d{4,6}$`)

// ValidPinFormat reports whether pin is 4 to 6 ASCII digits.
func ValidPinFormat(pin string) bool {
	return pinFormat.MatchString(pin)
}

// HashPin generates a bcrypt hash from a plaintext PIN.
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// CheckPin compares a plaintext PIN with a bcrypt hash.
func CheckPin(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}
