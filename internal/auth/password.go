package auth

import (
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 3
	maxPasswordLength = 20
)

// passwordPattern needs look-ahead, which regexp (RE2) does not support.
var passwordPattern = regexp2.MustCompile(`^(?=.*[a-z])(?=.*[A-Z])(?=.*[\W_])(?=.*\d).{8,}$`, regexp2.ECMAScript)

// ValidatePassword applies both the length gate and the strength pattern,
// so the effective accepted length is 8 to 20 characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return ErrPasswordLength
	}

	ok, err := passwordPattern.MatchString(password)
	if err != nil || !ok {
		return ErrPasswordWeak
	}

	return nil
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *BcryptHasher) Compare(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
