package auth

import "fmt"

var (
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrInvalidSigningMethod = fmt.Errorf("invalid signing method")
	ErrPasswordLength       = fmt.Errorf("password must be between 3 and 20 characters")
	ErrPasswordWeak         = fmt.Errorf("password must contain lowercase, uppercase, digit and symbol and be at least 8 characters")
)
