package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountBlocked  = errors.New("account is blocked")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidRole     = errors.New("invalid role")

	// Shop errors
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
	ErrInsufficientFunds = errors.New("not enough bananas")
)
