package request

// RegisterRequest is the request body for self-registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserRequest is the request body for an admin creating an account
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserRequest is the request body for editing an account. Omitted
// fields are unchanged.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	Role      *string `json:"role,omitempty"`
	IsBlocked *bool   `json:"isBlocked,omitempty"`
}

// BlockUserRequest is the request body for blocking or unblocking an account
type BlockUserRequest struct {
	IsBlocked *bool `json:"isBlocked"`
}
