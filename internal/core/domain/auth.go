package domain

// AuthResponse is what the authentication endpoint returned. Only transport
// failures are errors; every HTTP status arrives here with its raw body.
type AuthResponse struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// Success reports a 2xx status.
func (r *AuthResponse) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// String masks the password.
func (c Credentials) String() string {
	return "Credentials{Email:" + c.Email + ", Password:" + MaskCredential(c.Password) + "}"
}
