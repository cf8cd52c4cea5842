package connection

import (
	"context"
	"fmt"
	"io"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

// LoginPath is the authentication endpoint relative to the backend URL.
const LoginPath = "/auth/login/"

// maxBodySize caps how much of a response is kept.
const maxBodySize = 1 << 20

// AuthClient talks to the authentication endpoint.
type AuthClient struct {
	http *HTTPClient
}

// NewAuthClient creates an AuthClient on top of c.
func NewAuthClient(c *HTTPClient) *AuthClient {
	return &AuthClient{http: c}
}

// Authenticate posts the credentials and returns the status and raw body.
// Every HTTP status is a response; only transport failures are errors.
func (a *AuthClient) Authenticate(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	resp, err := a.http.Post(ctx, LoginPath, domain.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", LoginPath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.L(ctx).Debug("http response", "status", resp.StatusCode, "bytes", len(body))
	return &domain.AuthResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		RequestID:  logger.RequestIDFromContext(ctx),
	}, nil
}
