package token

import (
	"context"
	"fmt"
	"os"

	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarReadonlyScope is the only scope the Google calendar source needs
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// TokenManager hands out valid OAuth tokens, refreshing them when they expire
type TokenManager struct {
	source oauth2.TokenSource
	logger zerolog.Logger
}

// NewTokenManager creates a new TokenManager caching tokens from src until they expire
func NewTokenManager(src oauth2.TokenSource) *TokenManager {
	return &TokenManager{
		source: oauth2.ReuseTokenSource(nil, src),
		logger: logging.GetLogger("token"),
	}
}

// NewServiceAccountManager builds a TokenManager from a Google service account key file
func NewServiceAccountManager(ctx context.Context, credentialsFile string, scopes ...string) (*TokenManager, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if len(scopes) == 0 {
		scopes = []string{CalendarReadonlyScope}
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	tm := NewTokenManager(conf.TokenSource(ctx))
	tm.logger.Info().Str("client_email", conf.Email).Msg("Service account credentials loaded")
	return tm, nil
}

// GetValidToken retrieves a valid token, refreshing it if necessary
func (tm *TokenManager) GetValidToken(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, err := tm.source.Token()
	if err != nil {
		tm.logger.Error().Err(err).Msg("Failed to obtain token")
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if !token.Valid() {
		return nil, fmt.Errorf("token source returned an invalid token")
	}

	tm.logger.Debug().Time("expiry", token.Expiry).Msg("Valid token obtained")
	return token, nil
}

// TokenSource exposes the refreshing source for API clients
func (tm *TokenManager) TokenSource() oauth2.TokenSource {
	return tm.source
}
