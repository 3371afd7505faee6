package supabase

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"storytime-api/internal/domain"
)

// authenticatedAudience is the aud claim Supabase puts on signed-in user tokens.
const authenticatedAudience = "authenticated"

// SupabaseClient implements the domain.SupabaseClient interface
type SupabaseClient struct {
	client *supabase.Client
	config domain.Config
	logger domain.Logger

	adminOnce sync.Once
	admin     *supabase.Client
	adminErr  error
}

type accessTokenClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// NewSupabaseClient creates a new Supabase client instance
func NewSupabaseClient(config domain.Config, logger domain.Logger) *SupabaseClient {
	return &SupabaseClient{
		config: config,
		logger: logger,
	}
}

func (s *SupabaseClient) DB() *supabase.Client {
	return s.client
}

// Initialize establishes a connection to Supabase
func (s *SupabaseClient) Initialize() error {
	supabaseURL := s.config.GetSupabaseURL()
	supabaseKey := s.config.GetSupabaseKey()

	if supabaseURL == "" || supabaseKey == "" {
		return fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, supabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}

	s.client = client
	s.logger.Info("Supabase client initialized successfully", "url", supabaseURL)
	return nil
}

// Admin returns the service-role client, created on first use.
func (s *SupabaseClient) Admin() (*supabase.Client, error) {
	s.adminOnce.Do(func() {
		supabaseURL := s.config.GetSupabaseURL()
		serviceRoleKey := s.config.GetSupabaseServiceKey()
		if supabaseURL == "" || serviceRoleKey == "" {
			s.adminErr = fmt.Errorf("missing SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY: %w", domain.ErrSupabaseNotConfigured)
			return
		}
		s.admin, s.adminErr = supabase.NewClient(supabaseURL, serviceRoleKey, &supabase.ClientOptions{})
	})
	return s.admin, s.adminErr
}

// GetClientWithToken returns a client whose PostgREST requests carry the
// user's access token, so row level security applies to them.
func (s *SupabaseClient) GetClientWithToken(token string) (*supabase.Client, error) {
	if s.client == nil {
		return nil, domain.ErrSupabaseNotConfigured
	}
	if token == "" {
		return s.client, nil
	}

	client, err := supabase.NewClient(s.config.GetSupabaseURL(), s.config.GetSupabaseKey(), &supabase.ClientOptions{
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client with token: %w", err)
	}
	return client, nil
}

// ValidateToken validates a Supabase JWT token and returns user info.
// With SUPABASE_JWT_SECRET set the signature is checked locally; otherwise
// the token is sent to Supabase Auth.
func (s *SupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if secret := s.config.GetSupabaseJWTSecret(); secret != "" {
		return s.validateLocally(token, []byte(secret))
	}

	if s.client == nil {
		return nil, domain.ErrSupabaseNotConfigured
	}

	// Note: passing "Authorization" via Supabase client headers does not affect GoTrue requests.
	user, err := s.client.Auth.WithToken(token).GetUser()
	if err != nil {
		s.logger.Error("Failed to validate token with Supabase", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	return &domain.SupabaseUser{
		ID:           user.ID.String(),
		Email:        user.Email,
		UserMetadata: user.UserMetadata,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func (s *SupabaseClient) validateLocally(token string, secret []byte) (*domain.SupabaseUser, error) {
	claims := &accessTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(authenticatedAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.logger.Debug("Rejected access token", "error", err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", domain.ErrInvalidToken)
	}

	return &domain.SupabaseUser{
		ID:           userID.String(),
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}, nil
}
