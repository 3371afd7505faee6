package domain

import "github.com/supabase-community/supabase-go"

type SupabaseClient interface {
	Initialize() error
	ValidateToken(token string) (*SupabaseUser, error)

	// DB returns the anon-key client, suitable for public tables.
	DB() *supabase.Client
	// Admin returns the service-role client used by server-side writers
	// (the billing webhook). It bypasses row level security.
	Admin() (*supabase.Client, error)
	// GetClientWithToken returns a client acting as the token's user so RLS applies.
	GetClientWithToken(token string) (*supabase.Client, error)
}
