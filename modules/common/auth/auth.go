package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/supabase-community/gotrue-go"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Verifier - resolves a caller bearer token to an account id via Supabase
// GoTrue. Session management itself lives on the Supabase side; this only
// answers "whose token is this".
type Verifier struct {
	client gotrue.Client
}

var _ pipeline.TokenVerifier = (*Verifier)(nil)

// NewVerifier - GoTrue client against the configured Supabase deployment.
func NewVerifier() *Verifier {
	cfg := config.GetConfig()

	client := gotrue.New(cfg.SupabaseProjectRef, cfg.SupabaseServiceKey)
	if cfg.SupabaseURL != "" {
		client = client.WithCustomGoTrueURL(cfg.SupabaseURL + "/auth/v1")
	}

	log.Println("✅ [Auth] GoTrue verifier initialized")
	return &Verifier{client: client}
}

// Verify - validate the token and return the user id.
func (v *Verifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	user, err := v.client.WithToken(token).GetUser()
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}

	return user.ID.String(), nil
}
