package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/stakeshare/internal/domain"
)

// ResolveClient returns the referral code credited to a client, if its token is
// still inside the attribution window. The token is left in place.
func (s *Service) ResolveClient(ctx context.Context, clientID string) (string, bool, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", false, fmt.Errorf("%w: client_id is required", domain.ErrInvalidInput)
	}
	if s.attribution == nil {
		return "", false, nil
	}
	token, err := s.attribution.Get(ctx, clientID)
	if err != nil {
		return "", false, err
	}
	if token == nil {
		return "", false, nil
	}
	code, ok := domain.Resolve(*token, s.nowFn())
	return code, ok, nil
}
