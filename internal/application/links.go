package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

// GenerateLink issues a new tracking link with a fresh referral code. Code
// collisions are retried up to LinkCodeMaxAttempts times.
func (s *Service) GenerateLink(ctx context.Context, actor Actor, in GenerateLinkInput) (domain.TrackingLink, error) {
	if err := requireActor(actor); err != nil {
		return domain.TrackingLink{}, err
	}
	in.CreatorID = strings.TrimSpace(in.CreatorID)
	in.ProgramID = strings.TrimSpace(in.ProgramID)
	in.CampaignName = strings.TrimSpace(in.CampaignName)
	if in.CreatorID == "" {
		in.CreatorID = actor.SubjectID
	}
	if in.CreatorID != actor.SubjectID && !isAdmin(actor) {
		return domain.TrackingLink{}, domain.ErrForbidden
	}
	if in.ProgramID == "" {
		return domain.TrackingLink{}, fmt.Errorf("%w: program_id is required", domain.ErrInvalidInput)
	}
	destination, err := domain.ValidateDestinationURL(in.DestinationURL)
	if err != nil {
		return domain.TrackingLink{}, err
	}
	if s.programs != nil {
		if _, err := s.programs.GetProgram(ctx, in.ProgramID); err != nil {
			return domain.TrackingLink{}, err
		}
	}

	for attempt := 1; attempt <= s.cfg.LinkCodeMaxAttempts; attempt++ {
		code, err := domain.GenerateReferralCode()
		if err != nil {
			return domain.TrackingLink{}, err
		}
		now := s.nowFn()
		link := domain.TrackingLink{
			LinkID:         uuid.NewString(),
			CreatorID:      in.CreatorID,
			ProgramID:      in.ProgramID,
			ReferralCode:   code,
			DestinationURL: destination,
			CampaignName:   in.CampaignName,
			CreatedAt:      now,
		}
		event, err := s.newEvent(domain.EventLinkCreated, "creator_id", link.CreatorID, actor.RequestID, contracts.LinkCreatedPayload{
			LinkID:       link.LinkID,
			CreatorID:    link.CreatorID,
			ProgramID:    link.ProgramID,
			ReferralCode: link.ReferralCode,
			CreatedAt:    formatTime(now),
		}, now)
		if err != nil {
			return domain.TrackingLink{}, err
		}
		err = s.links.Create(ctx, link, event)
		if err == nil {
			s.logger.Info("tracking link created",
				"module", "link_registry",
				"operation", "generate_link",
				"outcome", "success",
				"link_id", link.LinkID,
				"attempt", attempt,
			)
			return link, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.TrackingLink{}, err
		}
		s.logger.Warn("referral code collision",
			"module", "link_registry",
			"operation", "generate_link",
			"outcome", "retry",
			"attempt", attempt,
		)
	}
	return domain.TrackingLink{}, fmt.Errorf("%w: no unique referral code after %d attempts", domain.ErrConflict, s.cfg.LinkCodeMaxAttempts)
}

func (s *Service) GetLinkByCode(ctx context.Context, code string) (domain.TrackingLink, error) {
	code = domain.NormalizeReferralCode(code)
	if code == "" {
		return domain.TrackingLink{}, fmt.Errorf("%w: referral code is required", domain.ErrInvalidInput)
	}
	return s.links.GetByCode(ctx, code)
}

// ListLinks returns a creator's links for one program in creation order.
// Creators see their own links; the program founder and admins see any creator's.
func (s *Service) ListLinks(ctx context.Context, actor Actor, creatorID, programID string) ([]domain.TrackingLink, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	creatorID = strings.TrimSpace(creatorID)
	programID = strings.TrimSpace(programID)
	if creatorID == "" {
		creatorID = actor.SubjectID
	}
	if programID == "" {
		return nil, fmt.Errorf("%w: program_id is required", domain.ErrInvalidInput)
	}
	if creatorID != actor.SubjectID && !isAdmin(actor) {
		if s.programs == nil {
			return nil, domain.ErrForbidden
		}
		program, err := s.programs.GetProgram(ctx, programID)
		if err != nil {
			return nil, err
		}
		if program.FounderID != actor.SubjectID {
			return nil, domain.ErrForbidden
		}
	}
	return s.links.ListByCreatorProgram(ctx, creatorID, programID)
}
