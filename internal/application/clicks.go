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

// RecordClick counts a click on a referral code and refreshes the visitor's
// attribution token. Unknown codes are not an error: the result has Found=false.
func (s *Service) RecordClick(ctx context.Context, code string, cc ClientContext) (RecordClickResult, error) {
	code = domain.NormalizeReferralCode(code)
	if code == "" {
		return RecordClickResult{}, fmt.Errorf("%w: referral code is required", domain.ErrInvalidInput)
	}
	clientID := strings.TrimSpace(cc.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	result := RecordClickResult{ClientID: clientID}

	link, err := s.links.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("click on unknown referral code",
			"module", "click_recorder",
			"operation", "record_click",
			"outcome", "unknown_code",
			"referral_code", code,
		)
		s.metrics.ClickRecorded("unknown_code")
		return result, nil
	}
	if err != nil {
		return RecordClickResult{}, err
	}

	now := s.nowFn()
	source := domain.AttributionSource{
		UTMSource:   strings.TrimSpace(cc.UTMSource),
		UTMMedium:   strings.TrimSpace(cc.UTMMedium),
		UTMCampaign: strings.TrimSpace(cc.UTMCampaign),
		Referrer:    strings.TrimSpace(cc.Referrer),
	}
	click := domain.ClickEvent{
		ClickID:       uuid.NewString(),
		LinkID:        link.LinkID,
		ReferralCode:  link.ReferralCode,
		ClientID:      clientID,
		UTMSource:     source.UTMSource,
		UTMMedium:     source.UTMMedium,
		UTMCampaign:   source.UTMCampaign,
		Referrer:      source.Referrer,
		IPHash:        sha256Hex(strings.TrimSpace(cc.IP)),
		UserAgentHash: sha256Hex(strings.TrimSpace(cc.UserAgent)),
		ClickedAt:     now,
	}
	event, err := s.newEvent(domain.EventClickRecorded, "link_id", link.LinkID, "", contracts.ClickRecordedPayload{
		ClickID:      click.ClickID,
		LinkID:       click.LinkID,
		ReferralCode: click.ReferralCode,
		UTMSource:    click.UTMSource,
		UTMCampaign:  click.UTMCampaign,
		IPHash:       click.IPHash,
		ClickedAt:    formatTime(now),
	}, now)
	if err != nil {
		return RecordClickResult{}, err
	}
	updated, err := s.links.RecordClick(ctx, click, event)
	if err != nil {
		return RecordClickResult{}, err
	}
	result.Found = true
	result.Link = updated
	result.DestinationURL = updated.DestinationURL

	if s.attribution != nil {
		token, err := s.attribution.Upsert(ctx, clientID, func(current *domain.AttributionToken) domain.AttributionToken {
			if current != nil {
				if _, ok := domain.Resolve(*current, now); !ok {
					current = nil
				}
			}
			return domain.Touch(current, clientID, link.ReferralCode, source, now)
		})
		if err != nil {
			// The click is already counted; the redirect must still succeed.
			s.logger.Error("attribution token upsert failed",
				"module", "click_recorder",
				"operation", "record_click",
				"outcome", "token_error",
				"link_id", link.LinkID,
				"error", err,
			)
			s.metrics.ClickRecorded("token_error")
			return result, nil
		}
		result.Token = token
	}
	s.metrics.ClickRecorded("recorded")
	return result, nil
}
