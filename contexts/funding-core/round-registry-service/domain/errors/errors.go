package errors

import "errors"

var (
	ErrRoundNotFound          = errors.New("round not found")
	ErrRoundCampaignNotFound  = errors.New("round campaign not found")
	ErrContributionNotFound   = errors.New("contribution not found")
	ErrInvalidRoundInput      = errors.New("invalid round input")
	ErrInvalidReviewDecision  = errors.New("review decision must be approved or rejected")
	ErrInvalidContribution    = errors.New("invalid contribution input")
	ErrRoundNotOpen           = errors.New("round is not open for contributions")
	ErrRoundImmutable         = errors.New("closed rounds are immutable")
	ErrInvalidStateTransition = errors.New("invalid round state transition")
	ErrCampaignNotApproved    = errors.New("campaign is not approved for this round")
	ErrCampaignAlreadyApplied = errors.New("campaign already applied to this round")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with a different request")
	ErrConflict               = errors.New("conflicting concurrent write")
)
