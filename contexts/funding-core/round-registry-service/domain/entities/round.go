package entities

import (
	"strings"
	"time"

	"quadfund/contexts/funding-core/matching-engine/domain/money"
)

type RoundStatus string

const (
	RoundStatusDraft  RoundStatus = "draft"
	RoundStatusOpen   RoundStatus = "open"
	RoundStatusClosed RoundStatus = "closed"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "pending"
	ContributionStatusConfirmed ContributionStatus = "confirmed"
	ContributionStatusFailed    ContributionStatus = "failed"
)

// Round is a time-boxed matching event. Once closed it is immutable; the
// closing snapshot is what audits replay against.
type Round struct {
	RoundID      string
	Title        string
	SponsorID    string
	MatchingPool money.Money
	Status       RoundStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OpenedAt     *time.Time
	ClosedAt     *time.Time
}

func (r Round) ValidateBasics() bool {
	return strings.TrimSpace(r.Title) != "" &&
		strings.TrimSpace(r.SponsorID) != "" &&
		!r.MatchingPool.IsNegative() &&
		r.MatchingPool.IsMinorUnitAligned()
}

// CanTransition enforces the draft -> open -> closed lifecycle.
func (r Round) CanTransition(to RoundStatus) bool {
	switch to {
	case RoundStatusOpen:
		return r.Status == RoundStatusDraft
	case RoundStatusClosed:
		return r.Status == RoundStatusOpen
	default:
		return false
	}
}

// RoundCampaign associates a campaign with a round through admin review.
// Only approved entries participate in matching; entries are never deleted
// while referenced by a historical distribution.
type RoundCampaign struct {
	RoundID    string
	CampaignID string
	Title      string
	OwnerID    string
	Status     ReviewStatus
	AppliedAt  time.Time
	ReviewedAt *time.Time
	ReviewedBy string
	UpdatedAt  time.Time
}

// Contribution is a payment record. It enters as pending and becomes
// confirmed only through the payment-confirmed event; the matching engine
// consumes confirmed records exclusively.
type Contribution struct {
	ContributionID string
	RoundID        string
	CampaignID     string
	DonorID        string
	Amount         money.Money
	Status         ContributionStatus
	PaymentRef     string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
}

func (c Contribution) ValidateBasics() bool {
	return strings.TrimSpace(c.RoundID) != "" &&
		strings.TrimSpace(c.CampaignID) != "" &&
		strings.TrimSpace(c.DonorID) != "" &&
		c.Amount.IsPositive() &&
		c.Amount.IsMinorUnitAligned()
}

func IsSupportedReviewDecision(value ReviewStatus) bool {
	return value == ReviewStatusApproved || value == ReviewStatusRejected
}
