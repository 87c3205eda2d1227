package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateRoundRequest struct {
	Title        string `json:"title"`
	SponsorID    string `json:"sponsor_id"`
	MatchingPool string `json:"matching_pool"`
}

type RoundResponse struct {
	RoundID      string  `json:"round_id"`
	Title        string  `json:"title"`
	SponsorID    string  `json:"sponsor_id"`
	MatchingPool string  `json:"matching_pool"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	OpenedAt     *string `json:"opened_at,omitempty"`
	ClosedAt     *string `json:"closed_at,omitempty"`
}

type RoundListResponse struct {
	Items []RoundResponse `json:"items"`
}

type ApplyCampaignRequest struct {
	CampaignID string `json:"campaign_id"`
	Title      string `json:"title"`
	OwnerID    string `json:"owner_id"`
}

type ReviewCampaignRequest struct {
	Decision   string `json:"decision"`
	ReviewerID string `json:"reviewer_id"`
}

type RoundCampaignResponse struct {
	RoundID    string  `json:"round_id"`
	CampaignID string  `json:"campaign_id"`
	Title      string  `json:"title"`
	OwnerID    string  `json:"owner_id"`
	Status     string  `json:"status"`
	AppliedAt  string  `json:"applied_at"`
	ReviewedAt *string `json:"reviewed_at,omitempty"`
	ReviewedBy string  `json:"reviewed_by,omitempty"`
}

type RoundCampaignListResponse struct {
	Items []RoundCampaignResponse `json:"items"`
}

type RecordContributionRequest struct {
	CampaignID string `json:"campaign_id"`
	DonorID    string `json:"donor_id"`
	Amount     string `json:"amount"`
	PaymentRef string `json:"payment_ref"`
}

type ContributionResponse struct {
	ContributionID string  `json:"contribution_id"`
	RoundID        string  `json:"round_id"`
	CampaignID     string  `json:"campaign_id"`
	DonorID        string  `json:"donor_id"`
	Amount         string  `json:"amount"`
	Status         string  `json:"status"`
	PaymentRef     string  `json:"payment_ref"`
	CreatedAt      string  `json:"created_at"`
	ConfirmedAt    *string `json:"confirmed_at,omitempty"`
}

type ContributionListResponse struct {
	Items []ContributionResponse `json:"items"`
}
