package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DistributionLineItem struct {
	CampaignID             string `json:"campaign_id"`
	Title                  string `json:"title"`
	MatchingAmount         string `json:"matching_amount"`
	UniqueContributorCount int    `json:"unique_contributor_count"`
	ContributionCount      int    `json:"contribution_count"`
}

type DistributionResponse struct {
	RoundID        string                 `json:"round_id"`
	Items          []DistributionLineItem `json:"items"`
	TotalAllocated string                 `json:"total_allocated"`
}

type MarginalEstimateRequest struct {
	CampaignID string `json:"campaign_id"`
	DonorID    string `json:"donor_id"`
	Amount     string `json:"amount"`
}

type MarginalEstimateResponse struct {
	CampaignID     string `json:"campaign_id"`
	EstimatedMatch string `json:"estimated_match"`
	MarginalMatch  string `json:"marginal_match"`
}
