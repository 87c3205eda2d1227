package httpadapter

import (
	"context"
	"log/slog"

	"quadfund/contexts/funding-core/matching-engine/application/export"
	"quadfund/contexts/funding-core/matching-engine/application/queries"
	"quadfund/contexts/funding-core/matching-engine/domain/money"
	httptransport "quadfund/contexts/funding-core/matching-engine/transport/http"
)

type Handler struct {
	Queries queries.UseCase
	Logger  *slog.Logger
}

func (h Handler) DistributionHandler(ctx context.Context, roundID string) (httptransport.DistributionResponse, error) {
	report, err := h.Queries.ComputeDistribution(ctx, roundID)
	if err != nil {
		return httptransport.DistributionResponse{}, err
	}

	items := make([]httptransport.DistributionLineItem, 0, len(report.Lines))
	for _, line := range report.Lines {
		items = append(items, httptransport.DistributionLineItem{
			CampaignID:             line.CampaignID,
			Title:                  line.Title,
			MatchingAmount:         line.MatchingAmount.String(),
			UniqueContributorCount: line.UniqueContributorCount,
			ContributionCount:      line.ContributionCount,
		})
	}
	return httptransport.DistributionResponse{
		RoundID:        report.RoundID,
		Items:          items,
		TotalAllocated: report.TotalAllocated.String(),
	}, nil
}

func (h Handler) MarginalEstimateHandler(
	ctx context.Context,
	roundID string,
	req httptransport.MarginalEstimateRequest,
) (httptransport.MarginalEstimateResponse, error) {
	amount, err := money.ParseNonNegative(req.Amount)
	if err != nil {
		return httptransport.MarginalEstimateResponse{}, err
	}
	estimate, err := h.Queries.ComputeMarginalEstimate(ctx, roundID, req.CampaignID, req.DonorID, amount)
	if err != nil {
		return httptransport.MarginalEstimateResponse{}, err
	}
	return httptransport.MarginalEstimateResponse{
		CampaignID:     estimate.CampaignID,
		EstimatedMatch: estimate.EstimatedMatch.String(),
		MarginalMatch:  estimate.MarginalMatch.String(),
	}, nil
}

// ExportDistributionCSVHandler renders the round distribution in its
// CSV-exportable projection.
func (h Handler) ExportDistributionCSVHandler(ctx context.Context, roundID string, includeTotal bool) ([]byte, error) {
	report, err := h.Queries.ComputeDistribution(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return export.ReportCSV(report, includeTotal)
}
