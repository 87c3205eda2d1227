package errors

import "errors"

var (
	ErrInvalidParameter  = errors.New("invalid round or campaign identifier")
	ErrRoundNotFound     = errors.New("round not found")
	ErrCampaignNotFound  = errors.New("campaign not found in round")
	ErrInvalidAmount     = errors.New("amount is outside the valid money domain")
	ErrSnapshotIntegrity = errors.New("round snapshot violates the engine trust contract")
)
