package trade

import (
	"errors"

	"github.com/atmx/tradestore/internal/model"
)

// Domain errors returned by SaveTrade. Both reject the write with no change
// to the store and neither is retryable. Storage failures are returned
// wrapped and never match these.
var (
	// ErrStaleTrade is returned when the submitted version is lower than the
	// highest version already stored for the trade id.
	ErrStaleTrade = errors.New("trade: the version of trade received is less than the latest version available in store")

	// ErrPastMaturity is returned when the maturity date is before today.
	ErrPastMaturity = errors.New("trade: the maturity date of the trade is in the past")

	// ErrInvalidTrade is returned for an empty trade id or negative version.
	ErrInvalidTrade = model.ErrInvalidTrade
)
