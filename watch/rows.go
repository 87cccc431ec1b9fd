package watch

import (
	"time"
)

const (
	// SwapTimeout is how long the rows of a registered swap are kept, the
	// maximum lifetime of a swap.
	SwapTimeout = 7 * 24 * time.Hour

	// FundingType is the element type of resolved watched outputs.
	FundingType = "funding"
)

// swapAddressRow points a watched address back at its swap.
type swapAddressRow struct {
	ID     string `json:"id"`
	Script string `json:"script"`
	Tokens int64  `json:"tokens"`
}

// swapKeyRow maps a claim public key to its key index.
type swapKeyRow struct {
	Index   uint32 `json:"index"`
	Invoice string `json:"invoice"`
}

// invoiceRow maps an invoice id to the invoice.
type invoiceRow struct {
	Invoice string `json:"invoice"`
}
