package marketdata

import (
	"context"

	"github.com/optrank/optrank/internal/domain"
)

// Provider supplies spot quotes and option chains. Retrieval from a live
// market-data vendor is an external collaborator; the pipeline only depends
// on this shape.
type Provider interface {
	GetQuote(ctx context.Context, ticker string) (domain.Quote, error)
	GetOptionChain(ctx context.Context, ticker string, maxExpirations int) ([]domain.Contract, error)
}
