package outbound

import (
	"context"

	"github.com/jonny/guardian/internal/domain/model"
)

// IndicatorChecker resolves the reputation of a single indicator.
type IndicatorChecker interface {
	Check(ctx context.Context, indicator string) (model.Investigation, error)
}

// IndicatorInvestigator routes a mixed batch of indicators to the
// appropriate checkers by syntactic shape and collects one result per
// indicator, in input order.
type IndicatorInvestigator interface {
	Investigate(ctx context.Context, indicators []string) []model.Investigation
}
