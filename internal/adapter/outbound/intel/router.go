package intel

import (
	"context"
	"log/slog"
	"net"
	"regexp"
	"strings"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

var (
	hexHashRe = regexp.MustCompile(`^[a-fA-F0-9]+$`)
	domainRe  = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)+$`)
)

// Router classifies each indicator by syntactic shape and dispatches it to
// the matching reputation source. Indicators that fit no shape are recorded
// as benign identifiers so every input yields exactly one result.
type Router struct {
	ips    *AbuseIPDBClient
	vt     *VirusTotalClient
	logger *slog.Logger
}

func NewRouter(ips *AbuseIPDBClient, vt *VirusTotalClient, logger *slog.Logger) *Router {
	return &Router{ips: ips, vt: vt, logger: logger}
}

var _ outbound.IndicatorInvestigator = (*Router)(nil)

// Investigate returns one Investigation per indicator, in input order. A
// lookup failure degrades to a benign result with the error recorded in
// Detail rather than aborting the batch.
func (r *Router) Investigate(ctx context.Context, indicators []string) []model.Investigation {
	results := make([]model.Investigation, 0, len(indicators))
	for _, ind := range indicators {
		inv, err := r.check(ctx, ind)
		if err != nil {
			r.logger.Warn("indicator lookup failed",
				slog.String("indicator", ind),
				slog.String("error", err.Error()))
			inv = model.Investigation{
				Indicator: ind,
				Type:      classify(ind),
				Source:    "none",
				Malicious: false,
				Detail:    "lookup failed: " + err.Error(),
			}
		}
		results = append(results, inv)
	}
	return results
}

func (r *Router) check(ctx context.Context, indicator string) (model.Investigation, error) {
	switch classify(indicator) {
	case model.IndicatorIP:
		return r.ips.Check(ctx, indicator)
	case model.IndicatorHash:
		return r.vt.CheckHash(ctx, indicator)
	case model.IndicatorURL:
		return r.vt.CheckURL(ctx, indicator)
	default:
		return model.Investigation{
			Indicator: indicator,
			Type:      model.IndicatorIdentifier,
			Source:    "none",
			Malicious: false,
			Detail:    "no reputation source for this indicator shape",
		}, nil
	}
}

func classify(indicator string) model.IndicatorType {
	if net.ParseIP(indicator) != nil && strings.Count(indicator, ".") == 3 {
		return model.IndicatorIP
	}
	switch n := len(indicator); {
	case (n == 32 || n == 40 || n == 64) && hexHashRe.MatchString(indicator):
		return model.IndicatorHash
	}
	if strings.HasPrefix(indicator, "http://") || strings.HasPrefix(indicator, "https://") {
		return model.IndicatorURL
	}
	if domainRe.MatchString(indicator) {
		return model.IndicatorURL
	}
	return model.IndicatorIdentifier
}
