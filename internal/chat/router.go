package chat

// RoutePath names which resolver the totals router picked.
type RoutePath string

const (
	PathTotals RoutePath = "totals"
	PathNormal RoutePath = "normal"
)

// RouteResult carries the chosen path and its resolver's output.
type RouteResult struct {
	Path     RoutePath
	Response *EngineResponse
}

// RouteTotals dispatches between the deterministic totals resolver and the
// general retrieval resolver. It is a pure function of the intent: no hidden
// state affects routing, so identical inputs always pick the same path.
func RouteTotals(intent Intent, resolveTotals, resolveNormal func() (*EngineResponse, error)) (*RouteResult, error) {
	if intent == IntentTotalInvestment {
		resp, err := resolveTotals()
		if err != nil {
			return nil, err
		}
		return &RouteResult{Path: PathTotals, Response: resp}, nil
	}
	resp, err := resolveNormal()
	if err != nil {
		return nil, err
	}
	return &RouteResult{Path: PathNormal, Response: resp}, nil
}
