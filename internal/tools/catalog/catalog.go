package catalog

import (
	"finsight/internal/tools"
	"finsight/internal/tools/indicators"
	"finsight/internal/tools/market"
	"finsight/internal/tools/orderflow"
	"finsight/internal/tools/sentiment"
	"finsight/internal/tools/shared"
	"finsight/pkg/errors"
)

type constructor func(shared.Deps) tools.Spec

var constructors = []constructor{
	market.NewGetQuoteTool,
	market.NewGetKlineTool,
	market.NewGetIntradayCurveTool,
	market.NewGetMarketOverviewTool,
	market.NewSearchSymbolTool,
	indicators.NewComputeIndicatorsTool,
	sentiment.NewSearchNewsTool,
	orderflow.NewGetFundFlowTool,
}

// RegisterAll builds every tool from deps and registers it with the middleware stack applied.
func RegisterAll(registry *tools.Registry, deps shared.Deps, mw ...tools.Middleware) error {
	if deps.Log == nil {
		return errors.NewValidationError("log", "tool deps require a logger", nil)
	}
	for _, build := range constructors {
		spec := build(deps).With(mw...)
		if err := registry.Register(spec); err != nil {
			return errors.Wrapf(err, "register tool %s", spec.Name)
		}
	}
	deps.Log.Infow("Tools registered", "count", len(constructors), "tools", registry.List())
	return nil
}
