package platforms

import (
	"context"
)

// Platform is one external AI-assistant service the bot queries for mentions.
type Platform interface {
	Name() string
	UnitCostMillicents() int64
	IsEnabled() bool
	Ask(ctx context.Context, prompt string) (string, error)
}

// UnitCosts builds the per-query cost table the cost ledger prices runs with.
func UnitCosts(platforms []Platform) map[string]int64 {
	costs := make(map[string]int64, len(platforms))
	for _, p := range platforms {
		costs[p.Name()] = p.UnitCostMillicents()
	}
	return costs
}

// ByName indexes platforms for scheduler lookups.
func ByName(platforms []Platform) map[string]Platform {
	index := make(map[string]Platform, len(platforms))
	for _, p := range platforms {
		index[p.Name()] = p
	}
	return index
}
