// Package reporting renders advice reports for operators.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"clmm-range-lab/internal/domain"
)

// RenderMarkdown renders the latest advice per pool as a Markdown report.
// Advice records are rendered in the order given.
func RenderMarkdown(records []*domain.Advice) string {
	var sb strings.Builder

	sb.WriteString("# Position Advice Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339)))

	if len(records) == 0 {
		sb.WriteString("No advice available.\n")
		return sb.String()
	}

	sb.WriteString("| Pool | Position | Volatility | Fee (bps) | Optimal Range | Rebalance | Efficiency |\n")
	sb.WriteString("|------|----------|-----------|-----------|---------------|-----------|------------|\n")

	rebalances := 0
	for _, a := range records {
		verdict := "HOLD"
		if a.Rebalance {
			verdict = "REBALANCE"
			rebalances++
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | [%d, %d] | %s | %d%% |\n",
			shorten(a.PoolID), shorten(a.PositionID),
			a.VolatilityScore, a.RecommendedFee,
			a.OptimalLower, a.OptimalUpper,
			verdict, a.Efficiency))
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("Positions: %d, rebalance recommended: %d\n", len(records), rebalances))

	for _, a := range records {
		if !a.Rebalance {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: move to [%d, %d] (window of %d prices at %s)\n",
			shorten(a.PositionID), a.OptimalLower, a.OptimalUpper,
			a.WindowSize, time.UnixMilli(a.ComputedAt).UTC().Format(time.RFC3339)))
	}

	return sb.String()
}

// shorten abbreviates base58 keys for table readability.
func shorten(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + ".." + id[len(id)-4:]
}
