// Package main provides a one-shot advisory CLI: read a price series from a
// file or from the observation store, run the engine and print the verdict.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/engine"
	"clmm-range-lab/internal/reporting"
	chstore "clmm-range-lab/internal/storage/clickhouse"
)

func main() {
	pricesFile := flag.String("prices", "", "File with one decimal price per line")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (alternative to --prices)")
	pool := flag.String("pool", "", "Pool id to load observations for (with --clickhouse-dsn)")
	window := flag.Int("window", 48, "Observations to load from the store")
	lower := flag.Int("lower", 0, "Current lower tick (optional, enables rebalance check)")
	upper := flag.Int("upper", 0, "Current upper tick")
	baseFee := flag.Uint("base-fee", 30, "Base fee in hundredths of a percent")
	maxFee := flag.Uint("max-fee", 300, "Max fee in hundredths of a percent")
	timeWindow := flag.Uint64("time-window", 3600000, "Observation window in ms for the score")
	flag.Parse()

	ctx := context.Background()

	var (
		prices []*uint256.Int
		err    error
	)
	switch {
	case *pricesFile != "":
		prices, err = readPricesFile(*pricesFile)
	case *clickhouseDSN != "" && *pool != "":
		prices, err = loadPricesFromStore(ctx, *clickhouseDSN, *pool, *window)
	default:
		fmt.Fprintln(os.Stderr, "Error: either --prices or --clickhouse-dsn with --pool is required")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New()

	score, err := eng.CalculateVolatilityScore("", "", prices, *timeWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing score: %v\n", err)
		os.Exit(1)
	}
	fee := eng.GetRecommendedFee(score, uint32(*baseFee), uint32(*maxFee))

	optLower, optUpper, err := eng.CalculateOptimalPositionBounds("", "", prices, uint256.NewInt(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing bounds: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Prices analyzed:    %d\n", len(prices))
	fmt.Printf("Volatility score:   %d / 10000\n", score.Uint64())
	fmt.Printf("Recommended fee:    %d (base %d, max %d)\n", fee, *baseFee, *maxFee)
	fmt.Printf("Optimal range:      [%d, %d]\n", optLower, optUpper)

	advice := &domain.Advice{
		PoolID:          *pool,
		PositionID:      "cli",
		VolatilityScore: score.Uint64(),
		RecommendedFee:  fee,
		OptimalLower:    optLower,
		OptimalUpper:    optUpper,
		WindowSize:      len(prices),
		ComputedAt:      time.Now().UnixMilli(),
	}

	if *upper > *lower {
		verdict, err := eng.ShouldRebalance("", "", int32(*lower), int32(*upper), prices)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error on rebalance check: %v\n", err)
			os.Exit(1)
		}
		advice.Rebalance = verdict.Rebalance

		fmt.Printf("Current range:      [%d, %d]\n", *lower, *upper)
		if verdict.Rebalance {
			fmt.Printf("Verdict:            REBALANCE to [%d, %d]\n", verdict.OptimalLower, verdict.OptimalUpper)
		} else {
			fmt.Printf("Verdict:            HOLD\n")
		}
	}

	fmt.Println()
	fmt.Print(reporting.RenderMarkdown([]*domain.Advice{advice}))
}

// readPricesFile reads one decimal price per line, skipping blanks and
// comments.
func readPricesFile(path string) ([]*uint256.Int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var prices []*uint256.Int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := domain.ParsePrice(line)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		prices = append(prices, p)
	}
	return prices, scanner.Err()
}

// loadPricesFromStore loads the most recent observations for a pool.
func loadPricesFromStore(ctx context.Context, dsn, pool string, window int) ([]*uint256.Int, error) {
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	store := chstore.NewPriceObservationStore(conn)
	observations, err := store.GetRecent(ctx, pool, window)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	return domain.PricesOf(observations)
}
