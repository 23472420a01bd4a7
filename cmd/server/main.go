// Package main provides the unified service that runs all components:
// - Ingestion (continuous): WebSocket price feed into the observation store
// - Advisor (scheduled): engine runs over tracked positions
// - HTTP API: analytics operations, positions, advice, reports
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/holiman/uint256"

	"clmm-range-lab/internal/advisor"
	"clmm-range-lab/internal/domain"
	"clmm-range-lab/internal/engine"
	"clmm-range-lab/internal/ingestion"
	"clmm-range-lab/internal/observability"
	"clmm-range-lab/internal/reporting"
	"clmm-range-lab/internal/storage"
	chstore "clmm-range-lab/internal/storage/clickhouse"
	"clmm-range-lab/internal/storage/memory"
	"clmm-range-lab/internal/storage/migrations"
	pgstore "clmm-range-lab/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	engine  *engine.Engine
	stores  *allStores
	metrics *observability.Metrics
	logger  *log.Logger

	baseFee uint32
	maxFee  uint32
}

// allStores holds all storage implementations.
type allStores struct {
	observations storage.PriceObservationStore
	positions    storage.PositionStore
	advice       storage.AdviceStore
}

func main() {
	loadEnvFile()

	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Price feed WebSocket endpoint")
	feedSource := flag.String("feed-source", "pyth", "Feed source label stored with observations")
	oracleKey := flag.String("oracle-key", os.Getenv("ORACLE_KEY"), "Base58 oracle public key for feed signature checks (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	advisorInterval := flag.Duration("advisor-interval", time.Minute, "Advisor run interval")
	windowSize := flag.Int("window", 48, "Observations per advisor window")
	baseFee := flag.Uint("base-fee", 30, "Base fee in hundredths of a percent")
	maxFee := flag.Uint("max-fee", 300, "Max fee in hundredths of a percent")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	server := &Server{
		engine:  engine.New(),
		stores:  stores,
		metrics: metrics,
		logger:  logger,
		baseFee: uint32(*baseFee),
		maxFee:  uint32(*maxFee),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	errCh := make(chan error, 3)

	// Ingestion runs only when a feed endpoint was configured; the HTTP
	// API and advisor work standalone for offline analysis.
	if *feedEndpoint != "" {
		go func() {
			err := runIngestion(ctx, *feedEndpoint, *oracleKey, *feedSource, stores.observations, metrics)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("ingestion: %w", err)
			}
		}()
	} else {
		logger.Println("No --feed-endpoint, ingestion disabled")
	}

	adv := advisor.New(advisor.Options{
		PositionStore:    stores.positions,
		ObservationStore: stores.observations,
		AdviceStore:      stores.advice,
		Metrics:          metrics,
		Interval:         *advisorInterval,
		WindowSize:       *windowSize,
		BaseFee:          uint32(*baseFee),
		MaxFee:           uint32(*maxFee),
		Logger:           log.New(os.Stdout, "[advisor] ", log.LstdFlags),
	})
	go func() {
		err := adv.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("advisor: %w", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}
	go func() {
		logger.Printf("HTTP server listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Printf("Component failed: %v", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}

	done <- nil
	logger.Println("Shutdown complete")
}

// runIngestion connects the feed and runs the ingestion runner.
func runIngestion(ctx context.Context, endpoint, oracleKey, source string, store storage.PriceObservationStore, metrics *observability.Metrics) error {
	validator, err := ingestion.NewValidator(oracleKey, source)
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	feed, err := ingestion.NewFeedClient(ctx, endpoint, nil, log.New(os.Stdout, "[ingestion] ", log.LstdFlags))
	if err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	defer feed.Close()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Feed:      feed,
		Validator: validator,
		Store:     store,
		Metrics:   metrics,
		Logger:    log.New(os.Stdout, "[ingestion] ", log.LstdFlags),
	})
	return runner.Run(ctx)
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			observations: memory.NewPriceObservationStore(),
			positions:    memory.NewPositionStore(),
			advice:       memory.NewAdviceStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		observations: chstore.NewPriceObservationStore(chConn),
		positions:    pgstore.NewPositionStore(pool),
		advice:       pgstore.NewAdviceStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/v1/volatility-score", s.handleVolatilityScore)
	mux.HandleFunc("/v1/optimal-bounds", s.handleOptimalBounds)
	mux.HandleFunc("/v1/should-rebalance", s.handleShouldRebalance)
	mux.HandleFunc("/v1/efficiency", s.handleEfficiency)
	mux.HandleFunc("/v1/positions", s.handlePositions)
	mux.HandleFunc("/v1/advice", s.handleAdvice)
	mux.HandleFunc("/v1/report", s.handleReport)

	return mux
}

// writeError maps known errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidPriceArray),
		errors.Is(err, engine.ErrInvalidTickSpacing),
		errors.Is(err, engine.ErrInvalidTimeWindow),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

var errBadRequest = errors.New("bad request")

// parsePrices converts decimal strings into uint256 prices.
func parsePrices(raw []string) ([]*uint256.Int, error) {
	prices := make([]*uint256.Int, len(raw))
	for i, s := range raw {
		p, err := domain.ParsePrice(s)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", errBadRequest, s)
		}
		prices[i] = p
	}
	return prices, nil
}

func (s *Server) handleVolatilityScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TokenA     string   `json:"tokenA"`
		TokenB     string   `json:"tokenB"`
		Prices     []string `json:"prices"`
		TimeWindow uint64   `json:"timeWindow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	prices, err := parsePrices(req.Prices)
	if err != nil {
		s.writeError(w, err)
		return
	}

	score, err := s.engine.CalculateVolatilityScore(req.TokenA, req.TokenB, prices, req.TimeWindow)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"score":          score.Uint64(),
		"recommendedFee": s.engine.GetRecommendedFee(score, s.baseFee, s.maxFee),
	})
}

func (s *Server) handleOptimalBounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TokenA    string   `json:"tokenA"`
		TokenB    string   `json:"tokenB"`
		Prices    []string `json:"prices"`
		Liquidity string   `json:"liquidity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	prices, err := parsePrices(req.Prices)
	if err != nil {
		s.writeError(w, err)
		return
	}

	liquidity := uint256.NewInt(0)
	if req.Liquidity != "" {
		if liquidity, err = domain.ParsePrice(req.Liquidity); err != nil {
			s.writeError(w, fmt.Errorf("%w: liquidity %q", errBadRequest, req.Liquidity))
			return
		}
	}

	lower, upper, err := s.engine.CalculateOptimalPositionBounds(req.TokenA, req.TokenB, prices, liquidity)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]int32{"lowerTick": lower, "upperTick": upper})
}

func (s *Server) handleShouldRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TokenA string   `json:"tokenA"`
		TokenB string   `json:"tokenB"`
		Lower  int32    `json:"lower"`
		Upper  int32    `json:"upper"`
		Prices []string `json:"prices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	prices, err := parsePrices(req.Prices)
	if err != nil {
		s.writeError(w, err)
		return
	}

	verdict, err := s.engine.ShouldRebalance(req.TokenA, req.TokenB, req.Lower, req.Upper, prices)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rebalance":    verdict.Rebalance,
		"optimalLower": verdict.OptimalLower,
		"optimalUpper": verdict.OptimalUpper,
	})
}

func (s *Server) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Lower       int32 `json:"lower"`
		Upper       int32 `json:"upper"`
		CurrentTick int32 `json:"currentTick"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	efficiency, err := s.engine.CalculatePositionEfficiency(req.Lower, req.Upper, req.CurrentTick)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]uint32{"efficiency": efficiency})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		positions, err := s.stores.positions.List(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, positions)

	case http.MethodPost:
		var pos domain.Position
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		now := time.Now().UnixMilli()
		if pos.CreatedAt == 0 {
			pos.CreatedAt = now
		}
		pos.UpdatedAt = now

		if err := s.stores.positions.Insert(r.Context(), &pos); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, &pos)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pool := r.URL.Query().Get("pool")
	if pool == "" {
		s.writeError(w, fmt.Errorf("%w: missing pool parameter", errBadRequest))
		return
	}

	advice, err := s.stores.advice.GetLatestByPoolID(r.Context(), pool)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, advice)
}

// handleReport renders the latest advice per tracked pool as Markdown.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	positions, err := s.stores.positions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var records []*domain.Advice
	seen := make(map[string]bool)
	for _, pos := range positions {
		if seen[pos.PoolID] {
			continue
		}
		seen[pos.PoolID] = true

		advice, err := s.stores.advice.GetLatestByPoolID(r.Context(), pos.PoolID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			s.writeError(w, err)
			return
		}
		records = append(records, advice)
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(reporting.RenderMarkdown(records)))
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
