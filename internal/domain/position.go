package domain

// Position is a tracked concentrated-liquidity position.
// Corresponds to the positions table in PostgreSQL.
//
// TokenA and TokenB are opaque mint identifiers: they are carried through
// for the caller's bookkeeping and never inspected by the analytics core.
type Position struct {
	PositionID string // PRIMARY KEY
	PoolID     string // pool account address (base58)
	TokenA     string // first token mint (opaque)
	TokenB     string // second token mint (opaque)
	LowerTick  int32  // lower bound, multiple of tick spacing
	UpperTick  int32  // upper bound, multiple of tick spacing
	Liquidity  string // deployed liquidity as a decimal string
	CreatedAt  int64  // record creation timestamp (ms)
	UpdatedAt  int64  // last bounds update timestamp (ms)
}

// Advice is a persisted advisor run for one position.
// Corresponds to the advice table in PostgreSQL. Append-only.
type Advice struct {
	AdviceID        string // PRIMARY KEY, deterministic hash
	PoolID          string
	PositionID      string
	VolatilityScore uint64 // [0, 10000]
	RecommendedFee  uint32 // [baseFee, maxFee]
	OptimalLower    int32
	OptimalUpper    int32
	Rebalance       bool
	Efficiency      uint32 // [0, 100]
	WindowSize      int    // number of price observations used
	ComputedAt      int64  // Unix timestamp in milliseconds
}

// Bounds of the derived metrics.
const (
	MaxVolatilityScore = 10000
	MaxEfficiency      = 100
)
