package ingestion

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"clmm-range-lab/internal/domain"
)

var (
	// ErrInvalidPoolKey is returned for pool identifiers that are not
	// 32-byte base58 keys.
	ErrInvalidPoolKey = errors.New("invalid pool key")
	// ErrInvalidOracleKey is returned for oracle keys that do not decode
	// to a point on the ed25519 curve.
	ErrInvalidOracleKey = errors.New("invalid oracle key")
	// ErrBadSignature is returned when a feed update fails signature
	// verification against the configured oracle key.
	ErrBadSignature = errors.New("bad feed signature")
	// ErrInvalidPrice is returned for prices that are not decimal u256
	// strings.
	ErrInvalidPrice = errors.New("invalid price")
)

// Validator checks feed updates before they become observations. When
// oracleKey is nil, signature verification is skipped.
type Validator struct {
	oracleKey ed25519.PublicKey
	source    string
}

// NewValidator creates a validator. oracleKey is a base58 encoded public
// key, or empty to disable signature checks. The key must lie on the
// ed25519 curve: oracle accounts hold a real keypair, unlike program
// derived addresses.
func NewValidator(oracleKey, source string) (*Validator, error) {
	v := &Validator{source: source}

	if oracleKey != "" {
		decoded, err := base58.Decode(oracleKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOracleKey, err)
		}
		if !isOnCurve(decoded) {
			return nil, ErrInvalidOracleKey
		}
		v.oracleKey = ed25519.PublicKey(decoded)
	}

	return v, nil
}

// Validate checks a feed update and converts it to a PriceObservation.
func (v *Validator) Validate(update PriceUpdate) (*domain.PriceObservation, error) {
	decoded, err := base58.Decode(update.Pool)
	if err != nil || len(decoded) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPoolKey, update.Pool)
	}

	if _, err := domain.ParsePrice(update.Price); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, update.Price)
	}

	if v.oracleKey != nil {
		if err := v.verifySignature(update); err != nil {
			return nil, err
		}
	}

	return &domain.PriceObservation{
		PoolID:      update.Pool,
		TimestampMs: update.TimestampMs,
		Slot:        update.Slot,
		Price:       update.Price,
		FeedSource:  v.source,
	}, nil
}

// verifySignature checks the oracle signature over the canonical update
// payload "pool|price|slot|ts".
func (v *Validator) verifySignature(update PriceUpdate) error {
	if update.Signature == "" {
		return ErrBadSignature
	}

	sig, err := base58.Decode(update.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}

	if !ed25519.Verify(v.oracleKey, SignaturePayload(update), sig) {
		return ErrBadSignature
	}
	return nil
}

// SignaturePayload returns the canonical byte payload an oracle signs for
// an update.
func SignaturePayload(update PriceUpdate) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d|%d",
		update.Pool, update.Price, update.Slot, update.TimestampMs))
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
