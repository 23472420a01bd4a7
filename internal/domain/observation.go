// Package domain holds the value types shared across the service.
package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// PriceObservation is a single observed pool price.
// Corresponds to the price_observations table in ClickHouse.
//
// Price is the decimal string form of an unsigned 256-bit magnitude, scaled
// by a caller-understood decimal convention; the analytics core never
// interprets the scale.
type PriceObservation struct {
	PoolID      string // pool account address (base58)
	TimestampMs int64  // Unix timestamp in milliseconds
	Slot        int64  // chain slot the observation was taken at
	Price       string // u256 magnitude as a decimal string
	FeedSource  string // identifier of the feed that produced it
}

// ParsePrice converts a decimal string into its u256 magnitude.
func ParsePrice(s string) (*uint256.Int, error) {
	p, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", s, err)
	}
	return p, nil
}

// ParsePrice converts the stored decimal string into its u256 magnitude.
func (o *PriceObservation) ParsePrice() (*uint256.Int, error) {
	return ParsePrice(o.Price)
}

// PricesOf extracts the price magnitudes from observations in order.
// Observations are expected to be sorted by timestamp ascending; movement
// statistics over an unordered slice are meaningless.
func PricesOf(observations []*PriceObservation) ([]*uint256.Int, error) {
	prices := make([]*uint256.Int, len(observations))
	for i, o := range observations {
		p, err := o.ParsePrice()
		if err != nil {
			return nil, err
		}
		prices[i] = p
	}
	return prices, nil
}
