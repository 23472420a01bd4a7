package ingestion

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func testOracle(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub), priv
}

func testPoolKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base58.Encode(key)
}

func signedUpdate(pool string, priv ed25519.PrivateKey) PriceUpdate {
	update := PriceUpdate{
		Pool:        pool,
		Price:       "123456789",
		Slot:        250000000,
		TimestampMs: 1700000000000,
	}
	sig := ed25519.Sign(priv, SignaturePayload(update))
	update.Signature = base58.Encode(sig)
	return update
}

func TestValidator_NoOracleKey(t *testing.T) {
	v, err := NewValidator("", "pyth")
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	pool := testPoolKey(t)
	obs, err := v.Validate(PriceUpdate{
		Pool:        pool,
		Price:       "100",
		Slot:        1,
		TimestampMs: 1000,
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if obs.PoolID != pool {
		t.Errorf("pool = %s, want %s", obs.PoolID, pool)
	}
	if obs.Price != "100" {
		t.Errorf("price = %s, want 100", obs.Price)
	}
	if obs.FeedSource != "pyth" {
		t.Errorf("feed source = %s, want pyth", obs.FeedSource)
	}
}

func TestValidator_InvalidPoolKey(t *testing.T) {
	v, _ := NewValidator("", "pyth")

	cases := []string{
		"",
		"not-base58-0OIl",
		base58.Encode([]byte("short")),
	}
	for _, pool := range cases {
		_, err := v.Validate(PriceUpdate{Pool: pool, Price: "100"})
		if !errors.Is(err, ErrInvalidPoolKey) {
			t.Errorf("Validate(pool=%q) = %v, want ErrInvalidPoolKey", pool, err)
		}
	}
}

func TestValidator_InvalidPrice(t *testing.T) {
	v, _ := NewValidator("", "pyth")
	pool := testPoolKey(t)

	for _, price := range []string{"abc", "-5", "1.5"} {
		_, err := v.Validate(PriceUpdate{Pool: pool, Price: price})
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("Validate(price=%q) = %v, want ErrInvalidPrice", price, err)
		}
	}
}

func TestValidator_InvalidOracleKey(t *testing.T) {
	cases := []string{
		"not-base58-0OIl",
		base58.Encode([]byte("tooshort")),
	}
	for _, key := range cases {
		_, err := NewValidator(key, "pyth")
		if !errors.Is(err, ErrInvalidOracleKey) {
			t.Errorf("NewValidator(%q) = %v, want ErrInvalidOracleKey", key, err)
		}
	}
}

func TestValidator_OffCurveOracleKeyRejected(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	// Perturb the key until it falls off the curve. Roughly half of all
	// 32-byte strings are valid points, so a few steps suffice.
	candidate := make([]byte, 32)
	copy(candidate, pub)
	found := false
	for i := 0; i < 256; i++ {
		candidate[0] = byte(i)
		if !isOnCurve(candidate) {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no off-curve perturbation found")
	}

	_, err = NewValidator(base58.Encode(candidate), "pyth")
	if !errors.Is(err, ErrInvalidOracleKey) {
		t.Errorf("NewValidator(off-curve) = %v, want ErrInvalidOracleKey", err)
	}
}

func TestValidator_SignatureVerified(t *testing.T) {
	oracleKey, priv := testOracle(t)
	v, err := NewValidator(oracleKey, "pyth")
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	pool := testPoolKey(t)
	update := signedUpdate(pool, priv)

	obs, err := v.Validate(update)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if obs.Slot != update.Slot {
		t.Errorf("slot = %d, want %d", obs.Slot, update.Slot)
	}
}

func TestValidator_BadSignatureRejected(t *testing.T) {
	oracleKey, priv := testOracle(t)
	v, err := NewValidator(oracleKey, "pyth")
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	pool := testPoolKey(t)

	// Missing signature
	update := signedUpdate(pool, priv)
	update.Signature = ""
	if _, err := v.Validate(update); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Validate(no sig) = %v, want ErrBadSignature", err)
	}

	// Tampered payload invalidates the signature
	update = signedUpdate(pool, priv)
	update.Price = "999"
	if _, err := v.Validate(update); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Validate(tampered) = %v, want ErrBadSignature", err)
	}

	// Signature by a different key
	_, otherPriv := testOracle(t)
	update = signedUpdate(pool, otherPriv)
	if _, err := v.Validate(update); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Validate(wrong key) = %v, want ErrBadSignature", err)
	}
}
