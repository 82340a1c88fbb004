package issuance

import (
	"errors"
	"math/big"
	"testing"
)

func TestSplitMintCompleteness(t *testing.T) {
	for amount := int64(0); amount <= 250; amount++ {
		for pct := uint64(0); pct <= 100; pct += 5 {
			buyer, founder, err := SplitMint(big.NewInt(amount), pct)
			if err != nil {
				t.Fatalf("split failed at amount=%d pct=%d: %v", amount, pct, err)
			}
			sum := new(big.Int).Add(buyer, founder)
			if sum.Cmp(big.NewInt(amount)) > 0 {
				t.Fatalf("split exceeds amount at amount=%d pct=%d: %s", amount, pct, sum)
			}
			deficit := new(big.Int).Sub(big.NewInt(amount), sum)
			if deficit.Cmp(big.NewInt(1)) > 0 {
				t.Fatalf("split loses more than one unit at amount=%d pct=%d: %s", amount, pct, deficit)
			}
		}
	}
}

func TestSplitMintMonotonicInPercentage(t *testing.T) {
	amount := big.NewInt(997)
	prevFounder := big.NewInt(-1)
	prevBuyer := big.NewInt(int64(^uint32(0)))
	for pct := uint64(0); pct <= 100; pct++ {
		buyer, founder, err := SplitMint(amount, pct)
		if err != nil {
			t.Fatalf("split failed at pct=%d: %v", pct, err)
		}
		if founder.Cmp(prevFounder) < 0 {
			t.Fatalf("founder share decreased at pct=%d", pct)
		}
		if buyer.Cmp(prevBuyer) > 0 {
			t.Fatalf("buyer share increased at pct=%d", pct)
		}
		prevFounder, prevBuyer = founder, buyer
	}
}

func TestSplitMintBounds(t *testing.T) {
	buyer, founder, err := SplitMint(big.NewInt(50), 10)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if buyer.Cmp(big.NewInt(45)) != 0 || founder.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected split: buyer=%s founder=%s", buyer, founder)
	}

	buyer, founder, err = SplitMint(big.NewInt(50), 100)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if buyer.Sign() != 0 || founder.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected full founder share, got buyer=%s founder=%s", buyer, founder)
	}

	if _, _, err := SplitMint(big.NewInt(50), 101); !errors.Is(err, ErrInvalidPercentage) {
		t.Fatalf("expected invalid percentage, got %v", err)
	}
	if _, _, err := SplitMint(big.NewInt(-1), 10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}
