package curve

import (
	"errors"
	"math/big"
	"testing"
)

func TestPurchaseReturnLinearRatio(t *testing.T) {
	c := NewBancorCurve()
	minted, err := c.PurchaseReturn(big.NewInt(1_000), big.NewInt(500), MaxRatioPpm, big.NewInt(100))
	if err != nil {
		t.Fatalf("purchase return failed: %v", err)
	}
	if minted.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected 200 minted, got %s", minted)
	}
}

func TestPurchaseReturnZeroDeposit(t *testing.T) {
	c := NewBancorCurve()
	minted, err := c.PurchaseReturn(big.NewInt(1_000), big.NewInt(500), MaxRatioPpm, big.NewInt(0))
	if err != nil {
		t.Fatalf("purchase return failed: %v", err)
	}
	if minted.Sign() != 0 {
		t.Fatalf("expected zero mint, got %s", minted)
	}
}

func TestPurchaseReturnHalfRatio(t *testing.T) {
	c := NewBancorCurve()
	// (1 + 300/100)^0.5 = 2, so the supply doubles.
	minted, err := c.PurchaseReturn(big.NewInt(100), big.NewInt(100), 500_000, big.NewInt(300))
	if err != nil {
		t.Fatalf("purchase return failed: %v", err)
	}
	if minted.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 minted, got %s", minted)
	}
}

func TestSaleReturnLinearRatio(t *testing.T) {
	c := NewBancorCurve()
	paid, err := c.SaleReturn(big.NewInt(1_000), big.NewInt(500), MaxRatioPpm, big.NewInt(100))
	if err != nil {
		t.Fatalf("sale return failed: %v", err)
	}
	if paid.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected payout 50, got %s", paid)
	}
}

func TestSaleReturnHalfRatio(t *testing.T) {
	c := NewBancorCurve()
	// 1 - (1 - 50/100)^2 = 0.75 of a 400 reserve.
	paid, err := c.SaleReturn(big.NewInt(100), big.NewInt(400), 500_000, big.NewInt(50))
	if err != nil {
		t.Fatalf("sale return failed: %v", err)
	}
	if paid.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected payout 300, got %s", paid)
	}
}

func TestSaleReturnFullSupplyDrainsReserve(t *testing.T) {
	c := NewBancorCurve()
	reserve := big.NewInt(12_345)
	paid, err := c.SaleReturn(big.NewInt(777), reserve, 250_000, big.NewInt(777))
	if err != nil {
		t.Fatalf("sale return failed: %v", err)
	}
	if paid.Cmp(reserve) != 0 {
		t.Fatalf("expected full reserve %s, got %s", reserve, paid)
	}
	if paid == reserve {
		t.Fatalf("payout must be a copy, not the caller's reserve pointer")
	}
}

func TestSaleReturnNeverExceedsReserve(t *testing.T) {
	c := NewBancorCurve()
	reserve := big.NewInt(1_000)
	for amount := int64(1); amount < 100; amount += 7 {
		paid, err := c.SaleReturn(big.NewInt(100), reserve, 100_000, big.NewInt(amount))
		if err != nil {
			t.Fatalf("sale return failed at %d: %v", amount, err)
		}
		if paid.Cmp(reserve) > 0 {
			t.Fatalf("payout %s exceeds reserve at amount %d", paid, amount)
		}
	}
}

func TestPurchaseReturnMonotonicInDeposit(t *testing.T) {
	c := NewBancorCurve()
	prev := big.NewInt(-1)
	for deposit := int64(0); deposit <= 1_000; deposit += 50 {
		minted, err := c.PurchaseReturn(big.NewInt(10_000), big.NewInt(2_500), 400_000, big.NewInt(deposit))
		if err != nil {
			t.Fatalf("purchase return failed at %d: %v", deposit, err)
		}
		if minted.Cmp(prev) < 0 {
			t.Fatalf("mint decreased at deposit %d: %s < %s", deposit, minted, prev)
		}
		prev = minted
	}
}

func TestValidationRejectsBadInputs(t *testing.T) {
	c := NewBancorCurve()
	if _, err := c.PurchaseReturn(big.NewInt(1), big.NewInt(1), 0, big.NewInt(1)); !errors.Is(err, errInvalidRatio) {
		t.Fatalf("expected ratio error, got %v", err)
	}
	if _, err := c.PurchaseReturn(big.NewInt(1), big.NewInt(1), MaxRatioPpm+1, big.NewInt(1)); !errors.Is(err, errInvalidRatio) {
		t.Fatalf("expected ratio error, got %v", err)
	}
	if _, err := c.SaleReturn(big.NewInt(1), big.NewInt(0), MaxRatioPpm, big.NewInt(1)); !errors.Is(err, errInvalidReserve) {
		t.Fatalf("expected reserve error, got %v", err)
	}
	if _, err := c.SaleReturn(big.NewInt(1), big.NewInt(1), MaxRatioPpm, big.NewInt(-1)); !errors.Is(err, errNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}

func TestMulDivLargeOperands(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	out := mulDiv(huge, huge, huge)
	if out.Cmp(huge) != 0 {
		t.Fatalf("big.Int fallback broken: got %s", out)
	}
}
