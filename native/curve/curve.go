package curve

import (
	"errors"
	"math/big"
)

// MaxRatioPpm is the upper bound of the reserve ratio, i.e. a fully
// collateralised curve.
const MaxRatioPpm uint32 = 1_000_000

var (
	errInvalidRatio   = errors.New("curve: reserve ratio must be in (0, 1000000]")
	errInvalidReserve = errors.New("curve: reserve must be positive")
	errNilAmount      = errors.New("curve: amount must not be nil")
	errNegativeAmount = errors.New("curve: amount must not be negative")
)

// PricingCurve converts between reserve deposits and token amounts. Both
// functions are pure and deterministic; implementations must be monotonically
// non-decreasing in the trailing amount argument, and SaleReturn must never
// return more than the supplied reserve.
type PricingCurve interface {
	// PurchaseReturn computes the tokens minted for depositing deposit units
	// of reserve asset against the given supply and reserve.
	PurchaseReturn(supply, reserve *big.Int, ratioPpm uint32, deposit *big.Int) (*big.Int, error)
	// SaleReturn computes the reserve paid out for redeeming amount tokens
	// against the given supply and reserve.
	SaleReturn(supply, reserve *big.Int, ratioPpm uint32, amount *big.Int) (*big.Int, error)
}

func validateInputs(supply, reserve *big.Int, ratioPpm uint32, amount *big.Int) error {
	if ratioPpm == 0 || ratioPpm > MaxRatioPpm {
		return errInvalidRatio
	}
	if reserve == nil || reserve.Sign() <= 0 {
		return errInvalidReserve
	}
	if supply == nil || amount == nil {
		return errNilAmount
	}
	if supply.Sign() < 0 || amount.Sign() < 0 {
		return errNegativeAmount
	}
	return nil
}
