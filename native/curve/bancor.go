package curve

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const floatPrec = 128

// BancorCurve prices the token against a constant reserve ratio. With the
// ratio at MaxRatioPpm the curve degenerates to a linear share price
// (mint = supply * deposit / reserve) and is computed exactly over integers;
// fractional ratios use the power formulas
//
//	purchase = supply * ((1 + deposit/reserve)^(ratio) - 1)
//	sale     = reserve * (1 - (1 - amount/supply)^(1/ratio))
//
// evaluated in high-precision floating point with the result truncated toward
// zero. Sale returns are clamped so the payout never exceeds the reserve.
type BancorCurve struct{}

// NewBancorCurve returns the default constant-reserve-ratio curve.
func NewBancorCurve() *BancorCurve { return &BancorCurve{} }

// PurchaseReturn implements PricingCurve.
func (c *BancorCurve) PurchaseReturn(supply, reserve *big.Int, ratioPpm uint32, deposit *big.Int) (*big.Int, error) {
	if err := validateInputs(supply, reserve, ratioPpm, deposit); err != nil {
		return nil, err
	}
	if deposit.Sign() == 0 || supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if ratioPpm == MaxRatioPpm {
		return mulDiv(supply, deposit, reserve), nil
	}
	// (1 + deposit/reserve)^(ratio) - 1, scaled by supply.
	base := new(big.Float).SetPrec(floatPrec).Quo(
		new(big.Float).SetPrec(floatPrec).SetInt(deposit),
		new(big.Float).SetPrec(floatPrec).SetInt(reserve),
	)
	base.Add(base, big.NewFloat(1))
	baseF, _ := base.Float64()
	exponent := float64(ratioPpm) / float64(MaxRatioPpm)
	grown := math.Pow(baseF, exponent)
	if math.IsInf(grown, 0) || math.IsNaN(grown) {
		return nil, errInvalidReserve
	}
	factor := new(big.Float).SetPrec(floatPrec).SetFloat64(grown)
	factor.Sub(factor, big.NewFloat(1))
	if factor.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	minted := new(big.Float).SetPrec(floatPrec).Mul(
		new(big.Float).SetPrec(floatPrec).SetInt(supply),
		factor,
	)
	out, _ := minted.Int(nil)
	return out, nil
}

// SaleReturn implements PricingCurve.
func (c *BancorCurve) SaleReturn(supply, reserve *big.Int, ratioPpm uint32, amount *big.Int) (*big.Int, error) {
	if err := validateInputs(supply, reserve, ratioPpm, amount); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 || supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	// Redeeming the entire supply drains the reserve exactly.
	if amount.Cmp(supply) >= 0 {
		return new(big.Int).Set(reserve), nil
	}
	var payout *big.Int
	if ratioPpm == MaxRatioPpm {
		payout = mulDiv(reserve, amount, supply)
	} else {
		remaining := new(big.Float).SetPrec(floatPrec).Quo(
			new(big.Float).SetPrec(floatPrec).SetInt(amount),
			new(big.Float).SetPrec(floatPrec).SetInt(supply),
		)
		remainingF, _ := remaining.Float64()
		exponent := float64(MaxRatioPpm) / float64(ratioPpm)
		kept := math.Pow(1-remainingF, exponent)
		if math.IsNaN(kept) {
			return nil, errNegativeAmount
		}
		share := new(big.Float).SetPrec(floatPrec).Sub(big.NewFloat(1), new(big.Float).SetFloat64(kept))
		if share.Sign() <= 0 {
			return big.NewInt(0), nil
		}
		paid := new(big.Float).SetPrec(floatPrec).Mul(
			new(big.Float).SetPrec(floatPrec).SetInt(reserve),
			share,
		)
		payout, _ = paid.Int(nil)
	}
	if payout.Cmp(reserve) > 0 {
		payout = new(big.Int).Set(reserve)
	}
	return payout, nil
}

// mulDiv computes floor(a * b / d). The fast path stays on uint256 words and
// falls back to big.Int when the product overflows 256 bits.
func mulDiv(a, b, d *big.Int) *big.Int {
	ua, overflowA := uint256.FromBig(a)
	ub, overflowB := uint256.FromBig(b)
	ud, overflowD := uint256.FromBig(d)
	if !overflowA && !overflowB && !overflowD && !ud.IsZero() {
		product := new(uint256.Int)
		if _, overflow := product.MulOverflow(ua, ub); !overflow {
			return product.Div(product, ud).ToBig()
		}
	}
	out := new(big.Int).Mul(a, b)
	return out.Div(out, d)
}
