package issuance

import "math/big"

var oneHundred = big.NewInt(100)

// SplitMint divides a freshly minted amount between the buyer and the founder.
// Both shares are floor divisions, so their sum may fall short of amount by up
// to two units; that remainder is intentional dust and is never issued. The
// authoritative minted total is always buyerShare + founderShare.
func SplitMint(amount *big.Int, percentage uint64) (buyerShare, founderShare *big.Int, err error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	if percentage > 100 {
		return nil, nil, ErrInvalidPercentage
	}
	pct := new(big.Int).SetUint64(percentage)
	founderShare = new(big.Int).Mul(amount, pct)
	founderShare.Div(founderShare, oneHundred)
	buyerShare = new(big.Int).Mul(amount, new(big.Int).Sub(oneHundred, pct))
	buyerShare.Div(buyerShare, oneHundred)
	return buyerShare, founderShare, nil
}
