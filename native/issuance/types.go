package issuance

import "math/big"

// MintResult reports a settled (or estimated) buy. TotalMinted is the
// authoritative figure actually issued: BuyerShare + FounderShare, which may
// trail the raw curve output by the split's rounding dust.
type MintResult struct {
	Deposited    *big.Int `json:"deposited"`
	TotalMinted  *big.Int `json:"totalMinted"`
	BuyerShare   *big.Int `json:"buyerShare"`
	FounderShare *big.Int `json:"founderShare"`

	// rawMint is the pre-split curve output, kept only to account rounding
	// dust. It is never issued, persisted or exposed.
	rawMint *big.Int
}

// BurnResult reports a settled sell.
type BurnResult struct {
	Burned     *big.Int `json:"burned"`
	Reimbursed *big.Int `json:"reimbursed"`
}

// Clone returns a deep copy of the mint result.
func (r *MintResult) Clone() *MintResult {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Deposited != nil {
		clone.Deposited = new(big.Int).Set(r.Deposited)
	}
	if r.TotalMinted != nil {
		clone.TotalMinted = new(big.Int).Set(r.TotalMinted)
	}
	if r.BuyerShare != nil {
		clone.BuyerShare = new(big.Int).Set(r.BuyerShare)
	}
	if r.FounderShare != nil {
		clone.FounderShare = new(big.Int).Set(r.FounderShare)
	}
	return &clone
}
