package events

import (
	"math/big"

	"curvemint/core/types"
	"curvemint/crypto"
)

const (
	// TypeTokenMinted is emitted whenever a buy settles and new tokens are issued.
	TypeTokenMinted = "issuance.token.minted"
	// TypeTokenBurned is emitted whenever a sell settles and tokens are redeemed.
	TypeTokenBurned = "issuance.token.burned"
	// TypeFounderPercentageChanged is emitted when the admin adjusts the founder split.
	TypeFounderPercentageChanged = "issuance.founder.percentageChanged"
)

// TokenMinted captures a settled buy: the deposit received, the authoritative
// minted total and how it was split between the buyer and the founder.
type TokenMinted struct {
	Buyer        [20]byte
	Deposited    *big.Int
	TotalMinted  *big.Int
	BuyerShare   *big.Int
	FounderShare *big.Int
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"buyer":        crypto.MustNewAddress(crypto.CVMPrefix, e.Buyer[:]).String(),
			"deposited":    bigString(e.Deposited),
			"totalMinted":  bigString(e.TotalMinted),
			"buyerShare":   bigString(e.BuyerShare),
			"founderShare": bigString(e.FounderShare),
		},
	}
}

// TokenBurned captures a settled sell: the tokens burned and the reserve paid out.
type TokenBurned struct {
	Seller     [20]byte
	Burned     *big.Int
	Reimbursed *big.Int
}

func (TokenBurned) EventType() string { return TypeTokenBurned }

func (e TokenBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenBurned,
		Attributes: map[string]string{
			"seller":     crypto.MustNewAddress(crypto.CVMPrefix, e.Seller[:]).String(),
			"burned":     bigString(e.Burned),
			"reimbursed": bigString(e.Reimbursed),
		},
	}
}

// FounderPercentageChanged records an admin change to the founder split.
type FounderPercentageChanged struct {
	Admin      [20]byte
	Percentage uint64
}

func (FounderPercentageChanged) EventType() string { return TypeFounderPercentageChanged }

func (e FounderPercentageChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeFounderPercentageChanged,
		Attributes: map[string]string{
			"admin":      crypto.MustNewAddress(crypto.CVMPrefix, e.Admin[:]).String(),
			"percentage": new(big.Int).SetUint64(e.Percentage).String(),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
