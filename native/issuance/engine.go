package issuance

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"curvemint/core/events"
	"curvemint/native/curve"
	"curvemint/observability/metrics"
)

// Errors surfaced to callers. They cover the whole failure taxonomy of the
// engine; RPC maps them onto wire codes.
var (
	ErrInvalidAmount       = errors.New("issuance engine: amount must be positive")
	ErrInsufficientBalance = errors.New("issuance engine: insufficient token balance")
	ErrPayoutFailed        = errors.New("issuance engine: reserve payout failed")
	ErrDepositFailed       = errors.New("issuance engine: reserve deposit failed")
	ErrInvalidPercentage   = errors.New("issuance engine: percentage must not exceed 100")
	ErrUnauthorized        = errors.New("issuance engine: caller is not the admin")
	ErrAlreadyInitialised  = errors.New("issuance engine: genesis already initialised")

	errNilState       = errors.New("issuance engine: state not configured")
	errNilLedger      = errors.New("issuance engine: token ledger not configured")
	errNilCurve       = errors.New("issuance engine: pricing curve not configured")
	errNilPool        = errors.New("issuance engine: reserve pool not configured")
	errInvalidRatio   = errors.New("issuance engine: reserve ratio must be in (0, 1000000]")
	errNotInitialised = errors.New("issuance engine: genesis not initialised")
	errZeroReserve    = errors.New("issuance engine: reserve seed must be positive")
)

// DefaultFounderPercentage is the founder share applied until the admin
// changes it.
const DefaultFounderPercentage uint64 = 10

var (
	reserveBalanceKey    = []byte("issuance/reserveBalance")
	founderPercentageKey = []byte("issuance/founderPercentage")
	initialSupplyKey     = []byte("issuance/initialSupply")
	genesisKey           = []byte("issuance/genesis")
)

// engineState is the persistence the engine needs for its own scalars.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger is the fungible-token collaborator. The engine never touches
// holder balances except through it.
type TokenLedger interface {
	Issue(holder [20]byte, amount *big.Int) error
	Redeem(holder [20]byte, amount *big.Int) error
	BalanceOf(holder [20]byte) (*big.Int, error)
	TotalSupply() (*big.Int, error)
}

// ReservePool custodies the reserve asset. Payout may fail for any reason;
// the engine treats a failed payout as a full abort.
type ReservePool interface {
	Collect(from [20]byte, amount *big.Int) error
	Payout(to [20]byte, amount *big.Int) error
	Held() (*big.Int, error)
}

// Engine orchestrates buys and sells against the pricing curve, maintains the
// tracked reserve balance and routes the founder share of every mint. All
// public operations are serialised on an internal mutex: the price is always
// computed from the same snapshot the mutation applies to.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	ledger   TokenLedger
	pricing  curve.PricingCurve
	pool     ReservePool
	emitter  events.Emitter
	meter    *metrics.IssuanceMetrics
	ratioPpm uint32
	admin    [20]byte
	founder  [20]byte
}

// NewEngine constructs an issuance engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		pricing: curve.NewBancorCurve(),
	}
}

// SetState configures the state backend used for the engine's own scalars.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetCurve overrides the pricing curve.
func (e *Engine) SetCurve(pricing curve.PricingCurve) {
	if pricing == nil {
		e.pricing = curve.NewBancorCurve()
		return
	}
	e.pricing = pricing
}

// SetPool configures the reserve custodian.
func (e *Engine) SetPool(pool ReservePool) { e.pool = pool }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics wires the prometheus series recorded on settled operations.
func (e *Engine) SetMetrics(meter *metrics.IssuanceMetrics) { e.meter = meter }

// SetReserveRatio fixes the curve steepness in parts per million.
func (e *Engine) SetReserveRatio(ppm uint32) error {
	if ppm == 0 || ppm > curve.MaxRatioPpm {
		return errInvalidRatio
	}
	e.ratioPpm = ppm
	return nil
}

// SetAdmin configures the single identity allowed to change the founder split.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetFounder configures the account receiving the founder share of every mint.
func (e *Engine) SetFounder(addr [20]byte) { e.founder = addr }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) requireWired() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.pricing == nil:
		return errNilCurve
	case e.pool == nil:
		return errNilPool
	case e.ratioPpm == 0:
		return errInvalidRatio
	}
	return nil
}

// Initialise seeds the genesis state exactly once: an optional initial token
// grant to the deployer and the nonzero reserve seed. The grant deliberately
// does not contribute to the tracked reserve; initialSupply is recorded for
// audit only and is never a pricing input.
func (e *Engine) Initialise(deployer [20]byte, initialSupply, reserveSeed *big.Int) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var done bool
	if ok, err := e.state.KVGet(genesisKey, &done); err != nil {
		return err
	} else if ok && done {
		return ErrAlreadyInitialised
	}
	if reserveSeed == nil || reserveSeed.Sign() <= 0 {
		return errZeroReserve
	}
	if initialSupply == nil {
		initialSupply = big.NewInt(0)
	}
	if initialSupply.Sign() > 0 {
		if err := e.ledger.Issue(deployer, initialSupply); err != nil {
			return err
		}
	}
	if err := e.state.KVPut(initialSupplyKey, initialSupply.String()); err != nil {
		return err
	}
	if err := e.storeReserve(reserveSeed); err != nil {
		return err
	}
	return e.state.KVPut(genesisKey, true)
}

// Buy converts a reserve deposit into newly issued tokens. The deposit is
// collected from the buyer's reserve balance, the mint is split between buyer
// and founder, and the tracked reserve grows by exactly the deposit.
func (e *Engine) Buy(buyer [20]byte, deposit *big.Int) (*MintResult, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	quote, reserve, err := e.quoteBuy(deposit)
	if err != nil {
		return nil, err
	}
	if err := e.pool.Collect(buyer, deposit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDepositFailed, err)
	}
	// No rollback path past this point: the curve and split are pure, and the
	// issuances cannot fail once priced.
	if quote.BuyerShare.Sign() > 0 {
		if err := e.ledger.Issue(buyer, quote.BuyerShare); err != nil {
			return nil, err
		}
	}
	if quote.FounderShare.Sign() > 0 {
		if err := e.ledger.Issue(e.founder, quote.FounderShare); err != nil {
			return nil, err
		}
	}
	newReserve := new(big.Int).Add(reserve, deposit)
	if err := e.storeReserve(newReserve); err != nil {
		return nil, err
	}
	dust := new(big.Int).Sub(quote.rawMint, quote.TotalMinted)
	e.meter.RecordMint(dust)
	e.meter.SetReserveBalance(newReserve)
	e.emit(events.TokenMinted{
		Buyer:        buyer,
		Deposited:    new(big.Int).Set(deposit),
		TotalMinted:  new(big.Int).Set(quote.TotalMinted),
		BuyerShare:   new(big.Int).Set(quote.BuyerShare),
		FounderShare: new(big.Int).Set(quote.FounderShare),
	})
	return quote.Clone(), nil
}

// Sell redeems tokens for reserve asset. The payout happens first: only when
// the reserve transfer has fully resolved does the engine decrement the
// tracked reserve, burn the tokens and emit the event. A failed payout aborts
// the operation with no state mutation so tokens are never burned unpaid.
func (e *Engine) Sell(seller [20]byte, amount *big.Int) (*BurnResult, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	balance, err := e.ledger.BalanceOf(seller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}
	reserve, err := e.loadReserve()
	if err != nil {
		return nil, err
	}
	reimburse, err := e.pricing.SaleReturn(supply, reserve, e.ratioPpm, amount)
	if err != nil {
		return nil, err
	}
	// Checked subtraction: the tracked reserve must cover the payout.
	if reserve.Cmp(reimburse) < 0 {
		e.meter.RecordPayoutFailure()
		return nil, fmt.Errorf("%w: reserve %s cannot cover %s", ErrPayoutFailed, reserve, reimburse)
	}
	if err := e.pool.Payout(seller, reimburse); err != nil {
		e.meter.RecordPayoutFailure()
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}
	newReserve := new(big.Int).Sub(reserve, reimburse)
	if err := e.storeReserve(newReserve); err != nil {
		return nil, err
	}
	if err := e.ledger.Redeem(seller, amount); err != nil {
		return nil, err
	}
	e.meter.RecordBurn()
	e.meter.SetReserveBalance(newReserve)
	e.emit(events.TokenBurned{
		Seller:     seller,
		Burned:     new(big.Int).Set(amount),
		Reimbursed: new(big.Int).Set(reimburse),
	})
	return &BurnResult{Burned: new(big.Int).Set(amount), Reimbursed: reimburse}, nil
}

// EstimateBuyReturn prices a buy without mutating state. It runs the exact
// formula and split used by Buy, so an estimate immediately followed by a buy
// with no intervening state change returns identical shares.
func (e *Engine) EstimateBuyReturn(deposit *big.Int) (*MintResult, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	quote, _, err := e.quoteBuy(deposit)
	if err != nil {
		return nil, err
	}
	return quote.Clone(), nil
}

// quoteBuy snapshots supply and reserve and prices a deposit against them.
// The curve sees the reserve including the incoming deposit. Callers must
// hold the engine mutex.
func (e *Engine) quoteBuy(deposit *big.Int) (*MintResult, *big.Int, error) {
	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return nil, nil, err
	}
	reserve, err := e.loadReserve()
	if err != nil {
		return nil, nil, err
	}
	priced := new(big.Int).Add(reserve, deposit)
	mintAmount, err := e.pricing.PurchaseReturn(supply, priced, e.ratioPpm, deposit)
	if err != nil {
		return nil, nil, err
	}
	pct, err := e.founderPercentageLocked()
	if err != nil {
		return nil, nil, err
	}
	buyerShare, founderShare, err := SplitMint(mintAmount, pct)
	if err != nil {
		return nil, nil, err
	}
	quote := &MintResult{
		Deposited:    new(big.Int).Set(deposit),
		TotalMinted:  new(big.Int).Add(buyerShare, founderShare),
		BuyerShare:   buyerShare,
		FounderShare: founderShare,
	}
	quote.rawMint = mintAmount
	return quote, reserve, nil
}

// ChangeFounderPercentage adjusts the founder split. Only the configured
// admin may call it; the new split applies to the next buy, never
// retroactively.
func (e *Engine) ChangeFounderPercentage(caller [20]byte, percentage uint64) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrUnauthorized
	}
	if percentage > 100 {
		return ErrInvalidPercentage
	}
	if err := e.state.KVPut(founderPercentageKey, percentage); err != nil {
		return err
	}
	e.emit(events.FounderPercentageChanged{Admin: caller, Percentage: percentage})
	return nil
}

// FounderPercentage returns the currently configured founder split.
func (e *Engine) FounderPercentage() (uint64, error) {
	if err := e.requireWired(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.founderPercentageLocked()
}

func (e *Engine) founderPercentageLocked() (uint64, error) {
	var pct uint64
	ok, err := e.state.KVGet(founderPercentageKey, &pct)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultFounderPercentage, nil
	}
	return pct, nil
}

// ReserveBalance returns the tracked reserve backing the token. This is the
// pricing input; it is reconciled against ReserveAssetHeld only by auditors.
func (e *Engine) ReserveBalance() (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadReserve()
}

// ReserveAssetHeld returns the live custodied reserve balance. Callers must
// not conflate it with the tracked ReserveBalance used for pricing.
func (e *Engine) ReserveAssetHeld() (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	return e.pool.Held()
}

// InitialSupply returns the genesis grant recorded at initialisation.
func (e *Engine) InitialSupply() (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	var stored string
	ok, err := e.state.KVGet(initialSupplyKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == "" {
		return big.NewInt(0), nil
	}
	supply, valid := new(big.Int).SetString(stored, 10)
	if !valid {
		return nil, errors.New("issuance engine: corrupt initial supply record")
	}
	return supply, nil
}

// ReserveRatio returns the configured curve steepness in parts per million.
func (e *Engine) ReserveRatio() uint32 { return e.ratioPpm }

func (e *Engine) loadReserve() (*big.Int, error) {
	var stored string
	ok, err := e.state.KVGet(reserveBalanceKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == "" {
		return nil, errNotInitialised
	}
	reserve, valid := new(big.Int).SetString(stored, 10)
	if !valid {
		return nil, errors.New("issuance engine: corrupt reserve record")
	}
	return reserve, nil
}

func (e *Engine) storeReserve(reserve *big.Int) error {
	if reserve.Sign() < 0 {
		return fmt.Errorf("%w: reserve went negative", ErrPayoutFailed)
	}
	return e.state.KVPut(reserveBalanceKey, reserve.String())
}
