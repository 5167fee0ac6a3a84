// Package market holds the shared token-economy state and the pluggable
// controllers (pricing, staking, treasury, volume) that mutate it once per
// tick.
package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tokenlab/abm-engine/pkg/utils"
)

var minPrice = decimal.NewFromFloat(0.01)

// Config seeds the initial state of a MarketState.
type Config struct {
	TotalSupply              decimal.Decimal
	InitialPrice             decimal.Decimal
	InitialCirculatingSupply decimal.Decimal
}

// State is the shared, mutable token economy. All mutation happens through
// its methods, each of which takes the internal mutex, so concurrent
// controllers never observe a torn update mid-tick.
type State struct {
	mu sync.Mutex

	Iteration int

	TotalSupply       decimal.Decimal
	CirculatingSupply decimal.Decimal
	Price             decimal.Decimal

	TotalSellPressure     decimal.Decimal
	TotalStakePressure    decimal.Decimal
	TotalUnlockThisMonth  decimal.Decimal
	TransactionsValueFiat decimal.Decimal

	PriceHistory  []decimal.Decimal
	SupplyHistory []decimal.Decimal
}

// NewState constructs a State from a Config.
func NewState(cfg Config) *State {
	s := &State{
		TotalSupply:       cfg.TotalSupply,
		CirculatingSupply: cfg.InitialCirculatingSupply,
		Price:             cfg.InitialPrice,
	}
	s.PriceHistory = []decimal.Decimal{cfg.InitialPrice}
	s.SupplyHistory = []decimal.Decimal{cfg.InitialCirculatingSupply}
	return s
}

// ResetMonthlyPressures clears the per-tick accumulators. Called once at the
// start of every simulation tick.
func (s *State) ResetMonthlyPressures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalSellPressure = decimal.Zero
	s.TotalStakePressure = decimal.Zero
	s.TotalUnlockThisMonth = decimal.Zero
	s.TransactionsValueFiat = decimal.Zero
}

// SetMonthlyPressures records this tick's aggregated sell/stake/unlock
// pressure, computed from the agent batch aggregation.
func (s *State) SetMonthlyPressures(sell, stake, unlock decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalSellPressure = sell
	s.TotalStakePressure = stake
	s.TotalUnlockThisMonth = unlock
}

// UpdateCirculatingSupply adds amount (which may be negative, e.g. a burn)
// to circulating supply, floored at zero, and records the new value.
func (s *State) UpdateCirculatingSupply(amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := utils.MaxDecimal(s.CirculatingSupply.Add(amount), decimal.Zero)
	s.CirculatingSupply = next
	s.SupplyHistory = append(s.SupplyHistory, next)
}

// UpdatePrice sets the new price, floored at the protocol minimum, and
// records it into price history.
func (s *State) UpdatePrice(price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price = utils.MaxDecimal(price, minPrice)
	s.Price = price
	s.PriceHistory = append(s.PriceHistory, price)
}

// RecordTransactionValue sets the fiat value transacted via sells this tick.
func (s *State) RecordTransactionValue(value decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TransactionsValueFiat = value
}

// IncrementIteration advances the tick counter.
func (s *State) IncrementIteration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Iteration++
}

// Snapshot is a read-only, race-free copy of the fields controllers and the
// engine need to read between tick phases.
type Snapshot struct {
	Iteration             int
	TotalSupply           decimal.Decimal
	CirculatingSupply     decimal.Decimal
	Price                 decimal.Decimal
	TotalSellPressure     decimal.Decimal
	TotalStakePressure    decimal.Decimal
	TotalUnlockThisMonth  decimal.Decimal
	TransactionsValueFiat decimal.Decimal
}

// Snap takes a consistent snapshot of the current state.
func (s *State) Snap() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Iteration:             s.Iteration,
		TotalSupply:           s.TotalSupply,
		CirculatingSupply:     s.CirculatingSupply,
		Price:                 s.Price,
		TotalSellPressure:     s.TotalSellPressure,
		TotalStakePressure:    s.TotalStakePressure,
		TotalUnlockThisMonth:  s.TotalUnlockThisMonth,
		TransactionsValueFiat: s.TransactionsValueFiat,
	}
}

// CurrentPrice returns the current price under lock.
func (s *State) CurrentPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Price
}

// MarketCap returns circulating supply times current price.
func (s *State) MarketCap() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CirculatingSupply.Mul(s.Price)
}

// PriceChangePct returns the change in price over the given lookback in
// months as a fraction (0.05 for a 5% rise), or 0 if there isn't enough
// history.
func (s *State) PriceChangePct(lookbackMonths int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.PriceHistory)
	if n <= lookbackMonths || lookbackMonths <= 0 {
		return 0
	}
	prev := s.PriceHistory[n-1-lookbackMonths]
	if prev.IsZero() {
		return 0
	}
	cur := s.PriceHistory[n-1]
	return utils.CalculatePercentageChange(prev, cur).Div(decimal.NewFromInt(100)).InexactFloat64()
}
