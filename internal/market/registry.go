package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pattonkan/sui-go/sui"
)

var (
	ErrUnknownSymbol   = errors.New("market: unknown symbol")
	ErrDuplicateSymbol = errors.New("market: duplicate symbol")
	ErrAddressConflict = errors.New("market: symbol already resolved to a different address")
)

// RateBinding records a strategy committed for one reserve.
type RateBinding struct {
	Symbol string
	Asset  *sui.Address
	Params RateStrategyParams
}

// RiskBinding records risk parameters committed for one reserve.
type RiskBinding struct {
	Symbol string
	Asset  *sui.Address
	Params RiskParams
}

// Registry is the run's view of every asset and binding. Entries keep
// insertion order and an address, once resolved, never changes.
// Readers get copies.
type Registry struct {
	mu sync.RWMutex

	underlying []*UnderlyingAsset
	uIndex     map[string]int

	derived []*DerivedToken
	dIndex  map[string]int

	rates []RateBinding
	risk  []RiskBinding
	feeds []PriceFeedBinding
}

func NewRegistry() *Registry {
	return &Registry{
		uIndex: make(map[string]int),
		dIndex: make(map[string]int),
	}
}

// NewRegistryFromPlan registers every underlying asset of the plan
// together with its yield and debt token.
func NewRegistryFromPlan(plan Plan) (*Registry, error) {
	r := NewRegistry()
	for _, a := range plan.Assets {
		if err := r.AddUnderlying(a.Underlying); err != nil {
			return nil, err
		}
		for _, kind := range []DerivedKind{KindYield, KindDebt} {
			sym := DerivedSymbol(kind, a.Underlying.Symbol)
			err := r.AddDerived(DerivedToken{
				Kind:             kind,
				Name:             sym,
				Symbol:           sym,
				UnderlyingSymbol: a.Underlying.Symbol,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) AddUnderlying(a UnderlyingAsset) error {
	if a.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrUnknownSymbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uIndex[a.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, a.Symbol)
	}
	if _, ok := r.dIndex[a.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, a.Symbol)
	}
	r.uIndex[a.Symbol] = len(r.underlying)
	r.underlying = append(r.underlying, &a)
	return nil
}

// AddDerived registers a derived token. Its underlying must already be
// registered.
func (r *Registry) AddDerived(t DerivedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uIndex[t.UnderlyingSymbol]; !ok {
		return fmt.Errorf("%w: %s (underlying of %s)", ErrUnknownSymbol, t.UnderlyingSymbol, t.Symbol)
	}
	if _, ok := r.dIndex[t.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, t.Symbol)
	}
	if _, ok := r.uIndex[t.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, t.Symbol)
	}
	r.dIndex[t.Symbol] = len(r.derived)
	r.derived = append(r.derived, &t)
	return nil
}

// ResolveUnderlying stores the on-chain addresses of an underlying asset.
// Re-resolving to the same addresses is a no-op.
func (r *Registry) ResolveUnderlying(symbol string, metadata, account *sui.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.uIndex[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	a := r.underlying[i]
	if err := resolve(symbol, &a.MetadataAddress, metadata); err != nil {
		return err
	}
	return resolve(symbol, &a.AccountAddress, account)
}

func (r *Registry) ResolveDerived(symbol string, metadata, account *sui.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.dIndex[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	t := r.derived[i]
	if err := resolve(symbol, &t.MetadataAddress, metadata); err != nil {
		return err
	}
	return resolve(symbol, &t.AccountAddress, account)
}

func resolve(symbol string, slot **sui.Address, addr *sui.Address) error {
	if addr == nil {
		return fmt.Errorf("market: nil address for %s", symbol)
	}
	if *slot != nil {
		if **slot != *addr {
			return fmt.Errorf("%w: %s has %s, got %s", ErrAddressConflict, symbol, (*slot).String(), addr.String())
		}
		return nil
	}
	c := *addr
	*slot = &c
	return nil
}

func (r *Registry) Underlying(symbol string) (UnderlyingAsset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.uIndex[symbol]
	if !ok {
		return UnderlyingAsset{}, false
	}
	return *r.underlying[i], true
}

// Underlyings returns every underlying asset in registration order.
func (r *Registry) Underlyings() []UnderlyingAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UnderlyingAsset, 0, len(r.underlying))
	for _, a := range r.underlying {
		out = append(out, *a)
	}
	return out
}

func (r *Registry) Derived(symbol string) (DerivedToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.dIndex[symbol]
	if !ok {
		return DerivedToken{}, false
	}
	return *r.derived[i], true
}

// DerivedFor returns the derived tokens of an underlying, yield first.
func (r *Registry) DerivedFor(underlying string) []DerivedToken {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []DerivedToken
	for _, kind := range []DerivedKind{KindYield, KindDebt} {
		for _, t := range r.derived {
			if t.UnderlyingSymbol == underlying && t.Kind == kind {
				out = append(out, *t)
			}
		}
	}
	return out
}

func (r *Registry) DerivedTokens() []DerivedToken {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DerivedToken, 0, len(r.derived))
	for _, t := range r.derived {
		out = append(out, *t)
	}
	return out
}

func (r *Registry) RecordRateStrategy(b RateBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates = append(r.rates, b)
}

func (r *Registry) RateStrategies() []RateBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RateBinding(nil), r.rates...)
}

func (r *Registry) RecordRiskConfig(b RiskBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.risk = append(r.risk, b)
}

func (r *Registry) RiskConfigs() []RiskBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RiskBinding(nil), r.risk...)
}

func (r *Registry) RecordFeed(b PriceFeedBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, b)
}

func (r *Registry) Feeds() []PriceFeedBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PriceFeedBinding(nil), r.feeds...)
}
