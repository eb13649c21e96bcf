// Package gatewaytest provides an in-memory lending market that speaks
// the gateway.Gateway interface, for tests of the bootstrap pipeline.
package gatewaytest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
)

type CallKind string

const (
	KindTx   CallKind = "tx"
	KindView CallKind = "view"
)

// Call is one entry of the chain's ordered call log.
type Call struct {
	Kind     CallKind
	Sender   string
	Function string
	Args     []gateway.Arg
	Hash     string
	Err      error
}

// HasAddress reports whether any argument of the call is, or contains, addr.
func (c Call) HasAddress(addr *sui.Address) bool {
	want := addr.String()
	for _, a := range c.Args {
		switch v := a.(type) {
		case gateway.AddressArg:
			if v.String() == want {
				return true
			}
		case gateway.AddressVecArg:
			for i := range v {
				if v[i].String() == want {
					return true
				}
			}
		}
	}
	return false
}

type token struct {
	symbol   string
	metadata *sui.Address
	account  *sui.Address
}

// ReserveState is a snapshot of one listed reserve.
type ReserveState struct {
	Asset       string
	Underlying  string
	YieldSymbol string
	DebtSymbol  string
	Rates       map[string]string
	Config      map[string][]string
}

type fault struct {
	function  string
	match     func(args []gateway.Arg) bool
	err       error
	remaining int
}

// Chain is a deterministic fake of the protocol packages. Roles are
// checked the way the Move modules check them.
type Chain struct {
	mu sync.Mutex

	owner      string
	roles      map[string]map[market.Role]bool
	underlying map[string]token
	byAccount  map[string]string
	derived    map[market.DerivedKind]map[string]token
	reserves   map[string]*ReserveState
	feeds      map[string][]byte
	calls      []Call
	faults     []*fault
	seq        int
}

// NewChain returns an empty market administered by owner.
func NewChain(owner *sui.Address) *Chain {
	return &Chain{
		owner:      owner.String(),
		roles:      make(map[string]map[market.Role]bool),
		underlying: make(map[string]token),
		byAccount:  make(map[string]string),
		derived: map[market.DerivedKind]map[string]token{
			market.KindYield: {},
			market.KindDebt:  {},
		},
		reserves: make(map[string]*ReserveState),
		feeds:    make(map[string][]byte),
	}
}

// DeriveAddress returns a stable address for the given parts.
func DeriveAddress(parts ...string) *sui.Address {
	sum := sha256.Sum256([]byte(strings.Join(parts, "/")))
	return sui.MustAddressFromHex("0x" + hex.EncodeToString(sum[:]))
}

// FailOn makes every call to function fail with err.
func (c *Chain) FailOn(function string, err error) {
	c.FailWhen(function, nil, err, -1)
}

// FailOnce makes the next call to function fail with err.
func (c *Chain) FailOnce(function string, err error) {
	c.FailWhen(function, nil, err, 1)
}

// FailWhen fails the next times calls to function whose arguments satisfy
// match. A negative times never expires.
func (c *Chain) FailWhen(function string, match func(args []gateway.Arg) bool, err error, times int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = append(c.faults, &fault{function: function, match: match, err: err, remaining: times})
}

func (c *Chain) Grant(account *sui.Address, role market.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grant(account.String(), role)
}

func (c *Chain) HasRole(account *sui.Address, role market.Role) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles[account.String()][role]
}

func (c *Chain) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Transactions returns the submitted transactions calling function, or
// all of them when function is empty.
func (c *Chain) Transactions(function string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if call.Kind == KindTx && (function == "" || call.Function == function) {
			out = append(out, call)
		}
	}
	return out
}

func (c *Chain) Reserve(asset *sui.Address) (ReserveState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reserves[asset.String()]
	if !ok {
		return ReserveState{}, false
	}
	out := *r
	out.Rates = make(map[string]string, len(r.Rates))
	for k, v := range r.Rates {
		out.Rates[k] = v
	}
	out.Config = make(map[string][]string, len(r.Config))
	for k, v := range r.Config {
		out.Config[k] = append([]string(nil), v...)
	}
	return out, true
}

func (c *Chain) ReserveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reserves)
}

func (c *Chain) FeedID(asset *sui.Address) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.feeds[asset.String()]
	return f, ok
}

// UnderlyingAccount returns the account address of a created token.
func (c *Chain) UnderlyingAccount(symbol string) (*sui.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.underlying[symbol]
	return t.account, ok
}

func (c *Chain) SendTransaction(ctx context.Context, sender gateway.Account, fn gateway.FunctionID, args ...gateway.Arg) (*gateway.CommittedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	hash := fmt.Sprintf("0x%064x", c.seq)
	call := Call{Kind: KindTx, Sender: sender.Profile, Function: fn.Name(), Args: args, Hash: hash}

	if err := c.injected(fn.Name(), args); err != nil {
		call.Err = err
		c.calls = append(c.calls, call)
		cerr := &gateway.CallError{Function: fn, Hash: hash, Message: "injected", Err: err}
		if errors.Is(err, gateway.ErrTransient) {
			return nil, cerr
		}
		return &gateway.CommittedResult{Hash: hash}, cerr
	}

	events, err := c.execute(sender, fn, args)
	call.Err = err
	c.calls = append(c.calls, call)
	if err != nil {
		return &gateway.CommittedResult{Hash: hash}, &gateway.CallError{Function: fn, Hash: hash, Err: err}
	}
	return &gateway.CommittedResult{Hash: hash, Success: true, Events: events}, nil
}

func (c *Chain) CallView(ctx context.Context, fn gateway.FunctionID, args ...gateway.Arg) ([]gateway.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	call := Call{Kind: KindView, Function: fn.Name(), Args: args}
	if err := c.injected(fn.Name(), args); err != nil {
		call.Err = err
		c.calls = append(c.calls, call)
		return nil, &gateway.CallError{Function: fn, Message: "injected", Err: err}
	}
	out, err := c.view(fn, args)
	call.Err = err
	c.calls = append(c.calls, call)
	if err != nil {
		return nil, &gateway.CallError{Function: fn, Err: err}
	}
	return out, nil
}

func (c *Chain) injected(function string, args []gateway.Arg) error {
	for _, f := range c.faults {
		if f.remaining == 0 || f.function != function {
			continue
		}
		if f.match != nil && !f.match(args) {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
		}
		return f.err
	}
	return nil
}

func (c *Chain) grant(account string, role market.Role) {
	if c.roles[account] == nil {
		c.roles[account] = make(map[market.Role]bool)
	}
	c.roles[account][role] = true
}

func (c *Chain) requireAny(sender gateway.Account, roles ...market.Role) error {
	if sender.Address == nil {
		return gateway.ErrUnauthorized
	}
	held := c.roles[sender.Address.String()]
	for _, r := range roles {
		if held[r] {
			return nil
		}
	}
	return fmt.Errorf("%w: %s lacks %v", gateway.ErrUnauthorized, sender.Profile, roles)
}

func (c *Chain) execute(sender gateway.Account, fn gateway.FunctionID, args []gateway.Arg) ([]gateway.Event, error) {
	switch fn.Module {
	case market.ModuleACL:
		return nil, c.executeACL(sender, fn.Function, args)
	case market.ModuleUnderlying:
		if fn.Function == "create_token" {
			return c.createToken(args)
		}
	case market.ModulePoolConfigurator:
		if fn.Function == "init_reserves" {
			if err := c.requireAny(sender, market.RolePoolAdmin, market.RoleAssetListingAdmin); err != nil {
				return nil, err
			}
			return c.initReserves(args)
		}
		if err := c.requireAny(sender, market.RoleRiskAdmin, market.RolePoolAdmin); err != nil {
			return nil, err
		}
		return nil, c.configureReserve(fn.Function, args)
	case market.ModuleRateStrategy:
		if fn.Function == "set_reserve_interest_rate_strategy" {
			if err := c.requireAny(sender, market.RoleRiskAdmin, market.RolePoolAdmin); err != nil {
				return nil, err
			}
			return nil, c.setRateStrategy(args)
		}
	case market.ModuleOracle:
		if err := c.requireAny(sender, market.RoleAssetListingAdmin, market.RolePoolAdmin); err != nil {
			return nil, err
		}
		switch fn.Function {
		case "set_asset_feed_id":
			return nil, c.setFeeds(args, false)
		case "batch_set_asset_feed_ids":
			return nil, c.setFeeds(args, true)
		}
	}
	return nil, fmt.Errorf("%w: unknown entry function %s", gateway.ErrRejected, fn.Name())
}

func (c *Chain) executeACL(sender gateway.Account, function string, args []gateway.Arg) error {
	if !strings.HasPrefix(function, "add_") {
		return fmt.Errorf("%w: unknown acl function %s", gateway.ErrRejected, function)
	}
	role, err := market.ParseRole(strings.TrimPrefix(function, "add_"))
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrRejected, err)
	}
	if sender.Address == nil || sender.Address.String() != c.owner {
		return fmt.Errorf("%w: only the acl owner grants roles", gateway.ErrUnauthorized)
	}
	account, err := addressArg(args, 0)
	if err != nil {
		return err
	}
	c.grant(account, role)
	return nil
}

func (c *Chain) createToken(args []gateway.Arg) ([]gateway.Event, error) {
	if len(args) != 6 {
		return nil, fmt.Errorf("%w: create_token takes 6 arguments, got %d", gateway.ErrRejected, len(args))
	}
	symbol, err := stringArg(args, 2)
	if err != nil {
		return nil, err
	}
	if _, ok := c.underlying[symbol]; ok {
		return nil, fmt.Errorf("%w: token %s", gateway.ErrAlreadyExists, symbol)
	}
	t := token{
		symbol:   symbol,
		metadata: DeriveAddress("underlying", "metadata", symbol),
		account:  DeriveAddress("underlying", "account", symbol),
	}
	c.underlying[symbol] = t
	c.byAccount[t.account.String()] = symbol
	return []gateway.Event{{Type: "mock_underlying_token_factory::Token", ObjectID: t.metadata.String()}}, nil
}

func (c *Chain) initReserves(args []gateway.Arg) ([]gateway.Event, error) {
	if len(args) != 6 {
		return nil, fmt.Errorf("%w: init_reserves takes 6 arguments, got %d", gateway.ErrRejected, len(args))
	}
	assets, ok := args[0].(gateway.AddressVecArg)
	if !ok {
		return nil, fmt.Errorf("%w: underlying assets must be a vector of addresses", gateway.ErrRejected)
	}
	vectors := make([][]string, 4)
	for i := range vectors {
		v, ok := args[i+2].(gateway.StringVecArg)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d must be a vector of strings", gateway.ErrRejected, i+2)
		}
		vectors[i] = v
	}
	treasuries, ok := args[1].(gateway.AddressVecArg)
	if !ok || len(treasuries) != len(assets) {
		return nil, fmt.Errorf("%w: treasuries do not match assets", gateway.ErrRejected)
	}
	for _, v := range vectors {
		if len(v) != len(assets) {
			return nil, fmt.Errorf("%w: vector lengths differ", gateway.ErrRejected)
		}
	}

	// Validate everything before mutating anything: the batch is atomic.
	for i := range assets {
		key := assets[i].String()
		symbol, ok := c.byAccount[key]
		if !ok {
			return nil, fmt.Errorf("%w: underlying %s", gateway.ErrNotFound, key)
		}
		if _, ok := c.reserves[key]; ok {
			return nil, fmt.Errorf("%w: reserve %s", gateway.ErrAlreadyExists, symbol)
		}
		if _, ok := c.derived[market.KindYield][vectors[1][i]]; ok {
			return nil, fmt.Errorf("%w: token %s", gateway.ErrAlreadyExists, vectors[1][i])
		}
		if _, ok := c.derived[market.KindDebt][vectors[3][i]]; ok {
			return nil, fmt.Errorf("%w: token %s", gateway.ErrAlreadyExists, vectors[3][i])
		}
	}

	var events []gateway.Event
	for i := range assets {
		key := assets[i].String()
		ySym, dSym := vectors[1][i], vectors[3][i]
		c.derived[market.KindYield][ySym] = token{
			symbol:   ySym,
			metadata: DeriveAddress("yield", "metadata", ySym),
			account:  DeriveAddress("yield", "account", ySym),
		}
		c.derived[market.KindDebt][dSym] = token{
			symbol:   dSym,
			metadata: DeriveAddress("debt", "metadata", dSym),
			account:  DeriveAddress("debt", "account", dSym),
		}
		c.reserves[key] = &ReserveState{
			Asset:       key,
			Underlying:  c.byAccount[key],
			YieldSymbol: ySym,
			DebtSymbol:  dSym,
			Rates:       make(map[string]string),
			Config:      make(map[string][]string),
		}
		events = append(events, gateway.Event{Type: "pool::ReserveInitialized", ObjectID: key})
	}
	return events, nil
}

func (c *Chain) reserveFor(args []gateway.Arg) (*ReserveState, error) {
	asset, err := addressArg(args, 0)
	if err != nil {
		return nil, err
	}
	r, ok := c.reserves[asset]
	if !ok {
		return nil, fmt.Errorf("%w: reserve %s", gateway.ErrNotFound, asset)
	}
	return r, nil
}

func (c *Chain) setRateStrategy(args []gateway.Arg) error {
	if len(args) != 5 {
		return fmt.Errorf("%w: set_reserve_interest_rate_strategy takes 5 arguments, got %d", gateway.ErrRejected, len(args))
	}
	r, err := c.reserveFor(args)
	if err != nil {
		return err
	}
	views := []string{
		market.ViewOptimalUsageRatio,
		market.ViewBaseVariableBorrowRate,
		market.ViewVariableRateSlope1,
		market.ViewVariableRateSlope2,
	}
	values := make([]market.Ray, len(views))
	for i := range views {
		v, ok := args[i+1].(gateway.U256Arg)
		if !ok {
			return fmt.Errorf("%w: argument %d must be u256", gateway.ErrRejected, i+1)
		}
		ray, err := market.ParseRay(string(v))
		if err != nil {
			return fmt.Errorf("%w: %v", gateway.ErrRejected, err)
		}
		values[i] = ray
	}
	if values[0].Cmp(market.RayOne()) > 0 {
		return fmt.Errorf("%w: EINVALID_OPTIMAL_USAGE_RATIO", gateway.ErrRejected)
	}
	for i, name := range views {
		r.Rates[name] = values[i].String()
	}
	maxRate := market.RateStrategyParams{
		BaseVariableBorrowRate: values[1],
		VariableRateSlope1:     values[2],
		VariableRateSlope2:     values[3],
	}.MaxVariableBorrowRate()
	r.Rates[market.ViewMaxVariableBorrowRate] = maxRate.String()
	return nil
}

func (c *Chain) setFeeds(args []gateway.Arg, batch bool) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: feed functions take 2 arguments", gateway.ErrRejected)
	}
	var (
		assets []string
		feeds  [][]byte
	)
	if batch {
		av, ok1 := args[0].(gateway.AddressVecArg)
		fv, ok2 := args[1].(gateway.BytesVecArg)
		if !ok1 || !ok2 || len(av) != len(fv) {
			return fmt.Errorf("%w: EREQUESTED_FEED_IDS_ASSETS_MISMATCH", gateway.ErrRejected)
		}
		for i := range av {
			assets = append(assets, av[i].String())
		}
		feeds = fv
	} else {
		asset, err := addressArg(args, 0)
		if err != nil {
			return err
		}
		f, ok := args[1].(gateway.BytesArg)
		if !ok {
			return fmt.Errorf("%w: feed id must be bytes", gateway.ErrRejected)
		}
		assets = []string{asset}
		feeds = [][]byte{f}
	}
	for _, f := range feeds {
		if len(f) == 0 {
			return fmt.Errorf("%w: EEMPTY_FEED_ID", gateway.ErrRejected)
		}
	}
	for i := range assets {
		c.feeds[assets[i]] = append([]byte(nil), feeds[i]...)
	}
	return nil
}

var configurators = map[string]int{
	"configure_reserve_as_collateral": 4,
	"set_reserve_borrowing":           2,
	"set_reserve_flash_loaning":       2,
	"set_reserve_factor":              2,
	"set_borrow_cap":                  2,
	"set_supply_cap":                  2,
	"set_liquidation_protocol_fee":    2,
	"set_debt_ceiling":                2,
	"set_borrowable_in_isolation":     2,
}

func (c *Chain) configureReserve(function string, args []gateway.Arg) error {
	n, ok := configurators[function]
	if !ok {
		return fmt.Errorf("%w: unknown pool_configurator function %s", gateway.ErrRejected, function)
	}
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", gateway.ErrRejected, function, n, len(args))
	}
	r, err := c.reserveFor(args)
	if err != nil {
		return err
	}
	if function == "configure_reserve_as_collateral" {
		ltv, _ := args[1].(gateway.U64Arg)
		threshold, _ := args[2].(gateway.U64Arg)
		bonus, _ := args[3].(gateway.U64Arg)
		params := market.RiskParams{
			BaseLTV:              uint64(ltv),
			LiquidationThreshold: uint64(threshold),
			LiquidationBonus:     uint64(bonus),
		}
		if err := params.Validate(); err != nil {
			return fmt.Errorf("%w: EINVALID_RESERVE_PARAMS: %v", gateway.ErrRejected, err)
		}
	}
	if function == "set_reserve_factor" || function == "set_liquidation_protocol_fee" {
		v, _ := args[1].(gateway.U64Arg)
		if uint64(v) > market.BasisPoints {
			return fmt.Errorf("%w: EINVALID_RESERVE_FACTOR", gateway.ErrRejected)
		}
	}
	vals := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		vals = append(vals, a.String())
	}
	r.Config[function] = vals
	return nil
}

func (c *Chain) view(fn gateway.FunctionID, args []gateway.Arg) ([]gateway.Value, error) {
	switch fn.Module {
	case market.ModuleACL:
		if !strings.HasPrefix(fn.Function, "is_") {
			break
		}
		role, err := market.ParseRole(strings.TrimPrefix(fn.Function, "is_"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrRejected, err)
		}
		account, err := addressArg(args, 0)
		if err != nil {
			return nil, err
		}
		return values(gateway.Bool(c.roles[account][role]))
	case market.ModuleUnderlying:
		symbol, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		t, ok := c.underlying[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: ETOKEN_NOT_EXIST %s", gateway.ErrNotFound, symbol)
		}
		return tokenView(fn.Function, t)
	case market.ModuleYieldFactory, market.ModuleDebtFactory:
		kind := market.KindYield
		if fn.Module == market.ModuleDebtFactory {
			kind = market.KindDebt
		}
		symbol, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		t, ok := c.derived[kind][symbol]
		if !ok {
			return nil, fmt.Errorf("%w: ETOKEN_NOT_EXIST %s", gateway.ErrNotFound, symbol)
		}
		return tokenView(fn.Function, t)
	case market.ModuleRateStrategy:
		r, err := c.reserveFor(args)
		if err != nil {
			return nil, err
		}
		v, ok := r.Rates[fn.Function]
		if !ok {
			v = "0"
		}
		return values(gateway.U256(v))
	case market.ModuleOracle:
		if fn.Function == "get_asset_feed_id" {
			asset, err := addressArg(args, 0)
			if err != nil {
				return nil, err
			}
			f, ok := c.feeds[asset]
			if !ok {
				return nil, fmt.Errorf("%w: EASSET_NOT_LISTED", gateway.ErrNotFound)
			}
			return values(gateway.Bytes(f))
		}
	}
	return nil, fmt.Errorf("%w: unknown view function %s", gateway.ErrRejected, fn.Name())
}

func tokenView(function string, t token) ([]gateway.Value, error) {
	switch function {
	case "get_metadata_by_symbol":
		return values(gateway.Address(t.metadata))
	case "get_token_account_address":
		return values(gateway.Address(t.account))
	}
	return nil, fmt.Errorf("%w: unknown token view %s", gateway.ErrRejected, function)
}

func values(args ...gateway.Arg) ([]gateway.Value, error) {
	out := make([]gateway.Value, 0, len(args))
	for _, a := range args {
		v, err := gateway.EncodeArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func addressArg(args []gateway.Arg, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", gateway.ErrRejected, i)
	}
	a, ok := args[i].(gateway.AddressArg)
	if !ok {
		return "", fmt.Errorf("%w: argument %d must be an address", gateway.ErrRejected, i)
	}
	return a.String(), nil
}

func stringArg(args []gateway.Arg, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", gateway.ErrRejected, i)
	}
	a, ok := args[i].(gateway.StringArg)
	if !ok {
		return "", fmt.Errorf("%w: argument %d must be a string", gateway.ErrRejected, i)
	}
	return string(a), nil
}
