package pipeline

import (
	"context"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/pattonkan/sui-go/sui"
)

// submit sends one transaction and folds an unsuccessful commit into an
// error. The digest is returned whenever the chain produced one.
func submit(ctx context.Context, gw gateway.Gateway, sender gateway.Account, fn gateway.FunctionID, args ...gateway.Arg) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := gw.SendTransaction(ctx, sender, fn, args...)
	var digest string
	if res != nil {
		digest = res.Hash
	}
	if err != nil {
		return digest, err
	}
	if res == nil || !res.Success {
		return digest, &gateway.CallError{Function: fn, Hash: digest, Message: "transaction not successful", Err: gateway.ErrRejected}
	}
	return digest, nil
}

func firstValue(ctx context.Context, gw gateway.Gateway, fn gateway.FunctionID, args ...gateway.Arg) (gateway.Value, error) {
	values, err := gw.CallView(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values: %w", fn.Name(), gateway.ErrRejected)
	}
	return values[0], nil
}

func viewAddress(ctx context.Context, gw gateway.Gateway, fn gateway.FunctionID, args ...gateway.Arg) (*sui.Address, error) {
	v, err := firstValue(ctx, gw, fn, args...)
	if err != nil {
		return nil, err
	}
	return v.Address()
}

func viewBool(ctx context.Context, gw gateway.Gateway, fn gateway.FunctionID, args ...gateway.Arg) (bool, error) {
	v, err := firstValue(ctx, gw, fn, args...)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

func viewUint(ctx context.Context, gw gateway.Gateway, fn gateway.FunctionID, args ...gateway.Arg) (string, error) {
	v, err := firstValue(ctx, gw, fn, args...)
	if err != nil {
		return "", err
	}
	return v.Uint()
}

func viewBytes(ctx context.Context, gw gateway.Gateway, fn gateway.FunctionID, args ...gateway.Arg) ([]byte, error) {
	v, err := firstValue(ctx, gw, fn, args...)
	if err != nil {
		return nil, err
	}
	return v.Bytes()
}

// Resolution is the pair of addresses a token is known by.
type Resolution struct {
	Metadata *sui.Address
	Account  *sui.Address
}

func lookupToken(ctx context.Context, gw gateway.Gateway, metadataFn, accountFn gateway.FunctionID, args ...gateway.Arg) (Resolution, error) {
	meta, err := viewAddress(ctx, gw, metadataFn, args...)
	if err != nil {
		return Resolution{}, err
	}
	acct, err := viewAddress(ctx, gw, accountFn, args...)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Metadata: meta, Account: acct}, nil
}
