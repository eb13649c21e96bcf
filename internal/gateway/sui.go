package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fardream/go-bcs/bcs"
	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/sui/suiptb"
	"github.com/pattonkan/sui-go/suiclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SuiOptions struct {
	GasBudget         uint64
	RequestsPerSecond float64
	Burst             int
}

// Sui is a Gateway backed by a Sui full node. Each call becomes a
// programmable transaction holding a single MoveCall.
type Sui struct {
	client    *suiclient.ClientImpl
	limiter   *rate.Limiter
	gasBudget uint64
	logger    *zap.SugaredLogger
}

func NewSui(rpcURL string, opts SuiOptions, logger *zap.SugaredLogger) *Sui {
	if opts.GasBudget == 0 {
		opts.GasBudget = suiclient.DefaultGasBudget
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Sui{
		client:    suiclient.NewClient(rpcURL),
		limiter:   rate.NewLimiter(limit, opts.Burst),
		gasBudget: opts.GasBudget,
		logger:    logger,
	}
}

func (g *Sui) SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error) {
	if sender.Signer == nil || sender.Address == nil {
		return nil, &CallError{Function: fn, Message: "no signer for " + sender.Profile, Err: ErrUnauthorized}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	coinPage, err := g.client.GetCoins(ctx, &suiclient.GetCoinsRequest{Owner: sender.Address})
	if err != nil {
		return nil, &CallError{Function: fn, Message: "failed to get coins", Err: transportError(err)}
	}
	if len(coinPage.Data) == 0 {
		return nil, &CallError{Function: fn, Message: "no gas coins for " + sender.Address.String(), Err: ErrRejected}
	}

	pt, err := programmableCall(fn, args)
	if err != nil {
		return nil, &CallError{Function: fn, Message: err.Error(), Err: ErrRejected}
	}
	tx := suiptb.NewTransactionData(
		sender.Address,
		pt,
		[]*sui.ObjectRef{coinPage.Data[0].Ref()},
		g.gasBudget,
		suiclient.DefaultGasPrice,
	)
	txBytes, err := bcs.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	resp, err := g.client.SignAndExecuteTransaction(
		ctx,
		sender.Signer,
		txBytes,
		&suiclient.SuiTransactionBlockResponseOptions{
			ShowEffects:       true,
			ShowObjectChanges: true,
		},
	)
	if err != nil {
		return nil, &CallError{Function: fn, Message: "failed to sign and execute transaction", Err: transportError(err)}
	}

	res := &CommittedResult{Hash: resp.Digest.String()}
	if resp.Effects == nil {
		return res, &CallError{Function: fn, Hash: res.Hash, Message: "missing effects", Err: ErrTransient}
	}
	res.Success = resp.Effects.Data.IsSuccess()
	for _, change := range resp.ObjectChanges {
		if change.Data.Created != nil {
			res.Events = append(res.Events, Event{
				Type:     fmt.Sprint(change.Data.Created.ObjectType),
				ObjectID: change.Data.Created.ObjectId.String(),
			})
		}
	}
	if !res.Success {
		msg := fmt.Sprintf("%+v %v", resp.Effects.Data.V1.Status, resp.Errors)
		return res, &CallError{Function: fn, Hash: res.Hash, Message: msg, Err: Classify(msg)}
	}

	g.logger.Debugw("transaction committed",
		"function", fn.Name(),
		"sender", sender.Profile,
		"digest", res.Hash,
	)
	return res, nil
}

func (g *Sui) CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pt, err := programmableCall(fn, args)
	if err != nil {
		return nil, &CallError{Function: fn, Message: err.Error(), Err: ErrRejected}
	}
	tx := suiptb.NewTransactionData(
		sui.MustAddressFromHex("0x0"),
		pt,
		[]*sui.ObjectRef{},
		suiclient.DefaultGasBudget,
		suiclient.DefaultGasPrice,
	)
	txBytes, err := bcs.Marshal(tx.V1.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	res, err := g.client.DevInspectTransactionBlock(ctx, &suiclient.DevInspectTransactionBlockRequest{
		SenderAddress: sui.MustAddressFromHex("0x0"),
		TxKindBytes:   txBytes,
	})
	if err != nil {
		return nil, &CallError{Function: fn, Message: "failed to run DevInspectTransactionBlock", Err: transportError(err)}
	}
	if res.Error != "" {
		return nil, &CallError{Function: fn, Message: res.Error, Err: Classify(res.Error)}
	}
	if len(res.Results) == 0 {
		return nil, &CallError{Function: fn, Message: "no results", Err: ErrRejected}
	}
	values := make([]Value, 0, len(res.Results[0].ReturnValues))
	for _, rv := range res.Results[0].ReturnValues {
		values = append(values, Value(rv.Data))
	}
	return values, nil
}

func programmableCall(fn FunctionID, args []Arg) (suiptb.ProgrammableTransaction, error) {
	pures := make([]any, 0, len(args))
	for i, a := range args {
		p, err := a.Pure()
		if err != nil {
			return suiptb.ProgrammableTransaction{}, fmt.Errorf("argument %d: %w", i, err)
		}
		// MustPure panics on encoding errors, so check first.
		if _, err := bcs.Marshal(p); err != nil {
			return suiptb.ProgrammableTransaction{}, fmt.Errorf("argument %d: %w", i, err)
		}
		pures = append(pures, p)
	}

	ptb := suiptb.NewTransactionDataTransactionBuilder()
	callArgs := make([]suiptb.Argument, 0, len(pures))
	for _, p := range pures {
		callArgs = append(callArgs, ptb.MustPure(p))
	}
	ptb.Command(suiptb.Command{
		MoveCall: &suiptb.ProgrammableMoveCall{
			Package:       fn.Package,
			Module:        fn.Module,
			Function:      fn.Function,
			TypeArguments: []sui.TypeTag{},
			Arguments:     callArgs,
		}},
	)
	return ptb.Finish(), nil
}

// transportError marks network failures as transient and classifies the
// rest by message.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", Classify(err.Error()), err)
}
