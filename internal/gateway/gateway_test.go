package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pattonkan/sui-go/sui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedGateway struct {
	mu       sync.Mutex
	sendErrs []error
	sends    int
	views    int

	inflight    map[string]int
	maxInflight map[string]int
	delay       time.Duration
}

func (s *scriptedGateway) SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error) {
	s.mu.Lock()
	if s.inflight == nil {
		s.inflight = map[string]int{}
		s.maxInflight = map[string]int{}
	}
	s.inflight[sender.Profile]++
	if s.inflight[sender.Profile] > s.maxInflight[sender.Profile] {
		s.maxInflight[sender.Profile] = s.inflight[sender.Profile]
	}
	var err error
	if s.sends < len(s.sendErrs) {
		err = s.sendErrs[s.sends]
	}
	s.sends++
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.inflight[sender.Profile]--
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &CommittedResult{Hash: "0xabc", Success: true}, nil
}

func (s *scriptedGateway) CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views++
	return nil, nil
}

func testFunction(t *testing.T) FunctionID {
	t.Helper()
	fn, err := ParseFunctionID("0x1::pool_configurator::init_reserves")
	require.NoError(t, err)
	return fn
}

func TestParseFunctionID(t *testing.T) {
	fn := testFunction(t)
	assert.Equal(t, "pool_configurator", fn.Module)
	assert.Equal(t, "init_reserves", fn.Function)
	assert.Equal(t, "pool_configurator::init_reserves", fn.Name())

	_, err := ParseFunctionID("0x1::pool_configurator")
	assert.Error(t, err)
	_, err = ParseFunctionID("nothex::m::f")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"MoveAbort(..., ERESERVE_ALREADY_ADDED) in command 0": ErrAlreadyExists,
		"token does not exist":                                ErrNotFound,
		"ECALLER_NOT_POOL_ADMIN":                              ErrUnauthorized,
		"dial tcp: connection refused":                        ErrTransient,
		"InsufficientGas":                                     ErrRejected,
	}
	for msg, want := range cases {
		assert.ErrorIs(t, Classify(msg), want, msg)
	}
}

func TestCallErrorUnwraps(t *testing.T) {
	err := &CallError{Function: testFunction(t), Hash: "0x1", Message: "boom", Err: ErrUnauthorized}
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "pool_configurator::init_reserves [0x1]: boom")
}

func TestIntegerArgsEncodeLittleEndian(t *testing.T) {
	v, err := EncodeArg(U256("800000000000000000000000000"))
	require.NoError(t, err)
	require.Len(t, v, 32)
	dec, err := v.Uint()
	require.NoError(t, err)
	assert.Equal(t, "800000000000000000000000000", dec)

	v, err = EncodeArg(U128("100000000000000000"))
	require.NoError(t, err)
	require.Len(t, v, 16)
	dec, err = v.Uint()
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", dec)

	v, err = EncodeArg(U64(7500))
	require.NoError(t, err)
	n, err := v.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(7500), n)
}

func TestIntegerArgsRejectOverflow(t *testing.T) {
	_, err := U128("340282366920938463463374607431768211456").Pure()
	assert.Error(t, err)
	_, err = U256("-1").Pure()
	assert.Error(t, err)
}

func TestAddressAndBytesValues(t *testing.T) {
	addr := sui.MustAddressFromHex("0x2a")
	v, err := EncodeArg(Address(addr))
	require.NoError(t, err)
	got, err := v.Address()
	require.NoError(t, err)
	assert.Equal(t, addr.String(), got.String())

	v, err = EncodeArg(Bytes([]byte{0xde, 0xad}))
	require.NoError(t, err)
	b, err := v.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, b)

	v, err = EncodeArg(String("DAI"))
	require.NoError(t, err)
	s, err := v.Text()
	require.NoError(t, err)
	assert.Equal(t, "DAI", s)

	v, err = EncodeArg(Bool(true))
	require.NoError(t, err)
	ok, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRetryingRetriesTransientOnly(t *testing.T) {
	inner := &scriptedGateway{sendErrs: []error{
		&CallError{Err: ErrTransient},
		&CallError{Err: ErrTransient},
	}}
	gw := NewRetrying(inner, RetryOptions{MaxRetries: 3, Base: time.Millisecond}, zap.NewNop().Sugar())

	res, err := gw.SendTransaction(context.Background(), Account{Profile: "pool"}, testFunction(t))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, inner.sends)

	inner = &scriptedGateway{sendErrs: []error{&CallError{Err: ErrUnauthorized}}}
	gw = NewRetrying(inner, RetryOptions{MaxRetries: 3, Base: time.Millisecond}, zap.NewNop().Sugar())
	_, err = gw.SendTransaction(context.Background(), Account{Profile: "pool"}, testFunction(t))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, inner.sends)
}

func TestRetryingGivesUp(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = &CallError{Err: ErrTransient}
	}
	inner := &scriptedGateway{sendErrs: errs}
	gw := NewRetrying(inner, RetryOptions{MaxRetries: 2, Base: time.Millisecond}, zap.NewNop().Sugar())

	_, err := gw.SendTransaction(context.Background(), Account{Profile: "rate"}, testFunction(t))
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, inner.sends)
}

func TestSequencerSerializesPerSender(t *testing.T) {
	inner := &scriptedGateway{delay: 5 * time.Millisecond}
	gw := NewSequencer(inner)
	fn := testFunction(t)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		profile := "rate"
		if i%2 == 0 {
			profile = "oracle"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := gw.SendTransaction(context.Background(), Account{Profile: profile}, fn); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 8, inner.sends)
	assert.Equal(t, 1, inner.maxInflight["rate"])
	assert.Equal(t, 1, inner.maxInflight["oracle"])
}

type recordingRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingRecorder) RecordTransaction(_ context.Context, function, profile, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, profile+"/"+function+"/"+status)
}

func (r *recordingRecorder) RecordView(_ context.Context, function, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, "view/"+function+"/"+status)
}

func TestInstrumentedRecordsStatus(t *testing.T) {
	inner := &scriptedGateway{sendErrs: []error{nil, &CallError{Err: ErrAlreadyExists}}}
	rec := &recordingRecorder{}
	gw := NewInstrumented(inner, rec)
	fn := testFunction(t)

	_, err := gw.SendTransaction(context.Background(), Account{Profile: "pool"}, fn)
	require.NoError(t, err)
	_, err = gw.SendTransaction(context.Background(), Account{Profile: "pool"}, fn)
	require.True(t, errors.Is(err, ErrAlreadyExists))
	_, err = gw.CallView(context.Background(), fn)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pool/pool_configurator::init_reserves/ok",
		"pool/pool_configurator::init_reserves/already_exists",
		"view/pool_configurator::init_reserves/ok",
	}, rec.statuses)
}
