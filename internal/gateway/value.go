package gateway

import (
	"encoding/binary"
	"fmt"

	"github.com/fardream/go-bcs/bcs"
	"github.com/holiman/uint256"
	"github.com/pattonkan/sui-go/sui"
)

// Value is one BCS-encoded return value of a view call.
type Value []byte

// EncodeValue BCS-encodes v. Used by in-memory gateways.
func EncodeValue(v any) (Value, error) {
	b, err := bcs.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode %T: %w", v, err)
	}
	return Value(b), nil
}

// EncodeArg encodes a call argument as it would be returned by a view.
func EncodeArg(a Arg) (Value, error) {
	p, err := a.Pure()
	if err != nil {
		return nil, err
	}
	return EncodeValue(p)
}

func (v Value) Bool() (bool, error) {
	if len(v) != 1 || v[0] > 1 {
		return false, fmt.Errorf("gateway: %d bytes is not a bool", len(v))
	}
	return v[0] == 1, nil
}

func (v Value) U64() (uint64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("gateway: %d bytes is not a u64", len(v))
	}
	return binary.LittleEndian.Uint64(v), nil
}

// Uint decodes a u128 or u256 to its base-10 string.
func (v Value) Uint() (string, error) {
	if len(v) != 16 && len(v) != 32 && len(v) != 8 {
		return "", fmt.Errorf("gateway: %d bytes is not an unsigned integer", len(v))
	}
	be := make([]byte, len(v))
	for i := range v {
		be[i] = v[len(v)-1-i]
	}
	return new(uint256.Int).SetBytes(be).Dec(), nil
}

func (v Value) Address() (*sui.Address, error) {
	var addr sui.Address
	if _, err := bcs.Unmarshal(v, &addr); err != nil {
		return nil, fmt.Errorf("gateway: decode address: %w", err)
	}
	return &addr, nil
}

func (v Value) Bytes() ([]byte, error) {
	var b []byte
	if _, err := bcs.Unmarshal(v, &b); err != nil {
		return nil, fmt.Errorf("gateway: decode bytes: %w", err)
	}
	return b, nil
}

// Text decodes a Move String.
func (v Value) Text() (string, error) {
	b, err := v.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
