package gateway

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pattonkan/sui-go/sui"
)

// Arg is a pure Move call argument. Integers wider than 64 bits are
// carried as base-10 strings so no precision is lost before encoding.
type Arg interface {
	// Pure returns a value whose BCS encoding is the Move argument.
	Pure() (any, error)
	String() string
}

type (
	U8Arg         uint8
	U64Arg        uint64
	U128Arg       string
	U256Arg       string
	BoolArg       bool
	AddressArg    sui.Address
	StringArg     string
	BytesArg      []byte
	AddressVecArg []sui.Address
	StringVecArg  []string
	BytesVecArg   [][]byte
)

func U8(v uint8) Arg { return U8Arg(v) }
func U64(v uint64) Arg { return U64Arg(v) }
func U128(dec string) Arg { return U128Arg(dec) }
func U256(dec string) Arg { return U256Arg(dec) }
func Bool(v bool) Arg { return BoolArg(v) }
func String(s string) Arg { return StringArg(s) }
func Bytes(b []byte) Arg { return BytesArg(b) }
func StringVector(s []string) Arg { return StringVecArg(s) }
func BytesVector(b [][]byte) Arg { return BytesVecArg(b) }

func Address(a *sui.Address) Arg {
	if a == nil {
		return AddressArg{}
	}
	return AddressArg(*a)
}

func AddressVector(addrs []*sui.Address) Arg {
	out := make(AddressVecArg, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			out = append(out, sui.Address{})
			continue
		}
		out = append(out, *a)
	}
	return out
}

func (a U8Arg) Pure() (any, error) { return uint8(a), nil }
func (a U64Arg) Pure() (any, error) { return uint64(a), nil }
func (a BoolArg) Pure() (any, error) { return bool(a), nil }

func (a U128Arg) Pure() (any, error) {
	v, err := parseUint(string(a), 128)
	if err != nil {
		return nil, err
	}
	be := v.Bytes32()
	var le [16]byte
	for i := range le {
		le[i] = be[31-i]
	}
	return le, nil
}

func (a U256Arg) Pure() (any, error) {
	v, err := parseUint(string(a), 256)
	if err != nil {
		return nil, err
	}
	return littleEndian32(v), nil
}

func (a AddressArg) Pure() (any, error) { return sui.Address(a), nil }
func (a StringArg) Pure() (any, error) { return []byte(a), nil }
func (a BytesArg) Pure() (any, error) { return []byte(a), nil }

func (a AddressVecArg) Pure() (any, error) { return []sui.Address(a), nil }

func (a StringVecArg) Pure() (any, error) {
	out := make([][]byte, 0, len(a))
	for _, s := range a {
		out = append(out, []byte(s))
	}
	return out, nil
}

func (a BytesVecArg) Pure() (any, error) { return [][]byte(a), nil }

func (a U8Arg) String() string { return strconv.FormatUint(uint64(a), 10) }
func (a U64Arg) String() string { return strconv.FormatUint(uint64(a), 10) }
func (a U128Arg) String() string { return string(a) }
func (a U256Arg) String() string { return string(a) }
func (a BoolArg) String() string { return strconv.FormatBool(bool(a)) }
func (a StringArg) String() string {
	return strconv.Quote(string(a))
}
func (a BytesArg) String() string { return "0x" + hex.EncodeToString(a) }

func (a AddressArg) String() string {
	addr := sui.Address(a)
	return addr.String()
}

func (a AddressVecArg) String() string {
	parts := make([]string, 0, len(a))
	for i := range a {
		parts = append(parts, a[i].String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (a StringVecArg) String() string {
	return "[" + strings.Join(a, ",") + "]"
}

func (a BytesVecArg) String() string {
	parts := make([]string, 0, len(a))
	for _, b := range a {
		parts = append(parts, "0x"+hex.EncodeToString(b))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func parseUint(dec string, bits int) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("gateway: u%d %q: %w", bits, dec, err)
	}
	if v.BitLen() > bits {
		return nil, fmt.Errorf("gateway: %s overflows u%d", dec, bits)
	}
	return v, nil
}

func littleEndian32(v *uint256.Int) [32]byte {
	be := v.Bytes32()
	var le [32]byte
	for i := range le {
		le[i] = be[31-i]
	}
	return le
}
