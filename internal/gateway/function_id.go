package gateway

import (
	"fmt"
	"strings"

	"github.com/pattonkan/sui-go/sui"
)

// FunctionID names a Move function as <package>::<module>::<function>.
type FunctionID struct {
	Package  *sui.PackageId
	Module   string
	Function string
}

func NewFunctionID(pkg *sui.PackageId, module, function string) FunctionID {
	return FunctionID{Package: pkg, Module: module, Function: function}
}

func ParseFunctionID(s string) (FunctionID, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return FunctionID{}, fmt.Errorf("gateway: malformed function id %q", s)
	}
	pkg, err := sui.PackageIdFromHex(parts[0])
	if err != nil {
		return FunctionID{}, fmt.Errorf("gateway: function id %q: %w", s, err)
	}
	return FunctionID{Package: pkg, Module: parts[1], Function: parts[2]}, nil
}

// Name is the package-independent part, module::function.
func (f FunctionID) Name() string {
	return f.Module + "::" + f.Function
}

func (f FunctionID) String() string {
	if f.Package == nil {
		return "_::" + f.Name()
	}
	return f.Package.String() + "::" + f.Name()
}
