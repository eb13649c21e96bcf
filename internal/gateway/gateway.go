// Package gateway submits configuration transactions and runs read-only
// view calls against the lending protocol's Move packages.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/suisigner"
)

var (
	ErrNotFound      = errors.New("gateway: not found")
	ErrAlreadyExists = errors.New("gateway: already exists")
	ErrUnauthorized  = errors.New("gateway: unauthorized")
	ErrTransient     = errors.New("gateway: transient failure")
	ErrRejected      = errors.New("gateway: rejected")
)

// Gateway is the chain access used by every pipeline component.
// SendTransaction returns only after the transaction is committed or
// has definitively failed.
type Gateway interface {
	SendTransaction(ctx context.Context, sender Account, fn FunctionID, args ...Arg) (*CommittedResult, error)
	CallView(ctx context.Context, fn FunctionID, args ...Arg) ([]Value, error)
}

// Account is a signing identity bound to an operator profile.
type Account struct {
	Profile string
	Address *sui.Address
	Signer  *suisigner.Signer
}

func NewAccount(profile string, signer *suisigner.Signer) Account {
	return Account{Profile: profile, Address: signer.Address, Signer: signer}
}

func (a Account) String() string {
	if a.Address == nil {
		return a.Profile
	}
	return fmt.Sprintf("%s(%s)", a.Profile, a.Address.String())
}

// Event is an object created by a committed transaction.
type Event struct {
	Type     string
	ObjectID string
}

type CommittedResult struct {
	Hash    string
	Success bool
	Events  []Event
}

// CallError carries the failing function and chain message. It unwraps
// to one of the sentinel errors.
type CallError struct {
	Function FunctionID
	Hash     string
	Message  string
	Err      error
}

func (e *CallError) Error() string {
	var b strings.Builder
	b.WriteString(e.Function.Name())
	if e.Hash != "" {
		b.WriteString(" [")
		b.WriteString(e.Hash)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CallError) Unwrap() error { return e.Err }

// Abort codes and messages emitted by the protocol packages, mapped to
// the sentinel they represent.
var abortClasses = []struct {
	needles []string
	err     error
}{
	{[]string{"already_exists", "already exists", "EALREADY", "ERESERVE_ALREADY_ADDED", "ETOKEN_ALREADY_EXISTS"}, ErrAlreadyExists},
	{[]string{"not_found", "not found", "does not exist", "ENOT_FOUND", "ERESERVE_NOT_LISTED", "ETOKEN_NOT_EXIST", "EASSET_NOT_LISTED"}, ErrNotFound},
	{[]string{"unauthorized", "ECALLER_NOT", "ENOT_ADMIN", "not_admin", "ENOT_OWNER"}, ErrUnauthorized},
	{[]string{"timeout", "timed out", "connection refused", "connection reset", "too many requests", "status code 429", "status code 503", "unexpected eof", "temporarily unavailable"}, ErrTransient},
}

// Classify maps a chain error message to a sentinel. Unknown failures
// are ErrRejected.
func Classify(message string) error {
	lower := strings.ToLower(message)
	for _, c := range abortClasses {
		for _, n := range c.needles {
			if strings.Contains(lower, strings.ToLower(n)) {
				return c.err
			}
		}
	}
	return ErrRejected
}

// IsTransient reports whether a retry might succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
