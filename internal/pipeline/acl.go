package pipeline

import (
	"context"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AccessControl grants protocol roles to operator accounts. Grants are
// signed by the acl administrator.
type AccessControl struct {
	gw     gateway.Gateway
	admin  gateway.Account
	fns    market.Functions
	logger *zap.SugaredLogger

	flight singleflight.Group
}

func NewAccessControl(gw gateway.Gateway, admin gateway.Account, fns market.Functions, logger *zap.SugaredLogger) *AccessControl {
	return &AccessControl{gw: gw, admin: admin, fns: fns, logger: logger}
}

func (a *AccessControl) HasRole(ctx context.Context, account *sui.Address, role market.Role) (bool, error) {
	return viewBool(ctx, a.gw, a.fns.HasRole(role), gateway.Address(account))
}

// EnsureRole grants role to account unless it is already held. Concurrent
// calls for the same pair share one check and at most one grant. The
// shared work is not canceled with the caller that started it; each
// caller stops waiting when its own ctx is done.
func (a *AccessControl) EnsureRole(ctx context.Context, account *sui.Address, role market.Role) (Outcome, string, error) {
	type grant struct {
		outcome Outcome
		digest  string
	}
	if err := ctx.Err(); err != nil {
		return OutcomeFailed, "", err
	}
	key := account.String() + "/" + role.String()
	ch := a.flight.DoChan(key, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		held, err := a.HasRole(ctx, account, role)
		if err != nil {
			return grant{outcome: OutcomeFailed}, err
		}
		if held {
			a.logger.Debugw("role already held", "account", account.String(), "role", role.String())
			return grant{outcome: OutcomeAlreadyExists}, nil
		}
		digest, err := submit(ctx, a.gw, a.admin, a.fns.GrantRole(role), gateway.Address(account))
		if err != nil {
			return grant{outcome: OutcomeFailed}, err
		}
		a.logger.Infow("role granted",
			"account", account.String(),
			"role", role.String(),
			"digest", digest,
		)
		return grant{outcome: OutcomeApplied, digest: digest}, nil
	})
	select {
	case res := <-ch:
		g := res.Val.(grant)
		return g.outcome, g.digest, res.Err
	case <-ctx.Done():
		return OutcomeFailed, "", ctx.Err()
	}
}

// Grant is one role an operator profile must hold.
type Grant struct {
	Account gateway.Account
	Role    market.Role
}

// RequiredGrants lists the roles each signing profile needs before its
// component can run.
func RequiredGrants(accounts Accounts) []Grant {
	return []Grant{
		{Account: accounts.Pool, Role: market.RolePoolAdmin},
		{Account: accounts.Rate, Role: market.RoleRiskAdmin},
		{Account: accounts.Rate, Role: market.RolePoolAdmin},
		{Account: accounts.Oracle, Role: market.RoleAssetListingAdmin},
		{Account: accounts.Oracle, Role: market.RolePoolAdmin},
	}
}

// EnsureAll grants every role in order and stops at the first failure.
func (a *AccessControl) EnsureAll(ctx context.Context, grants []Grant) ([]StepResult, error) {
	var results []StepResult
	for _, g := range grants {
		step := g.Account.Profile + ":" + g.Role.String()
		outcome, digest, err := a.EnsureRole(ctx, g.Account.Address, g.Role)
		if err != nil {
			serr := stepError(StageAccessControl, "", step, err)
			results = append(results, result(StageAccessControl, "", step, OutcomeFailed, digest, serr))
			return results, serr
		}
		results = append(results, result(StageAccessControl, "", step, outcome, digest, nil))
	}
	return results, nil
}

// Check reports which grants are missing without submitting anything.
func (a *AccessControl) Check(ctx context.Context, grants []Grant) ([]StepResult, error) {
	var results []StepResult
	for _, g := range grants {
		step := g.Account.Profile + ":" + g.Role.String()
		held, err := a.HasRole(ctx, g.Account.Address, g.Role)
		if err != nil {
			return results, stepError(StageAccessControl, "", step, err)
		}
		outcome := OutcomeMissing
		if held {
			outcome = OutcomeAlreadyExists
		}
		results = append(results, result(StageAccessControl, "", step, outcome, "", nil))
	}
	return results, nil
}
