/*
Package access maps core operations to the (resource, action) permission
they require, and carries a caller's grants on the context.

PURPOSE:
  The inventory core does not decide who may do what. It only refuses to
  run an operation unless the context carries a grant for the permission
  listed for that operation in Operations. Computing the grants (from a
  role, a token, ...) is the caller's job; see RolePermissions and the api
  middleware.

DATA-DRIVEN:
  Operations and Roles are plain tables so they can be audited and tested
  without running the core.

EXAMPLE:
  ctx = access.WithGrants(ctx, access.RolePermissions("operator")...)
  if err := access.Require(ctx, access.OpCreateCard); err != nil {
      // PermissionDenied
  }
*/
package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrPermissionDenied is returned when the context lacks the required grant.
var ErrPermissionDenied = errors.New("permission denied")

// Resource names a protected resource family.
type Resource string

const (
	ResourceSimCards     Resource = "simcards"
	ResourceTransactions Resource = "transactions"
	ResourceCustomers    Resource = "customers"
	ResourceSimTypes     Resource = "simtypes"
	ResourceDashboard    Resource = "dashboard"
)

// Action is what the caller wants to do with a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Permission is a (resource, action) pair.
type Permission struct {
	Resource Resource
	Action   Action
}

func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Operation names a core entry point.
type Operation string

const (
	OpCreateCard     Operation = "createCard"
	OpListCards      Operation = "listCards"
	OpPaginateCards  Operation = "paginateCards"
	OpGetCard        Operation = "getCard"
	OpUpdateCard     Operation = "updateCard"
	OpChangeCustomer Operation = "changeCustomer"
	OpRemoveCard     Operation = "removeCard"
	OpImportCards    Operation = "importCards"
	OpCardSummary    Operation = "cardSummary"

	OpCreateTransaction Operation = "createTransaction"
	OpListTransactions  Operation = "listTransactions"
	OpGetTransaction    Operation = "getTransaction"
	OpUpdateTransaction Operation = "updateTransaction"
	OpRemoveTransaction Operation = "removeTransaction"
	OpReportByCustomer  Operation = "reportByCustomer"

	OpCreateCustomer Operation = "createCustomer"
	OpListCustomers  Operation = "listCustomers"
	OpGetCustomer    Operation = "getCustomer"
	OpUpdateCustomer Operation = "updateCustomer"
	OpRemoveCustomer Operation = "removeCustomer"

	OpCreateSimType Operation = "createSimType"
	OpListSimTypes  Operation = "listSimTypes"
	OpGetSimType    Operation = "getSimType"
	OpUpdateSimType Operation = "updateSimType"
	OpRemoveSimType Operation = "removeSimType"

	OpOverview Operation = "overview"
)

// Operations is the single source for which permission each operation needs.
var Operations = map[Operation]Permission{
	OpCreateCard:     {ResourceSimCards, ActionCreate},
	OpImportCards:    {ResourceSimCards, ActionCreate},
	OpListCards:      {ResourceSimCards, ActionView},
	OpPaginateCards:  {ResourceSimCards, ActionView},
	OpGetCard:        {ResourceSimCards, ActionView},
	OpCardSummary:    {ResourceSimCards, ActionView},
	OpUpdateCard:     {ResourceSimCards, ActionEdit},
	OpChangeCustomer: {ResourceSimCards, ActionEdit},
	OpRemoveCard:     {ResourceSimCards, ActionDelete},

	OpCreateTransaction: {ResourceTransactions, ActionCreate},
	OpListTransactions:  {ResourceTransactions, ActionView},
	OpGetTransaction:    {ResourceTransactions, ActionView},
	OpReportByCustomer:  {ResourceTransactions, ActionView},
	OpUpdateTransaction: {ResourceTransactions, ActionEdit},
	OpRemoveTransaction: {ResourceTransactions, ActionDelete},

	OpCreateCustomer: {ResourceCustomers, ActionCreate},
	OpListCustomers:  {ResourceCustomers, ActionView},
	OpGetCustomer:    {ResourceCustomers, ActionView},
	OpUpdateCustomer: {ResourceCustomers, ActionEdit},
	OpRemoveCustomer: {ResourceCustomers, ActionDelete},

	OpCreateSimType: {ResourceSimTypes, ActionCreate},
	OpListSimTypes:  {ResourceSimTypes, ActionView},
	OpGetSimType:    {ResourceSimTypes, ActionView},
	OpUpdateSimType: {ResourceSimTypes, ActionEdit},
	OpRemoveSimType: {ResourceSimTypes, ActionDelete},

	OpOverview: {ResourceDashboard, ActionView},
}

// RequiredFor returns the permission an operation needs.
func RequiredFor(op Operation) (Permission, bool) {
	p, ok := Operations[op]
	return p, ok
}

// =============================================================================
// GRANTS
// =============================================================================

// Grants is the set of permissions held by the current caller.
type Grants map[Permission]struct{}

// Has reports whether p is granted.
func (g Grants) Has(p Permission) bool {
	_, ok := g[p]
	return ok
}

// List returns the grants sorted for stable output.
func (g Grants) List() []Permission {
	out := make([]Permission, 0, len(g))
	for p := range g {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

type grantsKey struct{}

// WithGrants returns a context carrying perms in addition to any grants
// already on ctx.
func WithGrants(ctx context.Context, perms ...Permission) context.Context {
	existing := GrantsFrom(ctx)
	merged := make(Grants, len(existing)+len(perms))
	for p := range existing {
		merged[p] = struct{}{}
	}
	for _, p := range perms {
		merged[p] = struct{}{}
	}
	return context.WithValue(ctx, grantsKey{}, merged)
}

// GrantsFrom returns the grants on ctx (empty when none).
func GrantsFrom(ctx context.Context) Grants {
	g, _ := ctx.Value(grantsKey{}).(Grants)
	return g
}

// DeniedError names the permission that was missing.
type DeniedError struct {
	Operation  Operation
	Permission Permission
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("you do not have permission to %s %s", e.Permission.Action, e.Permission.Resource)
}

func (e *DeniedError) Unwrap() error { return ErrPermissionDenied }

// Require fails with a DeniedError unless ctx grants the permission op needs.
// Unknown operations are always denied.
func Require(ctx context.Context, op Operation) error {
	p, ok := Operations[op]
	if !ok {
		return &DeniedError{Operation: op}
	}
	if !GrantsFrom(ctx).Has(p) {
		return &DeniedError{Operation: op, Permission: p}
	}
	return nil
}
