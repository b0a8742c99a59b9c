package inventory

import (
	"context"
	"strings"

	"github.com/warp/sim-inventory/access"
)

// CustomerInput is the payload for creating or updating a customer.
type CustomerInput struct {
	Name  string
	Email *string
}

// SimTypeInput is the payload for creating or updating a sim type.
type SimTypeInput struct {
	Name            string
	PurchaseProduct string
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidf("customer name is required")
	}
	c := Customer{Name: name, Email: trimmedOrNil(in.Email)}
	err := s.Atomic(ctx, access.OpCreateCustomer, func(st Tx) error {
		id, err := st.InsertCustomer(ctx, c)
		c.ID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	if err := access.Require(ctx, access.OpListCustomers); err != nil {
		return nil, err
	}
	out, err := s.store.ListCustomers(ctx)
	if out == nil && err == nil {
		out = []Customer{}
	}
	return out, err
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	if err := access.Require(ctx, access.OpGetCustomer); err != nil {
		return nil, err
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("Customer")
	}
	return c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*Customer, error) {
	var out *Customer
	err := s.Atomic(ctx, access.OpUpdateCustomer, func(st Tx) error {
		c, err := st.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return notFound("Customer")
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			c.Name = name
		}
		if in.Email != nil {
			c.Email = trimmedOrNil(in.Email)
		}
		if err := st.UpdateCustomer(ctx, *c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveCustomer deletes a customer that no transaction references.
func (s *Service) RemoveCustomer(ctx context.Context, id int64) error {
	return s.Atomic(ctx, access.OpRemoveCustomer, func(st Tx) error {
		c, err := st.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return notFound("Customer")
		}
		n, err := st.CountCustomerTransactions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflictf("Customer", "customer is referenced by %d transactions", n)
		}
		return st.DeleteCustomer(ctx, id)
	})
}

// FindOrCreateCustomer resolves a customer by exact (trimmed) name,
// creating it when absent.
func FindOrCreateCustomer(ctx context.Context, st Store, name string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("customer name is required")
	}
	c, err := st.GetCustomerByName(ctx, name)
	if err != nil || c != nil {
		return c, err
	}
	created := Customer{Name: name}
	if created.ID, err = st.InsertCustomer(ctx, created); err != nil {
		return nil, err
	}
	return &created, nil
}

// =============================================================================
// SIM TYPES
// =============================================================================

func (s *Service) CreateSimType(ctx context.Context, in SimTypeInput) (*SimType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidf("sim type name is required")
	}
	t := SimType{Name: name, PurchaseProduct: strings.TrimSpace(in.PurchaseProduct)}
	err := s.Atomic(ctx, access.OpCreateSimType, func(st Tx) error {
		existing, err := st.GetSimTypeByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictf("SimType", "sim type with that name already exists")
		}
		t.ID, err = st.InsertSimType(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) ListSimTypes(ctx context.Context) ([]SimType, error) {
	if err := access.Require(ctx, access.OpListSimTypes); err != nil {
		return nil, err
	}
	out, err := s.store.ListSimTypes(ctx)
	if out == nil && err == nil {
		out = []SimType{}
	}
	return out, err
}

func (s *Service) GetSimType(ctx context.Context, id int64) (*SimType, error) {
	if err := access.Require(ctx, access.OpGetSimType); err != nil {
		return nil, err
	}
	t, err := s.store.GetSimType(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, notFound("SimType")
	}
	return t, nil
}

func (s *Service) UpdateSimType(ctx context.Context, id int64, in SimTypeInput) (*SimType, error) {
	var out *SimType
	err := s.Atomic(ctx, access.OpUpdateSimType, func(st Tx) error {
		t, err := st.GetSimType(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return notFound("SimType")
		}
		if name := strings.TrimSpace(in.Name); name != "" && name != t.Name {
			other, err := st.GetSimTypeByName(ctx, name)
			if err != nil {
				return err
			}
			if other != nil {
				return conflictf("SimType", "sim type with that name already exists")
			}
			t.Name = name
		}
		if p := strings.TrimSpace(in.PurchaseProduct); p != "" {
			t.PurchaseProduct = p
		}
		if err := st.UpdateSimType(ctx, *t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveSimType deletes a type no card refers to.
func (s *Service) RemoveSimType(ctx context.Context, id int64) error {
	return s.Atomic(ctx, access.OpRemoveSimType, func(st Tx) error {
		t, err := st.GetSimType(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return notFound("SimType")
		}
		n, err := st.CountCardsOfType(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflictf("SimType", "sim type is used by %d sim cards", n)
		}
		return st.DeleteSimType(ctx, id)
	})
}

// FindOrCreateSimType resolves a type by exact (trimmed) name, creating it
// with purchaseProduct when absent.
func FindOrCreateSimType(ctx context.Context, st Store, name, purchaseProduct string) (*SimType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("sim type name is required")
	}
	t, err := st.GetSimTypeByName(ctx, name)
	if err != nil || t != nil {
		return t, err
	}
	created := SimType{Name: name, PurchaseProduct: strings.TrimSpace(purchaseProduct)}
	if created.ID, err = st.InsertSimType(ctx, created); err != nil {
		return nil, err
	}
	return &created, nil
}
