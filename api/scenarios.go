/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates an inventory with realistic sample data through the regular
  service operations, so every rule (initial STOCK_IN, derived status,
  reassignment) applies exactly as it would for real traffic.

AVAILABLE SCENARIOS:
  catalog:  Four sim types and six customers
  demo:     catalog + twelve cards, every second card issued to a customer

HOW SCENARIOS WORK:
  Loading is idempotent: types and customers are matched by name, cards by
  serial number, and only missing entries are created. Cards that already
  exist are left alone.

USAGE VIA API:
  GET  /api/scenarios
  POST /api/scenarios/load
  {"scenarioId": "demo"}
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/sim-inventory/inventory"
)

// Scenario is a named data set.
type Scenario struct {
	ID          string
	Name        string
	Description string
	load        func(ctx context.Context, svc *inventory.Service) (ScenarioResult, error)
}

// ScenarioResult counts what a load created.
type ScenarioResult struct {
	SimTypes  int `json:"simTypes"`
	Customers int `json:"customers"`
	SimCards  int `json:"simCards"`
	Issued    int `json:"issued"`
}

// ScenarioDTO describes a scenario in API responses.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// Scenarios lists the available data sets in display order.
var Scenarios = []Scenario{
	{
		ID:          "catalog",
		Name:        "Catalog only",
		Description: "Sim types and customers, no cards",
		load:        loadCatalog,
	},
	{
		ID:          "demo",
		Name:        "Demo warehouse",
		Description: "Twelve cards across four sim types; half of them issued",
		load:        loadDemo,
	},
}

var demoSimTypes = []inventory.SimTypeInput{
	{Name: "digi", PurchaseProduct: "digi-product"},
	{Name: "maxis", PurchaseProduct: "maxis-product"},
	{Name: "flexiroam", PurchaseProduct: "flexiroam-product"},
	{Name: "singtel", PurchaseProduct: "singtel-product"},
}

var demoCustomers = []struct{ name, email string }{
	{"ACME Corp", "contact@acme.test"},
	{"Beta Ltd", "info@beta.test"},
	{"Gamma LLC", "hello@gamma.test"},
	{"Delta Co", "sales@delta.test"},
	{"Epsilon Inc", "support@epsilon.test"},
	{"Zeta Partners", "contact@zeta.test"},
}

const demoCards = 12

// LoadScenario runs the scenario with the given id.
func LoadScenario(ctx context.Context, svc *inventory.Service, id string) (ScenarioResult, error) {
	for _, s := range Scenarios {
		if s.ID == id {
			return s.load(ctx, svc)
		}
	}
	return ScenarioResult{}, inventory.NotFoundError("Scenario")
}

type catalog struct {
	types     []inventory.SimType
	customers []inventory.Customer
}

func ensureCatalog(ctx context.Context, svc *inventory.Service, res *ScenarioResult) (catalog, error) {
	var cat catalog

	types, err := svc.ListSimTypes(ctx)
	if err != nil {
		return cat, err
	}
	byName := make(map[string]inventory.SimType, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}
	for _, in := range demoSimTypes {
		t, ok := byName[in.Name]
		if !ok {
			created, err := svc.CreateSimType(ctx, in)
			if err != nil {
				return cat, fmt.Errorf("sim type %s: %w", in.Name, err)
			}
			t = *created
			res.SimTypes++
		}
		cat.types = append(cat.types, t)
	}

	customers, err := svc.ListCustomers(ctx)
	if err != nil {
		return cat, err
	}
	byCustomer := make(map[string]inventory.Customer, len(customers))
	for _, c := range customers {
		byCustomer[c.Name] = c
	}
	for _, in := range demoCustomers {
		c, ok := byCustomer[in.name]
		if !ok {
			email := in.email
			created, err := svc.CreateCustomer(ctx, inventory.CustomerInput{Name: in.name, Email: &email})
			if err != nil {
				return cat, fmt.Errorf("customer %s: %w", in.name, err)
			}
			c = *created
			res.Customers++
		}
		cat.customers = append(cat.customers, c)
	}
	return cat, nil
}

func loadCatalog(ctx context.Context, svc *inventory.Service) (ScenarioResult, error) {
	var res ScenarioResult
	_, err := ensureCatalog(ctx, svc, &res)
	return res, err
}

func loadDemo(ctx context.Context, svc *inventory.Service) (ScenarioResult, error) {
	var res ScenarioResult
	cat, err := ensureCatalog(ctx, svc, &res)
	if err != nil {
		return res, err
	}

	existing, err := svc.ListCards(ctx)
	if err != nil {
		return res, err
	}
	serials := make(map[string]bool, len(existing))
	for _, c := range existing {
		serials[c.SerialNumber] = true
	}

	for i := 0; i < demoCards; i++ {
		serial := fmt.Sprintf("SN%d", 100001+i)
		if serials[serial] {
			continue
		}
		imsi := fmt.Sprintf("IMSI%d", 100001+i)
		simType := cat.types[i%len(cat.types)]
		card, err := svc.CreateCard(ctx, inventory.CardInput{SerialNumber: serial, IMSI: &imsi, SimTypeID: &simType.ID})
		if err != nil {
			return res, fmt.Errorf("sim card %s: %w", serial, err)
		}
		res.SimCards++

		if i%2 == 1 {
			customer := cat.customers[(i+1)%len(cat.customers)]
			if _, err := svc.ChangeCustomer(ctx, card.ID, &customer.ID); err != nil {
				return res, fmt.Errorf("issue %s: %w", serial, err)
			}
			res.Issued++
		}
	}
	return res, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(Scenarios))
	for i, s := range Scenarios {
		dtos[i] = ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario applies a scenario with the caller's grants.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := LoadScenario(r.Context(), h.svc, req.ScenarioID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, res)
}
