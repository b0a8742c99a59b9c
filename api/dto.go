/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the inventory model from the external API contract. Field names follow
  the existing web client (camelCase).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 tags for shape checks (required,
  oneof, email). Business rules (trimmed serial, IMSI ownership) stay in
  the inventory package.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/inventory/importer"
)

// =============================================================================
// CATALOG
// =============================================================================

// SimTypeDTO represents a sim type in API responses.
type SimTypeDTO struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	PurchaseProduct string `json:"purchaseProduct"`
}

// SimTypeRequest creates or replaces a sim type.
type SimTypeRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	PurchaseProduct string `json:"purchaseProduct" validate:"max=255"`
}

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// CustomerRequest creates or updates a customer.
type CustomerRequest struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// =============================================================================
// SIM CARDS
// =============================================================================

// SimCardDTO represents a card. Transactions is only set on single-card
// reads.
type SimCardDTO struct {
	ID           int64            `json:"id"`
	SerialNumber string           `json:"serialNumber"`
	IMSI         *string          `json:"imsi"`
	Status       string           `json:"status"`
	SimTypeID    *int64           `json:"simTypeId"`
	SimType      *SimTypeDTO      `json:"simType"`
	CustomerName *string          `json:"customerName"`
	Transactions []TransactionDTO `json:"transactions,omitempty"`
}

// CreateSimCardRequest is the request to create a card. Status cannot be
// supplied; every new card starts IN_STOCK.
type CreateSimCardRequest struct {
	SerialNumber string  `json:"serialNumber" validate:"required,max=255"`
	IMSI         *string `json:"imsi" validate:"omitempty,max=64"`
	SimTypeID    *int64  `json:"simTypeId" validate:"omitempty,gt=0"`
}

// UpdateSimCardRequest patches a card. An empty imsi clears it.
type UpdateSimCardRequest struct {
	SerialNumber *string `json:"serialNumber" validate:"omitempty,max=255"`
	IMSI         *string `json:"imsi" validate:"omitempty,max=64"`
	SimTypeID    *int64  `json:"simTypeId" validate:"omitempty,gt=0"`
}

// ChangeCustomerRequest reassigns the latest STOCK_OUT. A null customerId
// clears the customer.
type ChangeCustomerRequest struct {
	CustomerID *int64 `json:"customerId" validate:"omitempty,gt=0"`
}

// PaginateRequest selects a page of cards. Zero values use the defaults.
type PaginateRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// RemoveSimCardDTO reports a deleted card.
type RemoveSimCardDTO struct {
	ID                  int64 `json:"id"`
	DeletedTransactions int   `json:"deletedTransactions"`
}

// TypeCountDTO is one "cards by type" bucket.
type TypeCountDTO struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SummaryDTO is the stock summary. outStockRatio is a percent string with
// two decimals.
type SummaryDTO struct {
	Total         int             `json:"total"`
	InStock       int             `json:"inStock"`
	OutStock      int             `json:"outStock"`
	OutStockRatio decimal.Decimal `json:"outStockRatio"`
	ByType        []TypeCountDTO  `json:"byType"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger event.
type TransactionDTO struct {
	ID           int64   `json:"id"`
	SimCardID    int64   `json:"simCardId"`
	SerialNumber string  `json:"serialNumber"`
	SimStatus    string  `json:"simStatus"`
	CustomerID   *int64  `json:"customerId"`
	CustomerName *string `json:"customerName"`
	Type         string  `json:"type"`
	CreatedAt    string  `json:"createdAt"`
}

// CreateTransactionRequest records a movement.
type CreateTransactionRequest struct {
	SimCardID  int64  `json:"simCardId" validate:"required,gt=0"`
	CustomerID *int64 `json:"customerId" validate:"omitempty,gt=0"`
	Type       string `json:"type" validate:"required,oneof=STOCK_IN STOCK_OUT"`
}

// UpdateTransactionRequest patches an event.
type UpdateTransactionRequest struct {
	SimCardID  *int64  `json:"simCardId" validate:"omitempty,gt=0"`
	CustomerID *int64  `json:"customerId" validate:"omitempty,gt=0"`
	Type       *string `json:"type" validate:"omitempty,oneof=STOCK_IN STOCK_OUT"`
}

// SearchTransactionRequest is the POST /search body. status is accepted as
// an alias of simStatus.
type SearchTransactionRequest struct {
	SerialNumber string `json:"serialNumber"`
	Type         string `json:"type" validate:"omitempty,oneof=STOCK_IN STOCK_OUT"`
	SimStatus    string `json:"simStatus" validate:"omitempty,oneof=IN_STOCK OUT_STOCK"`
	Status       string `json:"status" validate:"omitempty,oneof=IN_STOCK OUT_STOCK"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
}

// PageDTO wraps one page of results.
type PageDTO[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// CustomerReportDTO counts a customer's movements.
type CustomerReportDTO struct {
	CustomerID int64 `json:"customerId"`
	StockIn    int   `json:"stockIn"`
	StockOut   int   `json:"stockOut"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DayMovementDTO is one day of the overview chart.
type DayMovementDTO struct {
	Date     string `json:"date"`
	StockIn  int    `json:"stockIn"`
	StockOut int    `json:"stockOut"`
}

// CustomerCountDTO counts the cards a customer holds.
type CustomerCountDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// OverviewDTO is the dashboard payload.
type OverviewDTO struct {
	Total              int                `json:"total"`
	InStock            int                `json:"inStock"`
	OutStock           int                `json:"outStock"`
	TransactionHistory []DayMovementDTO   `json:"transactionHistory"`
	ByType             []TypeCountDTO     `json:"byType"`
	ByCustomer         []CustomerCountDTO `json:"byCustomer"`
}

// =============================================================================
// IMPORT
// =============================================================================

// IMSIAuditDTO shows the IMSI comparison made for an existing card.
type IMSIAuditDTO struct {
	IncomingIMSI           *string `json:"incomingImsi"`
	IncomingIMSINormalized *string `json:"incomingImsiNormalized"`
	ExistingIMSI           *string `json:"existingImsi"`
	ExistingIMSINormalized *string `json:"existingImsiNormalized"`
	IMSIMatch              bool    `json:"imsiMatch"`
}

// ImportRowDTO is the outcome of one row.
type ImportRowDTO struct {
	Line         int           `json:"line"`
	Status       string        `json:"status"`
	SerialNumber string        `json:"serialNumber,omitempty"`
	SimCardID    int64         `json:"simCardId,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Message      string        `json:"message,omitempty"`
	Audit        *IMSIAuditDTO `json:"audit,omitempty"`
}

// ImportResultDTO is the import report.
type ImportResultDTO struct {
	RunID   string         `json:"runId"`
	Total   int            `json:"total"`
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
	Results []ImportRowDTO `json:"results"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSimTypeDTO(t inventory.SimType) SimTypeDTO {
	return SimTypeDTO{ID: t.ID, Name: t.Name, PurchaseProduct: t.PurchaseProduct}
}

func toCustomerDTO(c inventory.Customer) CustomerDTO {
	return CustomerDTO{ID: c.ID, Name: c.Name, Email: c.Email}
}

func toTransactionDTO(r inventory.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		ID:           r.ID,
		SimCardID:    r.SimCardID,
		SerialNumber: r.SerialNumber,
		SimStatus:    string(r.CardStatus),
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		Type:         string(r.Type),
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toSimCardDTO(v inventory.CardView) SimCardDTO {
	dto := SimCardDTO{
		ID:           v.ID,
		SerialNumber: v.SerialNumber,
		IMSI:         v.IMSI,
		Status:       string(v.Status),
		SimTypeID:    v.SimTypeID,
		CustomerName: v.CustomerName,
	}
	if v.SimType != nil {
		t := toSimTypeDTO(*v.SimType)
		dto.SimType = &t
	}
	if v.Transactions != nil {
		dto.Transactions = make([]TransactionDTO, len(v.Transactions))
		for i, r := range v.Transactions {
			dto.Transactions[i] = toTransactionDTO(r)
		}
	}
	return dto
}

func toTypeCountDTOs(counts []inventory.TypeCount) []TypeCountDTO {
	out := make([]TypeCountDTO, len(counts))
	for i, c := range counts {
		out[i] = TypeCountDTO{Name: c.Name, Count: c.Count}
	}
	return out
}

func toSummaryDTO(s inventory.Summary) SummaryDTO {
	return SummaryDTO{
		Total:         s.Total,
		InStock:       s.InStock,
		OutStock:      s.OutStock,
		OutStockRatio: s.OutStockRatio,
		ByType:        toTypeCountDTOs(s.ByType),
	}
}

func toOverviewDTO(o inventory.Overview) OverviewDTO {
	dto := OverviewDTO{
		Total:              o.Total,
		InStock:            o.InStock,
		OutStock:           o.OutStock,
		TransactionHistory: make([]DayMovementDTO, len(o.TransactionHistory)),
		ByType:             toTypeCountDTOs(o.ByType),
		ByCustomer:         make([]CustomerCountDTO, len(o.ByCustomer)),
	}
	for i, d := range o.TransactionHistory {
		dto.TransactionHistory[i] = DayMovementDTO{Date: d.Date, StockIn: d.StockIn, StockOut: d.StockOut}
	}
	for i, c := range o.ByCustomer {
		dto.ByCustomer[i] = CustomerCountDTO{ID: c.ID, Name: c.Name, Count: c.Count}
	}
	return dto
}

func toImportResultDTO(r importer.Report) ImportResultDTO {
	dto := ImportResultDTO{
		RunID:   r.RunID,
		Total:   r.Total,
		Created: r.Created,
		Updated: r.Updated,
		Skipped: r.Skipped,
		Errors:  r.Errors,
		Results: make([]ImportRowDTO, len(r.Results)),
	}
	for i, res := range r.Results {
		row := ImportRowDTO{
			Line:         res.Line,
			Status:       string(res.Status),
			SerialNumber: res.SerialNumber,
			SimCardID:    res.SimCardID,
			Reason:       res.Reason,
			Message:      res.Message,
		}
		if a := res.Audit; a != nil {
			row.Audit = &IMSIAuditDTO{
				IncomingIMSI:           a.IncomingIMSI,
				IncomingIMSINormalized: a.IncomingIMSINormalized,
				ExistingIMSI:           a.ExistingIMSI,
				ExistingIMSINormalized: a.ExistingIMSINormalized,
				IMSIMatch:              a.IMSIMatch,
			}
		}
		dto.Results[i] = row
	}
	return dto
}
