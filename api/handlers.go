/*
handlers.go - HTTP API handlers for the SIM inventory

PURPOSE:
  Exposes the inventory service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the inventory and importer packages.

ENDPOINTS:
  Sim cards:
    POST   /api/simCards                        Create card (initial STOCK_IN)
    POST   /api/simCards/import                 Bulk import (multipart "file")
    GET    /api/simCards                        List all, or a page with ?page&limit
    POST   /api/simCards/paginate               Page of cards
    GET    /api/simCards/summary                Stock summary
    GET    /api/simCards/{id}                   Card with history
    PATCH  /api/simCards/{id}                   Update serial/IMSI/type
    PATCH  /api/simCards/{id}/change-customer   Reassign latest STOCK_OUT
    DELETE /api/simCards/{id}                   Delete card and its ledger

  Transactions:
    POST   /api/transactions                    Record movement
    GET    /api/transactions                    Filtered page
    POST   /api/transactions/search             Same filter, JSON body
    GET    /api/transactions/{id}               One event
    GET    /api/transactions/customer/{id}/report  Counts per customer
    PATCH  /api/transactions/{id}               Update event
    DELETE /api/transactions/{id}               Delete event

  Catalog:
    /api/customers, /api/simTypes               CRUD

  Dashboard:
    GET    /api/dashboard?days=30               Overview

REQUEST FLOW:
  1. Parse HTTP request (path ids, query, JSON body)
  2. Validate shape with validator/v10
  3. Call the inventory service with the request context (grants included)
  4. Serialize response
  5. Map errors by kind

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 403: Missing permission
  - 404: Resource not found
  - 409: Conflict (duplicate, still referenced, import in progress)
  - 413: Upload larger than the configured limit
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/inventory/importer"
)

// DefaultMaxUploadBytes caps import uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc       *inventory.Service
	imp       *importer.Importer
	validate  *validator.Validate
	log       logrus.FieldLogger
	maxUpload int64
}

// NewHandler creates a handler. maxUpload <= 0 uses DefaultMaxUploadBytes.
func NewHandler(svc *inventory.Service, imp *importer.Importer, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		svc:       svc,
		imp:       imp,
		validate:  newValidator(),
		log:       svc.Logger().WithField("component", "api"),
		maxUpload: maxUpload,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.svc.Store().(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SIM CARD HANDLERS
// =============================================================================

// CreateSimCard creates a card in stock.
func (h *Handler) CreateSimCard(w http.ResponseWriter, r *http.Request) {
	var req CreateSimCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.CreateCard(r.Context(), inventory.CardInput{
		SerialNumber: req.SerialNumber,
		IMSI:         req.IMSI,
		SimTypeID:    req.SimTypeID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSimCardDTO(*view))
}

var importFileName = regexp.MustCompile(`(?i)\.(xlsx|csv)$`)
var importMimeType = regexp.MustCompile(`(?i)xlsx|csv|spreadsheet`)

// ImportSimCards reconciles an uploaded xlsx/csv file.
func (h *Handler) ImportSimCards(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", h.maxUpload), nil)
			return
		}
		writeError(w, http.StatusBadRequest, `File is required. Send multipart/form-data with field name "file"`, nil)
		return
	}
	defer file.Close()

	if !importFileName.MatchString(filepath.Base(header.Filename)) &&
		!importMimeType.MatchString(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "Only .xlsx or .csv files are allowed", nil)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	report, err := h.imp.Import(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResultDTO(*report))
}

// ListSimCards returns every card, or one page when page or limit is given.
func (h *Handler) ListSimCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("page") || q.Has("limit") {
		page, ok := queryInt(w, r, "page")
		if !ok {
			return
		}
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		h.writeCardPage(w, r, page, limit)
		return
	}

	views, err := h.svc.ListCards(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]SimCardDTO, len(views))
	for i, v := range views {
		dtos[i] = toSimCardDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PaginateSimCards returns a page of cards from a JSON body.
func (h *Handler) PaginateSimCards(w http.ResponseWriter, r *http.Request) {
	var req PaginateRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	h.writeCardPage(w, r, req.Page, req.Limit)
}

func (h *Handler) writeCardPage(w http.ResponseWriter, r *http.Request, page, limit int) {
	p, err := h.svc.PaginateCards(r.Context(), page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]SimCardDTO, len(p.Items))
	for i, v := range p.Items {
		dtos[i] = toSimCardDTO(v)
	}
	writeJSON(w, http.StatusOK, PageDTO[SimCardDTO]{Items: dtos, Total: p.Total, Page: p.Page, Limit: p.Limit})
}

// SimCardSummary returns totals and the out-of-stock ratio.
func (h *Handler) SimCardSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.CardSummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// GetSimCard returns a card with its history.
func (h *Handler) GetSimCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetCard(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimCardDTO(*view))
}

// UpdateSimCard patches serial, IMSI or type.
func (h *Handler) UpdateSimCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateSimCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.UpdateCard(r.Context(), id, inventory.CardPatch{
		SerialNumber: req.SerialNumber,
		IMSI:         req.IMSI,
		SimTypeID:    req.SimTypeID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimCardDTO(*view))
}

// ChangeCustomer reassigns the customer of a card's latest STOCK_OUT.
func (h *Handler) ChangeCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ChangeCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.ChangeCustomer(r.Context(), id, req.CustomerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimCardDTO(*view))
}

// DeleteSimCard removes a card and its ledger.
func (h *Handler) DeleteSimCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.RemoveCard(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveSimCardDTO{ID: id, DeletedTransactions: removed})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records a movement (folding into the latest event).
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.svc.CreateTransaction(r.Context(), inventory.RecordInput{
		SimCardID:  req.SimCardID,
		CustomerID: req.CustomerID,
		Type:       inventory.TxType(req.Type),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*rec))
}

// ListTransactions filters by query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	h.writeTransactionPage(w, r, inventory.TransactionFilter{
		SerialNumber: q.Get("serialNumber"),
		Type:         inventory.TxType(q.Get("type")),
		CardStatus:   inventory.Status(q.Get("simStatus")),
		Page:         page,
		Limit:        limit,
	})
}

// SearchTransactions is ListTransactions with a JSON body.
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	var req SearchTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	status := req.SimStatus
	if status == "" {
		status = req.Status
	}
	h.writeTransactionPage(w, r, inventory.TransactionFilter{
		SerialNumber: req.SerialNumber,
		Type:         inventory.TxType(req.Type),
		CardStatus:   inventory.Status(status),
		Page:         req.Page,
		Limit:        req.Limit,
	})
}

func (h *Handler) writeTransactionPage(w http.ResponseWriter, r *http.Request, f inventory.TransactionFilter) {
	p, err := h.svc.ListTransactions(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]TransactionDTO, len(p.Items))
	for i, rec := range p.Items {
		dtos[i] = toTransactionDTO(rec)
	}
	writeJSON(w, http.StatusOK, PageDTO[TransactionDTO]{Items: dtos, Total: p.Total, Page: p.Page, Limit: p.Limit})
}

// GetTransaction returns one event.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*rec))
}

// CustomerReport counts a customer's movements.
func (h *Handler) CustomerReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.ReportByCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerReportDTO{CustomerID: rep.CustomerID, StockIn: rep.StockIn, StockOut: rep.StockOut})
}

// UpdateTransaction patches an event.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := inventory.TransactionPatch{SimCardID: req.SimCardID, CustomerID: req.CustomerID}
	if req.Type != nil {
		t := inventory.TxType(*req.Type)
		patch.Type = &t
	}
	rec, err := h.svc.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*rec))
}

// DeleteTransaction removes an event and re-derives its card.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveTransaction(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), inventory.CustomerInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCustomer(r.Context(), id, inventory.CustomerInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveCustomer(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SIM TYPE HANDLERS
// =============================================================================

func (h *Handler) CreateSimType(w http.ResponseWriter, r *http.Request) {
	var req SimTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.CreateSimType(r.Context(), inventory.SimTypeInput{Name: req.Name, PurchaseProduct: req.PurchaseProduct})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSimTypeDTO(*t))
}

func (h *Handler) ListSimTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ListSimTypes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]SimTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toSimTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSimType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetSimType(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimTypeDTO(*t))
}

func (h *Handler) UpdateSimType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SimTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.UpdateSimType(r.Context(), id, inventory.SimTypeInput{Name: req.Name, PurchaseProduct: req.PurchaseProduct})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimTypeDTO(*t))
}

func (h *Handler) DeleteSimType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveSimType(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard returns the overview for ?days (default 30).
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	ov, err := h.svc.Overview(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(ov))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps an inventory error to its HTTP status. Unclassified errors are
// logged and hidden from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case inventory.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case inventory.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case inventory.IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: details})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid id %q", raw), nil)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s %q", name, raw), nil)
		return 0, false
	}
	return n, true
}
