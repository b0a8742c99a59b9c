/*
Package importer reconciles spreadsheet uploads against the card inventory.

PURPOSE:
  Takes an xlsx or CSV file describing inbound SIM cards and, for each row,
  creates the card, updates its IMSI, or skips it as a duplicate. Every
  accepted row adds a STOCK_IN to the ledger.

ATOMICITY:
  The whole file runs in one store transaction. Each row runs in its own
  savepoint:
    - business failure (missing serial, unknown id, IMSI taken) rolls back
      that row only and is reported as an "error" result
    - any other failure aborts and rolls back the entire import

ROW ALGORITHM:
  1. status (blank means IN_STOCK) must be IN_STOCK, else "skipped: not IN_STOCK"
  2. serialNumber is required
  3. simTypeId/customerId must exist; simTypeName/customerName are
     found or created
  4. no card with that serial  -> create card + STOCK_IN          "created"
     same serial, same IMSI    -> no change                       "skipped"
     same serial, other IMSI   -> replace IMSI, type; + STOCK_IN  "updated"

  IMSIs compare after trimming, case-insensitively; blank equals missing.
  receivedDate backdates the STOCK_IN. Status is re-derived from the ledger
  afterwards, so a backdated STOCK_IN older than a later STOCK_OUT leaves the
  card OUT_STOCK.

SEE ALSO:
  - parse.go: File sniffing and header mapping
  - cache/lock.go: Redis lock that serializes imports across instances
*/
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/sim-inventory/access"
	"github.com/warp/sim-inventory/inventory"
)

// Outcome is the per-row result kind.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

const (
	ReasonNotInStock = "not IN_STOCK"
	ReasonDuplicate  = "duplicate serial+imsi"
)

// IMSIAudit records the values compared for an existing card.
type IMSIAudit struct {
	IncomingIMSI           *string
	IncomingIMSINormalized *string
	ExistingIMSI           *string
	ExistingIMSINormalized *string
	IMSIMatch              bool
}

// RowResult is the outcome of one data row.
type RowResult struct {
	Line         int
	Status       Outcome
	SerialNumber string
	SimCardID    int64
	Reason       string // skipped rows
	Message      string // error rows
	Audit        *IMSIAudit
}

// Report summarizes one import run.
type Report struct {
	RunID   string
	// Total counts data rows that carry at least one value. Blank rows are
	// ignored and are not numbered.
	Total   int
	Created int
	Updated int
	Skipped int
	Errors  int
	Results []RowResult
}

func (r *Report) add(res RowResult) {
	switch res.Status {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errors++
	}
	r.Results = append(r.Results, res)
}

// Locker serializes imports. The returned release func must be called once
// the import has finished.
type Locker interface {
	Obtain(ctx context.Context) (release func(context.Context) error, err error)
}

// Importer runs bulk imports through an inventory.Service.
type Importer struct {
	svc  *inventory.Service
	lock Locker
	log  logrus.FieldLogger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLocker makes every import hold l for its duration.
func WithLocker(l Locker) Option {
	return func(im *Importer) { im.lock = l }
}

// New creates an importer that logs through the service logger.
func New(svc *inventory.Service, opts ...Option) *Importer {
	im := &Importer{svc: svc}
	for _, opt := range opts {
		opt(im)
	}
	im.log = svc.Logger().WithField("component", "importer")
	return im
}

// Import parses data and applies every row in one store transaction.
func (im *Importer) Import(ctx context.Context, data []byte) (*Report, error) {
	if err := access.Require(ctx, access.OpImportCards); err != nil {
		return nil, err
	}
	records, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if im.lock != nil {
		release, err := im.lock.Obtain(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				im.log.WithError(err).Warn("failed to release import lock")
			}
		}()
	}

	report := &Report{RunID: uuid.NewString(), Total: len(records)}
	log := im.log.WithField("run_id", report.RunID)
	started := time.Now()

	err = im.svc.Atomic(ctx, access.OpImportCards, func(tx inventory.Tx) error {
		report.Results = make([]RowResult, 0, len(records))
		for _, rec := range records {
			var res RowResult
			err := tx.Savepoint(ctx, fmt.Sprintf("import_row_%d", rec.Line), func(sp inventory.Tx) error {
				var err error
				res, err = im.applyRow(ctx, sp, rec)
				return err
			})
			if err != nil {
				if !inventory.IsBusiness(err) {
					return fmt.Errorf("import aborted at line %d: %w", rec.Line, err)
				}
				rowErr := &inventory.RowError{Line: rec.Line, Err: err}
				log.WithError(rowErr).Debug("import row rejected")
				res = RowResult{
					Line:         rec.Line,
					Status:       OutcomeError,
					SerialNumber: strings.TrimSpace(rec.SerialNumber),
					Message:      rowErr.Err.Error(),
				}
			}
			report.add(res)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("import failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"total":    report.Total,
		"created":  report.Created,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
		"errors":   report.Errors,
		"duration": time.Since(started).String(),
	}).Info("import finished")
	return report, nil
}

func (im *Importer) applyRow(ctx context.Context, st inventory.Tx, rec Record) (RowResult, error) {
	res := RowResult{Line: rec.Line, SerialNumber: strings.TrimSpace(rec.SerialNumber)}

	status := inventory.StatusInStock
	if raw := strings.TrimSpace(rec.Status); raw != "" {
		status = inventory.Status(strings.ToUpper(raw))
	}
	if status != inventory.StatusInStock {
		res.Status, res.Reason = OutcomeSkipped, ReasonNotInStock
		return res, nil
	}
	if res.SerialNumber == "" {
		return res, inventory.InvalidInputError("serialNumber is required")
	}

	receivedAt := im.svc.Now()
	if strings.TrimSpace(rec.ReceivedDate) != "" {
		t, err := parseReceivedDate(rec.ReceivedDate)
		if err != nil {
			return res, err
		}
		receivedAt = t
	}

	simTypeID, err := resolveSimType(ctx, st, rec)
	if err != nil {
		return res, err
	}
	customerID, err := resolveCustomer(ctx, st, rec)
	if err != nil {
		return res, err
	}

	incoming := inventory.NormalizeIMSI(rec.IMSI)
	card, err := st.GetCardBySerial(ctx, res.SerialNumber)
	if err != nil {
		return res, err
	}

	if card == nil {
		if err := inventory.EnsureIMSIAvailable(ctx, st, incoming, 0); err != nil {
			return res, err
		}
		id, err := st.InsertCard(ctx, inventory.SimCard{
			SerialNumber: res.SerialNumber,
			IMSI:         incoming,
			Status:       inventory.StatusInStock,
			SimTypeID:    simTypeID,
		})
		if err != nil {
			return res, err
		}
		if err := stockIn(ctx, st, id, customerID, receivedAt); err != nil {
			return res, err
		}
		res.Status, res.SimCardID = OutcomeCreated, id
		res.Audit = &IMSIAudit{IncomingIMSI: rec.IMSI, IncomingIMSINormalized: incoming}
		return res, nil
	}

	existing := inventory.NormalizeIMSI(card.IMSI)
	res.SimCardID = card.ID
	res.Audit = &IMSIAudit{
		IncomingIMSI:           rec.IMSI,
		IncomingIMSINormalized: incoming,
		ExistingIMSI:           card.IMSI,
		ExistingIMSINormalized: existing,
		IMSIMatch:              sameIMSI(incoming, existing),
	}
	if res.Audit.IMSIMatch {
		res.Status, res.Reason = OutcomeSkipped, ReasonDuplicate
		return res, nil
	}

	if incoming != nil {
		if err := inventory.EnsureIMSIAvailable(ctx, st, incoming, card.ID); err != nil {
			return res, err
		}
		card.IMSI = incoming
	}
	if simTypeID != nil {
		card.SimTypeID = simTypeID
	}
	if err := st.UpdateCard(ctx, *card); err != nil {
		return res, err
	}
	if err := stockIn(ctx, st, card.ID, customerID, receivedAt); err != nil {
		return res, err
	}
	res.Status = OutcomeUpdated
	return res, nil
}

func stockIn(ctx context.Context, st inventory.Tx, cardID int64, customerID *int64, at time.Time) error {
	if _, err := st.InsertTransaction(ctx, inventory.Transaction{
		SimCardID:  cardID,
		CustomerID: customerID,
		Type:       inventory.TxStockIn,
		CreatedAt:  at,
	}); err != nil {
		return err
	}
	_, err := inventory.Rederive(ctx, st, cardID)
	return err
}

// sameIMSI compares normalized IMSIs; nil (blank) only equals nil.
func sameIMSI(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(*a, *b)
}

func resolveSimType(ctx context.Context, st inventory.Store, rec Record) (*int64, error) {
	if strings.TrimSpace(rec.SimTypeID) != "" {
		id, err := parseID("simTypeId", rec.SimTypeID)
		if err != nil {
			return nil, err
		}
		t, err := st.GetSimType(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, inventory.NotFoundError("SimType")
		}
		return &t.ID, nil
	}
	if strings.TrimSpace(rec.SimTypeName) != "" {
		t, err := inventory.FindOrCreateSimType(ctx, st, rec.SimTypeName, rec.PurchaseProduct)
		if err != nil {
			return nil, err
		}
		return &t.ID, nil
	}
	return nil, nil
}

func resolveCustomer(ctx context.Context, st inventory.Store, rec Record) (*int64, error) {
	if strings.TrimSpace(rec.CustomerID) != "" {
		id, err := parseID("customerId", rec.CustomerID)
		if err != nil {
			return nil, err
		}
		c, err := st.GetCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, inventory.NotFoundError("Customer")
		}
		return &c.ID, nil
	}
	if strings.TrimSpace(rec.CustomerName) != "" {
		c, err := inventory.FindOrCreateCustomer(ctx, st, rec.CustomerName)
		if err != nil {
			return nil, err
		}
		return &c.ID, nil
	}
	return nil, nil
}
