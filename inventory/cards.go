/*
cards.go - SIM card lifecycle and read views

LIFECYCLE:
  CreateCard  -> card row + initial STOCK_IN, status derived (IN_STOCK)
  UpdateCard  -> serial / IMSI / type only; status is never writable here
  RemoveCard  -> explicitly deletes the card's ledger, then the card

READ VIEWS:
  CardView.CustomerName is populated only for OUT_STOCK cards, from the
  latest STOCK_OUT carrying a customer (same (CreatedAt, ID) ordering as
  status derivation). It is computed from an explicit joined query over
  the cards' STOCK_OUT rows.

IMSI:
  Blank IMSIs are stored as NULL. A non-NULL IMSI may belong to one card
  only; attempts to reuse one are InvalidInput.
*/
package inventory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/sim-inventory/access"
)

// CardInput is the payload for CreateCard.
type CardInput struct {
	SerialNumber string
	IMSI         *string
	SimTypeID    *int64
}

// CardPatch lists the fields UpdateCard may change. A non-nil IMSI holding
// only whitespace clears the IMSI.
type CardPatch struct {
	SerialNumber *string
	IMSI         *string
	SimTypeID    *int64
}

// Summary is the stock overview for all cards.
type Summary struct {
	Total         int
	InStock       int
	OutStock      int
	OutStockRatio decimal.Decimal // percent of cards issued, 2dp
	ByType        []TypeCount
}

// NormalizeIMSI trims an IMSI and maps blank values to nil.
func NormalizeIMSI(raw *string) *string {
	return trimmedOrNil(raw)
}

func trimmedOrNil(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil
	}
	return &v
}

// EnsureIMSIAvailable fails when imsi is held by a card other than ownerID.
// Pass ownerID 0 for a card that does not exist yet.
func EnsureIMSIAvailable(ctx context.Context, st Store, imsi *string, ownerID int64) error {
	if imsi == nil {
		return nil
	}
	holder, err := st.GetCardByIMSI(ctx, *imsi)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != ownerID {
		return invalidf("IMSI already assigned to another sim")
	}
	return nil
}

func requireSimType(ctx context.Context, st Store, id *int64) error {
	if id == nil {
		return nil
	}
	t, err := st.GetSimType(ctx, *id)
	if err != nil {
		return err
	}
	if t == nil {
		return notFound("SimType")
	}
	return nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateCard registers a card and records its initial STOCK_IN.
func (s *Service) CreateCard(ctx context.Context, in CardInput) (*CardView, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	if serial == "" {
		return nil, invalidf("serialNumber is required")
	}
	imsi := NormalizeIMSI(in.IMSI)

	var view *CardView
	err := s.Atomic(ctx, access.OpCreateCard, func(st Tx) error {
		if err := requireSimType(ctx, st, in.SimTypeID); err != nil {
			return err
		}
		existing, err := st.GetCardBySerial(ctx, serial)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictf("SimCard", "sim card with serial number %q already exists", serial)
		}
		if err := EnsureIMSIAvailable(ctx, st, imsi, 0); err != nil {
			return err
		}

		id, err := st.InsertCard(ctx, SimCard{
			SerialNumber: serial,
			IMSI:         imsi,
			Status:       StatusInStock,
			SimTypeID:    in.SimTypeID,
		})
		if err != nil {
			return err
		}
		if _, err := st.InsertTransaction(ctx, Transaction{
			SimCardID: id,
			Type:      TxStockIn,
			CreatedAt: s.Now(),
		}); err != nil {
			return err
		}
		if _, err := Rederive(ctx, st, id); err != nil {
			return err
		}
		view, err = loadCardView(ctx, st, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateCard changes a card's identity fields or type.
func (s *Service) UpdateCard(ctx context.Context, id int64, patch CardPatch) (*CardView, error) {
	var view *CardView
	err := s.Atomic(ctx, access.OpUpdateCard, func(st Tx) error {
		card, err := st.GetCard(ctx, id)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("SimCard")
		}

		if patch.SerialNumber != nil {
			serial := strings.TrimSpace(*patch.SerialNumber)
			if serial == "" {
				return invalidf("serialNumber is required")
			}
			if serial != card.SerialNumber {
				other, err := st.GetCardBySerial(ctx, serial)
				if err != nil {
					return err
				}
				if other != nil {
					return conflictf("SimCard", "sim card with serial number %q already exists", serial)
				}
			}
			card.SerialNumber = serial
		}
		if patch.IMSI != nil {
			imsi := NormalizeIMSI(patch.IMSI)
			if err := EnsureIMSIAvailable(ctx, st, imsi, card.ID); err != nil {
				return err
			}
			card.IMSI = imsi
		}
		if patch.SimTypeID != nil {
			if err := requireSimType(ctx, st, patch.SimTypeID); err != nil {
				return err
			}
			card.SimTypeID = patch.SimTypeID
		}

		if err := st.UpdateCard(ctx, *card); err != nil {
			return err
		}
		view, err = loadCardView(ctx, st, card.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveCard deletes a card together with its ledger and returns how many
// transactions were removed.
func (s *Service) RemoveCard(ctx context.Context, id int64) (int, error) {
	var removed int
	err := s.Atomic(ctx, access.OpRemoveCard, func(st Tx) error {
		card, err := st.GetCard(ctx, id)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("SimCard")
		}
		removed, err = st.DeleteTransactionsByCard(ctx, id)
		if err != nil {
			return err
		}
		return st.DeleteCard(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// =============================================================================
// READS
// =============================================================================

// GetCard returns a card with its type, customer name, and full history.
func (s *Service) GetCard(ctx context.Context, id int64) (*CardView, error) {
	if err := access.Require(ctx, access.OpGetCard); err != nil {
		return nil, err
	}
	return loadCardView(ctx, s.store, id, true)
}

// ListCards returns every card ordered by id.
func (s *Service) ListCards(ctx context.Context) ([]CardView, error) {
	if err := access.Require(ctx, access.OpListCards); err != nil {
		return nil, err
	}
	views, err := s.store.ListCardViews(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := attachCustomerNames(ctx, s.store, views); err != nil {
		return nil, err
	}
	if views == nil {
		views = []CardView{}
	}
	return views, nil
}

// PaginateCards returns a page of cards ordered by id.
func (s *Service) PaginateCards(ctx context.Context, page, limit int) (Page[CardView], error) {
	if err := access.Require(ctx, access.OpPaginateCards); err != nil {
		return Page[CardView]{}, err
	}
	page, limit = clampPaging(page, limit, DefaultCardLimit, MaxCardLimit)

	total, err := s.store.CountCards(ctx, "")
	if err != nil {
		return Page[CardView]{}, err
	}
	views, err := s.store.ListCardViews(ctx, offsetOf(page, limit), limit)
	if err != nil {
		return Page[CardView]{}, err
	}
	if err := attachCustomerNames(ctx, s.store, views); err != nil {
		return Page[CardView]{}, err
	}
	if views == nil {
		views = []CardView{}
	}
	return Page[CardView]{Items: views, Total: total, Page: page, Limit: limit}, nil
}

// CardSummary counts cards by status and type.
func (s *Service) CardSummary(ctx context.Context) (Summary, error) {
	if err := access.Require(ctx, access.OpCardSummary); err != nil {
		return Summary{}, err
	}
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("summary cache read failed")
		case ok:
			return *cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	sum, err := computeSummary(ctx, s.store)
	if err != nil {
		return Summary{}, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, gen, sum); err != nil {
			s.log.WithError(err).Warn("summary cache write failed")
		}
	}
	return sum, nil
}

func computeSummary(ctx context.Context, st Store) (Summary, error) {
	total, err := st.CountCards(ctx, "")
	if err != nil {
		return Summary{}, err
	}
	in, err := st.CountCards(ctx, StatusInStock)
	if err != nil {
		return Summary{}, err
	}
	out, err := st.CountCards(ctx, StatusOutStock)
	if err != nil {
		return Summary{}, err
	}
	byType, err := st.CountCardsByType(ctx)
	if err != nil {
		return Summary{}, err
	}
	if byType == nil {
		byType = []TypeCount{}
	}
	return Summary{
		Total:         total,
		InStock:       in,
		OutStock:      out,
		OutStockRatio: percent(out, total),
		ByType:        byType,
	}, nil
}

func percent(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 2)
}

func loadCardView(ctx context.Context, st Store, id int64, withHistory bool) (*CardView, error) {
	view, err := st.GetCardView(ctx, id)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, notFound("SimCard")
	}

	history, err := st.HistoryByCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.Status == StatusOutStock {
		view.CustomerName = LatestStockOutCustomer(history)
	}
	if withHistory {
		if history == nil {
			history = []TransactionRecord{}
		}
		view.Transactions = history
	}
	return view, nil
}

func attachCustomerNames(ctx context.Context, st Store, views []CardView) error {
	var ids []int64
	for _, v := range views {
		if v.Status == StatusOutStock {
			ids = append(ids, v.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	records, err := st.StockOutsByCards(ctx, ids)
	if err != nil {
		return err
	}
	byCard := make(map[int64][]TransactionRecord, len(ids))
	for _, r := range records {
		byCard[r.SimCardID] = append(byCard[r.SimCardID], r)
	}
	for i := range views {
		if views[i].Status == StatusOutStock {
			views[i].CustomerName = LatestStockOutCustomer(byCard[views[i].ID])
		}
	}
	return nil
}
