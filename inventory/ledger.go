/*
ledger.go - Stock movement events for SIM cards

OPERATIONS:
  CreateTransaction: record a movement; folds into the latest event when
                     the card already has one (see below)
  UpdateTransaction: patch card/customer/type; may move the event to
                     another card
  RemoveTransaction: delete an event
  GetTransaction, ListTransactions, ReportByCustomer: reads

FOLD-INTO-LATEST:
  CreateTransaction on a card that already has history overwrites the type
  and customer of its latest (CreatedAt, ID) event instead of appending.
  The event keeps its CreatedAt. This discards history for that call path
  and is kept deliberately to match the existing system's behavior.

STATUS:
  Every mutation ends with Rederive for each card whose ledger changed,
  inside the same store transaction.
*/
package inventory

import (
	"context"

	"github.com/warp/sim-inventory/access"
)

// RecordInput is the payload for CreateTransaction.
type RecordInput struct {
	SimCardID  int64
	CustomerID *int64
	Type       TxType
}

// TransactionPatch lists the fields UpdateTransaction may change. Nil
// fields are left untouched.
type TransactionPatch struct {
	SimCardID  *int64
	CustomerID *int64
	Type       *TxType
}

// CreateTransaction records a movement for a card.
func (s *Service) CreateTransaction(ctx context.Context, in RecordInput) (*TransactionRecord, error) {
	if !in.Type.Valid() {
		return nil, invalidf("invalid transaction type %q", in.Type)
	}

	var out *TransactionRecord
	err := s.Atomic(ctx, access.OpCreateTransaction, func(st Tx) error {
		card, err := st.GetCard(ctx, in.SimCardID)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("SimCard")
		}
		if err := requireCustomer(ctx, st, in.CustomerID); err != nil {
			return err
		}

		history, err := st.TransactionsByCard(ctx, card.ID)
		if err != nil {
			return err
		}

		var id int64
		if latest, ok := Latest(history); ok {
			latest.Type = in.Type
			latest.CustomerID = in.CustomerID
			if err := st.UpdateTransaction(ctx, latest); err != nil {
				return err
			}
			id = latest.ID
		} else {
			id, err = st.InsertTransaction(ctx, Transaction{
				SimCardID:  card.ID,
				CustomerID: in.CustomerID,
				Type:       in.Type,
				CreatedAt:  s.Now(),
			})
			if err != nil {
				return err
			}
		}

		if _, err := Rederive(ctx, st, card.ID); err != nil {
			return err
		}
		out, err = st.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTransaction patches an event. When the event moves to another card
// both cards are re-derived from their remaining histories.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (*TransactionRecord, error) {
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, invalidf("invalid transaction type %q", *patch.Type)
	}

	var out *TransactionRecord
	err := s.Atomic(ctx, access.OpUpdateTransaction, func(st Tx) error {
		rec, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return notFound("Transaction")
		}
		tx := rec.Transaction
		previousCard := tx.SimCardID

		if patch.SimCardID != nil && *patch.SimCardID != tx.SimCardID {
			card, err := st.GetCard(ctx, *patch.SimCardID)
			if err != nil {
				return err
			}
			if card == nil {
				return notFound("SimCard")
			}
			tx.SimCardID = card.ID
		}
		if patch.CustomerID != nil {
			if err := requireCustomer(ctx, st, patch.CustomerID); err != nil {
				return err
			}
			tx.CustomerID = patch.CustomerID
		}
		if patch.Type != nil {
			tx.Type = *patch.Type
		}

		if err := st.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		if _, err := Rederive(ctx, st, tx.SimCardID); err != nil {
			return err
		}
		if previousCard != tx.SimCardID {
			if _, err := Rederive(ctx, st, previousCard); err != nil {
				return err
			}
		}

		out, err = st.GetTransaction(ctx, tx.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveTransaction deletes an event and re-derives its card, which falls
// back to IN_STOCK when no history remains.
func (s *Service) RemoveTransaction(ctx context.Context, id int64) error {
	return s.Atomic(ctx, access.OpRemoveTransaction, func(st Tx) error {
		rec, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return notFound("Transaction")
		}
		if err := st.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		_, err = Rederive(ctx, st, rec.SimCardID)
		return err
	})
}

// GetTransaction returns one event with its card serial and customer name.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*TransactionRecord, error) {
	if err := access.Require(ctx, access.OpGetTransaction); err != nil {
		return nil, err
	}
	rec, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("Transaction")
	}
	return rec, nil
}

// ListTransactions returns a page ordered by (CreatedAt, ID) ascending.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) (Page[TransactionRecord], error) {
	if err := access.Require(ctx, access.OpListTransactions); err != nil {
		return Page[TransactionRecord]{}, err
	}
	if f.Type != "" && !f.Type.Valid() {
		return Page[TransactionRecord]{}, invalidf("invalid transaction type %q", f.Type)
	}
	if f.CardStatus != "" && !f.CardStatus.Valid() {
		return Page[TransactionRecord]{}, invalidf("invalid sim status %q", f.CardStatus)
	}

	page, limit := clampPaging(f.Page, f.Limit, DefaultTransactionLimit, MaxTransactionLimit)
	f.Page, f.Limit = page, limit

	items, total, err := s.store.SearchTransactions(ctx, f, offsetOf(page, limit), limit)
	if err != nil {
		return Page[TransactionRecord]{}, err
	}
	if items == nil {
		items = []TransactionRecord{}
	}
	return Page[TransactionRecord]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// ReportByCustomer counts STOCK_IN and STOCK_OUT events for a customer.
func (s *Service) ReportByCustomer(ctx context.Context, customerID int64) (CustomerReport, error) {
	if err := access.Require(ctx, access.OpReportByCustomer); err != nil {
		return CustomerReport{}, err
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return CustomerReport{}, err
	}
	if c == nil {
		return CustomerReport{}, notFound("Customer")
	}

	in, err := s.store.CountTransactionsByCustomer(ctx, customerID, TxStockIn)
	if err != nil {
		return CustomerReport{}, err
	}
	out, err := s.store.CountTransactionsByCustomer(ctx, customerID, TxStockOut)
	if err != nil {
		return CustomerReport{}, err
	}
	return CustomerReport{CustomerID: customerID, StockIn: in, StockOut: out}, nil
}

func requireCustomer(ctx context.Context, st Store, id *int64) error {
	if id == nil {
		return nil
	}
	c, err := st.GetCustomer(ctx, *id)
	if err != nil {
		return err
	}
	if c == nil {
		return notFound("Customer")
	}
	return nil
}
