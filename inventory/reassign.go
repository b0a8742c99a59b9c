package inventory

import (
	"context"

	"github.com/warp/sim-inventory/access"
)

// ChangeCustomer reassigns the customer on the card's latest STOCK_OUT.
//
// With no STOCK_OUT and a non-nil customer, a new STOCK_OUT is appended,
// which flips the card to OUT_STOCK. A nil customer on a card without any
// STOCK_OUT is a no-op. Returns the card with its history.
func (s *Service) ChangeCustomer(ctx context.Context, cardID int64, customerID *int64) (*CardView, error) {
	var view *CardView
	err := s.Atomic(ctx, access.OpChangeCustomer, func(st Tx) error {
		card, err := st.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if card == nil {
			return notFound("SimCard")
		}
		if err := requireCustomer(ctx, st, customerID); err != nil {
			return err
		}

		history, err := st.TransactionsByCard(ctx, card.ID)
		if err != nil {
			return err
		}

		if latest, ok := LatestOfType(history, TxStockOut); ok {
			latest.CustomerID = customerID
			if err := st.UpdateTransaction(ctx, latest); err != nil {
				return err
			}
		} else if customerID != nil {
			if _, err := st.InsertTransaction(ctx, Transaction{
				SimCardID:  card.ID,
				CustomerID: customerID,
				Type:       TxStockOut,
				CreatedAt:  s.Now(),
			}); err != nil {
				return err
			}
		}

		if _, err := Rederive(ctx, st, card.ID); err != nil {
			return err
		}
		view, err = loadCardView(ctx, st, card.ID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
