package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/rental"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger    *slog.Logger
	Policy    SettlementPolicy
	Notifiers []Notifier
	Observer  Observer
	Clock     func() time.Time
}

// Service is the only component that creates transactions and moves
// balances. Each event runs as one Store transaction.
type Service struct {
	store     Store
	engine    *stock.Engine
	logger    *slog.Logger
	policy    SettlementPolicy
	notifiers []Notifier
	observer  Observer
	now       func() time.Time
}

// NewService builds Service.
func NewService(store Store, engine *stock.Engine, cfg ServiceConfig) *Service {
	s := &Service{
		store:     store,
		engine:    engine,
		logger:    cfg.Logger,
		policy:    cfg.Policy,
		notifiers: cfg.Notifiers,
		observer:  cfg.Observer,
		now:       cfg.Clock,
	}
	if s.engine == nil {
		s.engine = stock.NewEngine()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.policy == nil {
		s.policy = NoCashSettlement{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Receive books goods into stock. A supplier is credited with the unpaid part
// of the total cost; a paid part leaves the given account as a BUY.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (ReceiveResult, error) {
	if !validAmount(in.PaidAmount) || !validAmount(lineTotal(in.UnitCost, in.Quantity)) {
		return ReceiveResult{}, ErrInvalidAmount
	}
	if in.PaidAmount.IsPositive() {
		if in.AccountID == nil {
			return ReceiveResult{}, ErrAccountRequired
		}
		if in.SupplierID == nil {
			return ReceiveResult{}, ErrSupplierRequired
		}
	}

	var res ReceiveResult
	err := s.run(ctx, EventReceive, in.Meta, func(ctx context.Context, tx Tx) error {
		if in.SupplierID != nil {
			if _, err := tx.GetContact(ctx, in.TenantID, *in.SupplierID); err != nil {
				return err
			}
		}
		if in.AccountID != nil {
			if _, err := tx.GetAccount(ctx, in.TenantID, *in.AccountID); err != nil {
				return err
			}
		}

		receipt, err := s.engine.Receive(ctx, tx, stock.ReceiveInput{
			TenantID:   in.TenantID,
			Spec:       in.Spec,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
			Serial:     in.Serial,
			SupplierID: in.SupplierID,
			Initials:   in.Actor.EffectiveInitials(),
		})
		if err != nil {
			return err
		}
		res.Product, res.Items = receipt.Product, receipt.Items
		if in.SupplierID == nil {
			return nil
		}

		total := lineTotal(in.UnitCost, in.Quantity)
		debt := total.Sub(in.PaidAmount)
		productID := receipt.Product.ID
		if in.PaidAmount.IsPositive() {
			applied, err := ledger.Apply(ctx, tx, ledger.Entry{
				TenantID:     in.TenantID,
				Type:         ledger.TypeBuy,
				Amount:       in.PaidAmount,
				AccountID:    in.AccountID,
				AccountDelta: in.PaidAmount.Neg(),
				ContactID:    in.SupplierID,
				ContactDelta: debt.Neg(),
				ProductID:    &productID,
				OperatorID:   in.Actor.OperatorID(),
				Remark:       "purchase payment: " + productLabel(receipt.Product),
			})
			if err != nil {
				return err
			}
			res.Transaction = &applied.Transaction
			res.Supplier = applied.Contact
			return nil
		}
		if !debt.IsZero() {
			supplier, err := tx.AdjustContactBalance(ctx, in.TenantID, *in.SupplierID, debt.Neg())
			if err != nil {
				return err
			}
			res.Supplier = &supplier
		}
		return nil
	})
	return res, err
}

// ConfirmSerial replaces a PENDING unit's placeholder serial.
func (s *Service) ConfirmSerial(ctx context.Context, in ConfirmSerialInput) (stock.Item, error) {
	var item stock.Item
	err := s.run(ctx, EventConfirmSerial, in.Meta, func(ctx context.Context, tx Tx) error {
		var err error
		item, err = s.engine.ConfirmSerial(ctx, tx, in.TenantID, in.ItemID, in.Serial)
		if err != nil {
			return err
		}
		return tx.Audit(ctx, shared.AuditLog{
			TenantID: in.TenantID,
			ActorID:  in.Actor.StaffID,
			Action:   "item:confirm_serial",
			Entity:   "stock_item",
			EntityID: strconv.FormatInt(item.ID, 10),
			Meta:     map[string]any{"serial": item.Serial},
			At:       s.now(),
		})
	})
	return item, err
}

// Sell sells quantity FIFO units. The contact is charged the gap between the
// price and the amount received.
func (s *Service) Sell(ctx context.Context, in SellInput) (SellResult, error) {
	if in.ContactID == 0 {
		return SellResult{}, ErrContactRequired
	}
	if !validAmount(in.UnitPrice) || !validAmount(in.ReceivedAmount) || !validAmount(lineTotal(in.UnitPrice, in.Quantity)) {
		return SellResult{}, ErrInvalidAmount
	}
	if in.ReceivedAmount.IsPositive() && in.AccountID == nil {
		return SellResult{}, ErrAccountRequired
	}

	var res SellResult
	err := s.run(ctx, EventSell, in.Meta, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetContact(ctx, in.TenantID, in.ContactID); err != nil {
			return err
		}
		if in.AccountID != nil {
			if _, err := tx.GetAccount(ctx, in.TenantID, *in.AccountID); err != nil {
				return err
			}
		}
		items, err := s.engine.AllocateForSale(ctx, tx, in.TenantID, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}
		sold, err := s.engine.MarkSold(ctx, tx, items, in.UnitPrice)
		if err != nil {
			return err
		}

		price := lineTotal(in.UnitPrice, in.Quantity)
		contactID, productID := in.ContactID, in.ProductID
		entry := ledger.Entry{
			TenantID:     in.TenantID,
			Type:         ledger.TypeSale,
			Amount:       in.ReceivedAmount,
			AccountID:    in.AccountID,
			ContactID:    &contactID,
			ContactDelta: price.Sub(in.ReceivedAmount),
			ProductID:    &productID,
			OperatorID:   in.Actor.OperatorID(),
			Remark:       fmt.Sprintf("sale of %d unit(s)", in.Quantity),
		}
		if in.AccountID != nil {
			entry.AccountDelta = in.ReceivedAmount
		}
		applied, err := ledger.Apply(ctx, tx, entry)
		if err != nil {
			return err
		}
		res.Items = sold
		res.Transactions = []ledger.Transaction{applied.Transaction}
		res.Contact = *applied.Contact
		return nil
	})
	return res, err
}

// RentOut rents one unit to a contact and books the deposit.
func (s *Service) RentOut(ctx context.Context, in RentOutInput) (RentOutResult, error) {
	if in.ContactID == 0 {
		return RentOutResult{}, ErrContactRequired
	}
	if in.StartDate.IsZero() {
		in.StartDate = s.now()
	}
	terms := rental.Terms{
		TenantID:            in.TenantID,
		ContactID:           in.ContactID,
		ProductID:           in.ProductID,
		OperatorID:          in.Actor.OperatorID(),
		StartDate:           in.StartDate,
		Duration:            in.Duration,
		Deposit:             in.Deposit,
		RentPrice:           in.RentPrice,
		DepreciationMonthly: in.DepreciationMonthly,
	}
	if _, err := rental.NewContract(terms); err != nil {
		return RentOutResult{}, err
	}

	var res RentOutResult
	err := s.run(ctx, EventRentOut, in.Meta, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetContact(ctx, in.TenantID, in.ContactID); err != nil {
			return err
		}
		var accountID *int64
		switch {
		case in.Deposit.IsPositive():
			acct, err := ledger.ResolveAccount(ctx, tx, in.TenantID, in.AccountID)
			if err != nil {
				return err
			}
			accountID = &acct.ID
		case in.AccountID != nil:
			if _, err := tx.GetAccount(ctx, in.TenantID, *in.AccountID); err != nil {
				return err
			}
			accountID = in.AccountID
		}

		item, err := s.engine.AllocateForRental(ctx, tx, in.TenantID, in.ProductID, in.ItemID)
		if err != nil {
			return err
		}
		if _, err := tx.ActiveContractForItem(ctx, in.TenantID, item.ID); err == nil {
			return rental.ErrItemAlreadyRented
		} else if !errors.Is(err, rental.ErrContractNotFound) {
			return err
		}
		item, err = s.engine.MarkRented(ctx, tx, item)
		if err != nil {
			return err
		}

		terms.ProductID = item.ProductID
		terms.ItemID = item.ID
		contract, err := rental.NewContract(terms)
		if err != nil {
			return err
		}
		contract, err = tx.InsertContract(ctx, contract)
		if err != nil {
			return err
		}

		contactID, productID := in.ContactID, item.ProductID
		entry := ledger.Entry{
			TenantID:   in.TenantID,
			Type:       ledger.TypeRent,
			Amount:     in.Deposit,
			AccountID:  accountID,
			ContactID:  &contactID,
			ProductID:  &productID,
			OperatorID: in.Actor.OperatorID(),
			Remark:     fmt.Sprintf("rental deposit: contract %d item %s", contract.ID, item.Serial),
		}
		if accountID != nil {
			entry.AccountDelta = in.Deposit
		}
		applied, err := ledger.Apply(ctx, tx, entry)
		if err != nil {
			return err
		}
		res = RentOutResult{Contract: contract, Item: item, Transaction: applied.Transaction}
		return nil
	})
	return res, err
}

// Settle closes an active contract and returns its unit to stock at the
// revised valuation. The cash leg comes from the configured SettlementPolicy.
func (s *Service) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	if in.RevisedValue == nil {
		return SettleResult{}, ErrRevisedValueRequired
	}
	if !validAmount(*in.RevisedValue) {
		return SettleResult{}, ErrInvalidAmount
	}

	var res SettleResult
	err := s.run(ctx, EventSettle, in.Meta, func(ctx context.Context, tx Tx) error {
		contract, err := tx.GetContractForUpdate(ctx, in.TenantID, in.ContractID)
		if err != nil {
			return err
		}
		if !contract.IsActive {
			return rental.ErrNotActive
		}
		item, err := s.engine.ReleaseFromRental(ctx, tx, in.TenantID, contract.ItemID, *in.RevisedValue)
		if err != nil {
			return err
		}
		if err := contract.Close(s.now(), *in.RevisedValue); err != nil {
			return err
		}
		if err := tx.CloseContract(ctx, contract); err != nil {
			return err
		}

		contactID, productID := contract.ContactID, contract.ProductID
		entries := []ledger.Entry{{
			TenantID:   in.TenantID,
			Type:       ledger.TypeOther,
			Amount:     decimal.Zero,
			ContactID:  &contactID,
			ProductID:  &productID,
			OperatorID: in.Actor.OperatorID(),
			Remark:     fmt.Sprintf("rental returned: contract %d revalued at %s", contract.ID, in.RevisedValue.StringFixed(2)),
		}}
		legs, err := s.policy.Legs(ctx, tx, contract, in.AccountID)
		if err != nil {
			return err
		}
		for _, leg := range legs {
			leg.OperatorID = in.Actor.OperatorID()
			entries = append(entries, leg)
		}

		res = SettleResult{Contract: contract, Item: item}
		for _, entry := range entries {
			applied, err := ledger.Apply(ctx, tx, entry)
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, applied.Transaction)
		}
		return nil
	})
	return res, err
}

// Repay settles part of a contact balance in cash. Paying a supplier is a BUY
// (account down, contact up); collecting from a customer is OTHER (account up,
// contact down).
func (s *Service) Repay(ctx context.Context, in RepayInput) (ledger.Transaction, error) {
	if in.ContactID == 0 {
		return ledger.Transaction{}, ErrContactRequired
	}
	if !in.Amount.IsPositive() {
		return ledger.Transaction{}, ErrNonPositiveAmount
	}
	if !validAmount(in.Amount) {
		return ledger.Transaction{}, ErrInvalidAmount
	}
	if !in.Direction.Valid() {
		return ledger.Transaction{}, ErrInvalidDirection
	}

	var txn ledger.Transaction
	err := s.run(ctx, EventRepay, in.Meta, func(ctx context.Context, tx Tx) error {
		acct, err := ledger.ResolveAccount(ctx, tx, in.TenantID, in.AccountID)
		if err != nil {
			return err
		}
		contactID := in.ContactID
		entry := ledger.Entry{
			TenantID:   in.TenantID,
			Amount:     in.Amount,
			AccountID:  &acct.ID,
			ContactID:  &contactID,
			OperatorID: in.Actor.OperatorID(),
		}
		if in.Direction == DirectionPay {
			entry.Type = ledger.TypeBuy
			entry.AccountDelta = in.Amount.Neg()
			entry.ContactDelta = in.Amount
			entry.Remark = "payment to supplier"
		} else {
			entry.Type = ledger.TypeOther
			entry.AccountDelta = in.Amount
			entry.ContactDelta = in.Amount.Neg()
			entry.Remark = "collection from customer"
		}
		applied, err := ledger.Apply(ctx, tx, entry)
		if err != nil {
			return err
		}
		txn = applied.Transaction
		return nil
	})
	return txn, err
}

// WriteOff marks a unit BAD. A rented unit's active contract is closed with
// a zero return value.
func (s *Service) WriteOff(ctx context.Context, in WriteOffInput) (WriteOffResult, error) {
	var res WriteOffResult
	err := s.run(ctx, EventWriteOff, in.Meta, func(ctx context.Context, tx Tx) error {
		contract, err := tx.ActiveContractForItem(ctx, in.TenantID, in.ItemID)
		switch {
		case err == nil:
			if err := contract.Close(s.now(), decimal.Zero); err != nil {
				return err
			}
			if err := tx.CloseContract(ctx, contract); err != nil {
				return err
			}
			res.Contract = &contract
		case !errors.Is(err, rental.ErrContractNotFound):
			return err
		}

		item, err := s.engine.WriteOff(ctx, tx, in.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		productID := item.ProductID
		remark := "write-off: " + item.Serial
		if in.Reason != "" {
			remark += " (" + in.Reason + ")"
		}
		applied, err := ledger.Apply(ctx, tx, ledger.Entry{
			TenantID:   in.TenantID,
			Type:       ledger.TypeOther,
			Amount:     decimal.Zero,
			ProductID:  &productID,
			OperatorID: in.Actor.OperatorID(),
			Remark:     remark,
		})
		if err != nil {
			return err
		}
		res.Item = item
		res.Transaction = applied.Transaction
		return nil
	})
	return res, err
}

// run authorizes the actor, opens the transaction, rejects inactive tenants,
// claims the idempotency key, and classifies any failure. Notifiers run only
// after commit.
func (s *Service) run(ctx context.Context, event Event, meta Meta, fn func(context.Context, Tx) error) error {
	start := time.Now()
	err := s.execute(ctx, event, meta, fn)
	if s.observer != nil {
		s.observer.ObservePosting(string(event), err, time.Since(start))
	}
	if err != nil {
		s.logger.Warn("posting rejected",
			slog.String("event", string(event)),
			slog.Int64("tenant_id", meta.TenantID),
			slog.Int64("staff_id", meta.Actor.StaffID),
			slog.Any("error", err))
		return err
	}
	for _, n := range s.notifiers {
		if nerr := n.Posted(ctx, meta.TenantID, event); nerr != nil {
			s.logger.Error("posting notifier failed",
				slog.String("event", string(event)),
				slog.Int64("tenant_id", meta.TenantID),
				slog.Any("error", nerr))
		}
	}
	return nil
}

func (s *Service) execute(ctx context.Context, event Event, meta Meta, fn func(context.Context, Tx) error) error {
	if err := meta.Actor.Authorize(meta.TenantID); err != nil {
		return err
	}
	key, err := shared.NormalizeIdempotencyKey(meta.IdempotencyKey)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		tenant, err := tx.Tenant(ctx, meta.TenantID)
		if err != nil {
			return err
		}
		if !tenant.IsActive {
			return tenancy.ErrTenantInactive
		}
		if key != "" {
			if err := tx.ClaimIdempotencyKey(ctx, meta.TenantID, key, string(event)); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
	return shared.Classify(err)
}

func validAmount(d decimal.Decimal) bool {
	return ledger.ValidAmount(d)
}

// lineTotal is unit × quantity. A non-positive quantity yields zero and is
// rejected later by the stock engine.
func lineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

func productLabel(p stock.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Zencode
}
