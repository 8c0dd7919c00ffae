package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/sales-orchestrator/internal/core/domain"
	"github.com/rl1809/sales-orchestrator/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/sales-orchestrator/internal/core/service")

type purchaseState string

const (
	stateInit          purchaseState = "INIT"
	stateStockReserved purchaseState = "STOCK_RESERVED"
	stateFundsReserved purchaseState = "FUNDS_RESERVED"
	stateCommitted     purchaseState = "COMMITTED"
	stateCompensating  purchaseState = "COMPENSATING"
	stateFailed        purchaseState = "FAILED"
)

type Config struct {
	// RequestLockTTL bounds how long one attempt may hold its request ID.
	RequestLockTTL time.Duration
	// CompensationTimeout bounds the release calls made after a failure.
	// They run detached from the caller's context.
	CompensationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestLockTTL:      30 * time.Second,
		CompensationTimeout: 10 * time.Second,
	}
}

type Dependencies struct {
	Catalog   port.ProductCatalog
	Customers port.CustomerDirectory
	Stock     port.ProductLedger
	Wallets   port.WalletLedger
	Journal   port.SalesJournal
	Locks     port.RequestLock
	Events    port.SaleEventPublisher // optional
	Metrics   port.PurchaseMetrics    // optional
}

// PurchaseService runs the purchase saga: reserve stock, reserve funds,
// append to the journal, and release whatever was held if a later step fails.
type PurchaseService struct {
	catalog   port.ProductCatalog
	customers port.CustomerDirectory
	stock     port.ProductLedger
	wallets   port.WalletLedger
	journal   port.SalesJournal
	locks     port.RequestLock
	events    port.SaleEventPublisher
	metrics   port.PurchaseMetrics
	logger    *zap.Logger
	cfg       Config

	now   func() time.Time
	newID func() string
}

func NewPurchaseService(deps Dependencies, cfg Config, logger *zap.Logger) *PurchaseService {
	defaults := DefaultConfig()
	if cfg.RequestLockTTL <= 0 {
		cfg.RequestLockTTL = defaults.RequestLockTTL
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = defaults.CompensationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PurchaseService{
		catalog:   deps.Catalog,
		customers: deps.Customers,
		stock:     deps.Stock,
		wallets:   deps.Wallets,
		journal:   deps.Journal,
		locks:     deps.Locks,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    logger.Named("purchase"),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	return s
}

func (s *PurchaseService) Purchase(ctx context.Context, req domain.PurchaseRequest) (receipt domain.Receipt, err error) {
	start := time.Now()
	replayed := false

	ctx, span := tracer.Start(ctx, "PurchaseService.Purchase")
	defer func() {
		outcome := outcomeOf(err)
		if replayed {
			outcome = "replayed"
		}
		s.metrics.ObservePurchase(outcome, time.Since(start))
		span.SetAttributes(attribute.String("purchase.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := validate(req); err != nil {
		return domain.Receipt{}, err
	}
	if req.RequestID == "" {
		req.RequestID = s.newID()
	}

	span.SetAttributes(
		attribute.String("purchase.request_id", req.RequestID),
		attribute.String("purchase.customer_id", req.CustomerID),
		attribute.String("purchase.product_id", req.ProductID),
		attribute.Int("purchase.quantity", req.Quantity),
	)
	log := s.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("customer_id", req.CustomerID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
	)

	ok, err := s.locks.Acquire(ctx, req.RequestID, s.cfg.RequestLockTTL)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("acquire request lock: %w", err)
	}
	if !ok {
		return domain.Receipt{}, domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrRequestInProgress, nil)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), req.RequestID); err != nil {
			log.Warn("failed to release request lock", zap.Error(err))
		}
	}()

	existing, err := s.journal.GetByRequestID(ctx, req.RequestID)
	switch {
	case err == nil:
		if !sameTerms(existing, req) {
			return domain.Receipt{}, domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrInvalidRequest,
				fmt.Errorf("request %s was already used for a different purchase", req.RequestID))
		}
		replayed = true
		log.Info("purchase already committed, returning original receipt",
			zap.String("transaction_id", existing.TransactionID))
		return s.receiptFor(ctx, existing), nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Receipt{}, fmt.Errorf("look up request %s: %w", req.RequestID, err)
	}

	customer, err := s.customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.Receipt{}, lookupFailure(domain.ResourceNameCustomer, err)
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Receipt{}, lookupFailure(domain.ResourceNameProduct, err)
	}

	// The price is fixed here for the whole attempt.
	unitPrice := product.Price
	total := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	state := stateInit
	var held []domain.Reservation
	transition := func(next purchaseState) {
		log.Debug("purchase state change", zap.String("from", string(state)), zap.String("to", string(next)))
		span.AddEvent(string(next))
		state = next
	}

	stockHold, stockLeft, err := s.stock.ReserveStock(ctx, req.RequestID, product.ID, req.Quantity)
	if err != nil {
		failure := reserveFailure(domain.ResourceNameStock, err)
		if !isRejection(err) {
			// The outcome is unknown; releasing is a no-op if nothing was held.
			transition(stateCompensating)
			held = append(held, domain.StockReservation(req.RequestID, product.ID, req.Quantity))
			failure = s.compensate(ctx, log, held, failure)
		}
		transition(stateFailed)
		log.Info("stock reservation failed", zap.Error(err))
		return domain.Receipt{}, failure
	}
	held = append(held, stockHold)
	if stockHold.OwnerID != product.ID || stockHold.Quantity != req.Quantity {
		// Left by an earlier attempt of this request that never reached the journal.
		transition(stateCompensating)
		failure := s.compensate(ctx, log, held, staleHold(domain.ResourceNameStock, req.RequestID))
		transition(stateFailed)
		return domain.Receipt{}, failure
	}
	transition(stateStockReserved)

	fundsHold, balance, err := s.wallets.ReserveFunds(ctx, req.RequestID, customer.ID, total)
	if err != nil {
		transition(stateCompensating)
		if !isRejection(err) {
			held = append(held, domain.FundsReservation(req.RequestID, customer.ID, total))
		}
		failure := s.compensate(ctx, log, held, reserveFailure(domain.ResourceNameFunds, err))
		transition(stateFailed)
		log.Info("funds reservation failed", zap.Error(err))
		return domain.Receipt{}, failure
	}
	held = append(held, fundsHold)
	if fundsHold.OwnerID != customer.ID || !fundsHold.Amount.Equal(total) {
		transition(stateCompensating)
		failure := s.compensate(ctx, log, held, staleHold(domain.ResourceNameFunds, req.RequestID))
		transition(stateFailed)
		return domain.Receipt{}, failure
	}
	transition(stateFundsReserved)

	record := domain.SaleRecord{
		TransactionID: s.newID(),
		RequestID:     req.RequestID,
		CustomerID:    customer.ID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		Quantity:      req.Quantity,
		UnitPrice:     unitPrice,
		Total:         total,
		BalanceAfter:  balance,
		Status:        domain.SaleStatusCommitted,
		CreatedAt:     s.now(),
	}

	stored, err := s.journal.Append(ctx, record)
	if err != nil {
		// The insert may have landed even though the call failed.
		existing, lookupErr := s.confirmAppend(ctx, req.RequestID)
		switch {
		case lookupErr == nil:
			log.Warn("journal append reported an error but the sale is stored", zap.Error(err))
			stored = existing
		case errors.Is(lookupErr, domain.ErrNotFound):
			transition(stateCompensating)
			failure := s.compensate(ctx, log, held,
				domain.NewPurchaseError(domain.ResourceNameJournal, domain.ErrJournalWrite, err))
			transition(stateFailed)
			log.Error("journal append failed", zap.Error(err))
			return domain.Receipt{}, failure
		default:
			// Holds stay in place: a retry with the same request ID either
			// finds the record or reuses them.
			transition(stateFailed)
			log.Error("journal outcome unknown, reservations kept for retry or reconciliation",
				zap.Error(err), zap.NamedError("lookup_error", lookupErr))
			return domain.Receipt{}, domain.NewPurchaseError(domain.ResourceNameJournal, domain.ErrJournalWrite,
				errors.Join(err, lookupErr))
		}
	}
	transition(stateCommitted)

	log.Info("purchase committed",
		zap.String("transaction_id", stored.TransactionID),
		zap.String("total", stored.Total.String()),
		zap.String("balance_after", stored.BalanceAfter.String()))

	s.publish(ctx, domain.SaleEventCommitted, stored)

	product.StockCount = stockLeft
	return domain.Receipt{
		TransactionID:    stored.TransactionID,
		RequestID:        stored.RequestID,
		Product:          product,
		Quantity:         stored.Quantity,
		Total:            stored.Total,
		NewWalletBalance: stored.BalanceAfter,
		CreatedAt:        stored.CreatedAt,
	}, nil
}

// Reverse undoes a committed sale: the stock and funds held for its request
// are given back and the record becomes REVERSED. Reversing twice is a no-op.
func (s *PurchaseService) Reverse(ctx context.Context, transactionID string) (domain.SaleRecord, error) {
	ctx, span := tracer.Start(ctx, "PurchaseService.Reverse")
	defer span.End()
	span.SetAttributes(attribute.String("sale.transaction_id", transactionID))

	record, err := s.journal.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SaleRecord{}, domain.NewPurchaseError(domain.ResourceNameJournal, domain.ErrNotFound, err)
		}
		return domain.SaleRecord{}, fmt.Errorf("get sale %s: %w", transactionID, err)
	}
	if record.Status == domain.SaleStatusReversed {
		return record, nil
	}

	log := s.logger.With(
		zap.String("transaction_id", record.TransactionID),
		zap.String("request_id", record.RequestID))

	ok, err := s.locks.Acquire(ctx, record.RequestID, s.cfg.RequestLockTTL)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("acquire request lock: %w", err)
	}
	if !ok {
		return domain.SaleRecord{}, domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrRequestInProgress, nil)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), record.RequestID); err != nil {
			log.Warn("failed to release request lock", zap.Error(err))
		}
	}()

	// Funds first: if the wallet hold is gone nothing has been given back yet.
	held := []domain.Reservation{
		domain.FundsReservation(record.RequestID, record.CustomerID, record.Total),
		domain.StockReservation(record.RequestID, record.ProductID, record.Quantity),
	}
	if err := s.releaseCommitted(ctx, log, held); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SaleRecord{}, err
	}

	reversed, err := s.journal.MarkReversed(ctx, record.TransactionID)
	if err != nil {
		return domain.SaleRecord{}, domain.NewPurchaseError(domain.ResourceNameJournal, domain.ErrJournalWrite, err)
	}
	log.Info("sale reversed")

	s.publish(ctx, domain.SaleEventReversed, reversed)
	return reversed, nil
}

type releaseFailure struct {
	resource    domain.Resource
	reservation domain.Reservation
	err         error
}

// compensate releases held reservations newest first and returns the error
// the caller should see.
func (s *PurchaseService) compensate(ctx context.Context, log *zap.Logger, held []domain.Reservation, failure error) error {
	failures := s.releaseAll(ctx, log, held)
	if len(failures) == 0 {
		return failure
	}
	errs := append([]error{failure}, joinReleaseErrors(failures))
	return domain.NewPurchaseError(failures[0].resource, domain.ErrReservationRelease, errors.Join(errs...))
}

func (s *PurchaseService) releaseAll(ctx context.Context, log *zap.Logger, held []domain.Reservation) []releaseFailure {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "PurchaseService.releaseAll",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("compensation.reservations", len(held))))
	defer span.End()

	var failures []releaseFailure
	for i := len(held) - 1; i >= 0; i-- {
		r := held[i]

		resource, err := s.release(ctx, r)
		if errors.Is(err, domain.ErrReservationNotHeld) {
			// The reserve call failed before anything was held.
			err = nil
		}
		s.metrics.ObserveCompensation(string(resource), err == nil)

		fields := reservationFields(r)
		if err != nil {
			// Stock or balance stays reduced until reconciled.
			log.Error("reservation release failed, reconciliation required", append(fields, zap.Error(err))...)
			span.RecordError(err)
			span.SetStatus(codes.Error, "release failed")
			failures = append(failures, releaseFailure{resource: resource, reservation: r, err: err})
			continue
		}
		log.Info("reservation released", fields...)
	}
	return failures
}

// releaseCommitted gives back the holds of a committed sale in order and
// stops at the first failure. A hold that no longer exists is a failure.
func (s *PurchaseService) releaseCommitted(ctx context.Context, log *zap.Logger, held []domain.Reservation) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()

	for i, r := range held {
		resource, err := s.release(ctx, r)
		s.metrics.ObserveCompensation(string(resource), err == nil)
		if err == nil {
			log.Info("reservation released", reservationFields(r)...)
			continue
		}

		fields := append(reservationFields(r), zap.Error(err))
		if errors.Is(err, domain.ErrReservationNotHeld) && i == 0 {
			log.Warn("sale has no ledger hold left, not reversing", fields...)
			return domain.NewPurchaseError(resource, domain.ErrReservationNotHeld, err)
		}
		log.Error("reservation release failed, reconciliation required", fields...)
		return domain.NewPurchaseError(resource, domain.ErrReservationRelease,
			fmt.Errorf("release %s of %s: %w", r.Kind, r.OwnerID, err))
	}
	return nil
}

func (s *PurchaseService) release(ctx context.Context, r domain.Reservation) (domain.Resource, error) {
	switch r.Kind {
	case domain.ResourceStock:
		return domain.ResourceNameStock, s.stock.ReleaseStock(ctx, r)
	case domain.ResourceFunds:
		return domain.ResourceNameFunds, s.wallets.ReleaseFunds(ctx, r)
	default:
		return domain.ResourceNameStock, fmt.Errorf("unknown reservation kind %q", r.Kind)
	}
}

// confirmAppend looks for the record of requestID after a failed append.
func (s *PurchaseService) confirmAppend(ctx context.Context, requestID string) (domain.SaleRecord, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()
	return s.journal.GetByRequestID(ctx, requestID)
}

func reservationFields(r domain.Reservation) []zap.Field {
	return []zap.Field{
		zap.String("kind", string(r.Kind)),
		zap.String("owner_id", r.OwnerID),
		zap.Int("quantity", r.Quantity),
		zap.String("amount", r.Amount.String()),
	}
}

func sameTerms(record domain.SaleRecord, req domain.PurchaseRequest) bool {
	return record.CustomerID == req.CustomerID &&
		record.ProductID == req.ProductID &&
		record.Quantity == req.Quantity
}

func staleHold(resource domain.Resource, requestID string) error {
	return domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrInvalidRequest,
		fmt.Errorf("%s held for request %s under different terms", resource, requestID))
}

func joinReleaseErrors(failures []releaseFailure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("release %s of %s: %w", f.reservation.Kind, f.reservation.OwnerID, f.err))
	}
	return errors.Join(errs...)
}

func (s *PurchaseService) publish(ctx context.Context, eventType domain.SaleEventType, record domain.SaleRecord) {
	err := s.events.Publish(context.WithoutCancel(ctx), domain.SaleEvent{
		Type:       eventType,
		Record:     record,
		OccurredAt: s.now(),
	})
	s.metrics.ObserveEventPublish(err == nil)
	if err != nil {
		s.logger.Warn("failed to publish sale event",
			zap.String("event_type", string(eventType)),
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err))
	}
}

// receiptFor rebuilds the receipt of an already committed sale.
func (s *PurchaseService) receiptFor(ctx context.Context, record domain.SaleRecord) domain.Receipt {
	product, err := s.catalog.GetProduct(ctx, record.ProductID)
	if err != nil {
		// The product may have been removed since; the record still stands.
		product = domain.Product{ID: record.ProductID, Name: record.ProductName}
	}
	product.Price = record.UnitPrice

	return domain.Receipt{
		TransactionID:    record.TransactionID,
		RequestID:        record.RequestID,
		Product:          product,
		Quantity:         record.Quantity,
		Total:            record.Total,
		NewWalletBalance: record.BalanceAfter,
		CreatedAt:        record.CreatedAt,
	}
}

func validate(req domain.PurchaseRequest) error {
	var problems []string
	if req.CustomerID == "" {
		problems = append(problems, "username is required")
	}
	if req.ProductID == "" {
		problems = append(problems, "product_id is required")
	}
	if req.Quantity <= 0 {
		problems = append(problems, "quantity must be positive")
	}
	if len(problems) == 0 {
		return nil
	}
	return domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrInvalidRequest, errors.New(strings.Join(problems, "; ")))
}

func lookupFailure(resource domain.Resource, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewPurchaseError(resource, domain.ErrNotFound, err)
	}
	return fmt.Errorf("look up %s: %w", resource, err)
}

func reserveFailure(resource domain.Resource, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		owner := domain.ResourceNameProduct
		if resource == domain.ResourceNameFunds {
			owner = domain.ResourceNameCustomer
		}
		return domain.NewPurchaseError(owner, domain.ErrNotFound, err)
	case errors.Is(err, domain.ErrInsufficientStock):
		return domain.NewPurchaseError(resource, domain.ErrInsufficientStock, err)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return domain.NewPurchaseError(resource, domain.ErrInsufficientFunds, err)
	case errors.Is(err, domain.ErrInvalidRequest):
		return domain.NewPurchaseError(domain.ResourceNameRequest, domain.ErrInvalidRequest, err)
	default:
		return fmt.Errorf("reserve %s: %w", resource, err)
	}
}

// isRejection reports whether the ledger definitely refused the hold.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrInvalidRequest)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domain.ErrReservationRelease):
		return "release_failure"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrRequestInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrJournalWrite):
		return "journal_failure"
	default:
		return "error"
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.SaleEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObservePurchase(string, time.Duration) {}

func (nopMetrics) ObserveCompensation(string, bool) {}

func (nopMetrics) ObserveEventPublish(bool) {}
