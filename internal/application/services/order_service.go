package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// PlacedOrder is the finished outcome of a create-order call: the status and
// body the transport should write. Replayed is true when the bytes came from
// a finalized idempotency record rather than a fresh execution.
type PlacedOrder struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// OrderService is the order commit engine. It orchestrates idempotency
// admission, geocoding, catalog reads, the serializable commit transaction
// and the compensating refund.
type OrderService struct {
	catalog  application.CatalogRepository
	orders   application.OrderRepository
	idem     *IdempotencyService
	geocoder application.Geocoder
	gateway  application.PaymentGateway
	tx       application.TransactionManager
	logger   *slog.Logger
}

func NewOrderService(
	catalog application.CatalogRepository,
	orders application.OrderRepository,
	idem *IdempotencyService,
	geocoder application.Geocoder,
	gateway application.PaymentGateway,
	tx application.TransactionManager,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		catalog:  catalog,
		orders:   orders,
		idem:     idem,
		geocoder: geocoder,
		gateway:  gateway,
		tx:       tx,
		logger:   logger,
	}
}

// PlaceOrder runs the full pipeline for one validated request. With an
// idempotency key, retries of the same request replay the stored outcome
// byte-exactly; without one every call executes independently.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*PlacedOrder, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	var recordID string
	if cmd.IdempotencyKey != "" {
		requestHash := ComputeRequestHash(cmd.CustomerEmail, cmd.ShippingAddress, cmd.Items)
		admission, err := s.idem.Admit(ctx, cmd.CustomerEmail, cmd.IdempotencyKey, requestHash)
		if err != nil {
			return nil, err
		}
		if admission.Replay != nil {
			return &PlacedOrder{
				StatusCode: admission.Replay.StatusCode,
				Body:       admission.Replay.Body,
				Replayed:   true,
			}, nil
		}
		recordID = admission.RecordID
	}

	// Finalization must outlive the request: a disconnect after the commit
	// would otherwise strand the record in PROCESSING.
	finalizeCtx := context.WithoutCancel(ctx)

	resp, err := s.execute(ctx, cmd)
	if err != nil {
		s.finalizeFailure(finalizeCtx, recordID, err)
		return nil, err
	}

	body, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return nil, application.NewInternalError(fmt.Errorf("marshal order response: %w", marshalErr))
	}

	if recordID != "" {
		if err := s.idem.MarkCompleted(finalizeCtx, recordID, http.StatusCreated, body); err != nil {
			// The order is committed; losing the cached response only costs
			// replay fidelity, not correctness.
			s.logger.Error("failed to finalize idempotency record", "record_id", recordID, "error", err)
		}
	}

	return &PlacedOrder{StatusCode: http.StatusCreated, Body: body}, nil
}

// GetOrder loads a committed order by id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, application.ErrOrderNotFound) {
			return nil, &application.ServiceError{
				Code:       "ORDER_NOT_FOUND",
				Message:    fmt.Sprintf("order %s not found", id),
				HTTPStatus: http.StatusNotFound,
			}
		}
		return nil, application.NewInternalError(err)
	}
	return order, nil
}

// execute runs the pipeline: geocode, catalog read, the commit transaction
// and the compensating refund on post-authorization failure.
func (s *OrderService) execute(ctx context.Context, cmd PlaceOrderCommand) (*OrderResponse, error) {
	// Geocoding is I/O-bound and non-transactional, so it runs before the
	// transaction opens.
	customer, err := s.geocoder.Geocode(ctx, cmd.ShippingAddress)
	if err != nil {
		return nil, application.NewGeocodingFailedError(err)
	}

	// Catalog read and total computation. Prices captured here are the
	// prices at purchase.
	productIDs := make([]string, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.catalog.ProductsByID(ctx, productIDs)
	if err != nil {
		return nil, application.NewInternalError(fmt.Errorf("fetch products: %w", err))
	}

	prices := make(map[string]int64, len(products))
	for _, p := range products {
		prices[p.ID] = p.PriceCents
	}
	var missing []string
	for _, id := range productIDs {
		if _, ok := prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, application.NewProductsNotFoundError(
			domain.NewProductsNotFoundError(missing).Message,
		)
	}

	// The serializable commit transaction. Lock inventory, select the
	// warehouse, authorize payment, decrement stock, write the order.
	// A lost serialization conflict re-runs the whole attempt against the
	// winner's committed state; the order is rebuilt so each attempt starts
	// PENDING, and any authorized charge is refunded before the retry.
	//
	// A client disconnect cancels the request context, but an in-flight
	// commit must run to completion: aborting it mid-transaction would also
	// cancel the compensating refund in exactly the window it exists to
	// cover. The transaction deadline still bounds each attempt.
	commitCtx := context.WithoutCancel(ctx)

	const maxCommitAttempts = 3

	for attempt := 1; ; attempt++ {
		order, selection, txErr := s.commitAttempt(commitCtx, cmd, productIDs, prices, customer)
		if txErr == nil {
			return buildOrderResponse(order, selection), nil
		}
		if errors.Is(txErr, application.ErrTxConflict) {
			if attempt < maxCommitAttempts {
				s.logger.Warn("commit transaction lost a serialization conflict, retrying",
					"customer", cmd.CustomerEmail,
					"attempt", attempt,
				)
				continue
			}
			return nil, application.NewInternalError(txErr)
		}
		return nil, txErr
	}
}

// commitAttempt runs one attempt of the commit transaction, including the
// compensating refund when a post-authorization step fails.
func (s *OrderService) commitAttempt(
	ctx context.Context,
	cmd PlaceOrderCommand,
	productIDs []string,
	prices map[string]int64,
	customer domain.Coordinates,
) (*domain.Order, *Selection, error) {
	order, err := domain.NewOrder(cmd.CustomerEmail, cmd.ShippingAddress, cmd.Items, prices)
	if err != nil {
		return nil, nil, mapDomainError(err)
	}

	var (
		selection     *Selection
		transactionID string
	)

	txErr := s.tx.InSerializableTx(ctx, func(ctx context.Context, repos application.TxRepositories) error {
		levels, err := repos.Inventory.LockForProducts(ctx, productIDs)
		if err != nil {
			return application.NewInternalError(fmt.Errorf("lock inventory rows: %w", err))
		}

		warehouses, err := repos.Catalog.ListWarehouses(ctx)
		if err != nil {
			return application.NewInternalError(fmt.Errorf("list warehouses: %w", err))
		}

		// The selection is derived from locked rows, so it is authoritative
		// for the remainder of the transaction.
		sel, err := SelectWarehouse(warehouses, levels, cmd.Items, customer)
		if err != nil {
			return err
		}
		selection = sel

		memo := fmt.Sprintf("order %s for %s", order.ID, cmd.CustomerEmail)
		auth, err := s.gateway.Authorize(ctx, cmd.CreditCard, order.TotalCents, memo)
		if err != nil {
			return application.NewInternalError(fmt.Errorf("payment gateway authorize: %w", err))
		}
		if !auth.Authorized {
			return application.NewPaymentFailedError(auth.DeclineReason)
		}
		transactionID = auth.TransactionID

		for _, item := range order.Items {
			if err := repos.Inventory.Decrement(ctx, sel.Warehouse.ID, item.ProductID, item.Quantity); err != nil {
				return application.NewInternalError(fmt.Errorf("decrement inventory: %w", err))
			}
		}

		if err := order.MarkPaid(sel.Warehouse.ID); err != nil {
			return application.NewInternalError(err)
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return application.NewInternalError(fmt.Errorf("insert order: %w", err))
		}

		return nil
	})

	if txErr != nil {
		// The window between authorization and commit is covered by the
		// compensating refund. A denied authorization never reaches here
		// with a transaction id.
		if transactionID != "" {
			s.compensate(ctx, transactionID, order.TotalCents, txErr)
		}
		return nil, nil, txErr
	}

	return order, selection, nil
}

// compensate refunds an authorized charge whose enclosing transaction could
// not commit. A failed refund requires manual reconciliation and must never
// mask the original failure.
func (s *OrderService) compensate(ctx context.Context, transactionID string, amountCents int64, cause error) {
	reason := fmt.Sprintf("order commit failed: %v", cause)
	if err := s.gateway.Refund(ctx, transactionID, amountCents, reason); err != nil {
		s.logger.Error("compensating refund failed, manual reconciliation required",
			"transaction_id", transactionID,
			"amount_cents", amountCents,
			"commit_error", cause,
			"refund_error", err,
		)
		return
	}
	s.logger.Warn("issued compensating refund",
		"transaction_id", transactionID,
		"amount_cents", amountCents,
		"commit_error", cause,
	)
}

// finalizeFailure marks the idempotency record FAILED for deterministic
// client errors. 5xx outcomes leave the record PROCESSING so a retry can
// take the lock over after it goes stale.
func (s *OrderService) finalizeFailure(ctx context.Context, recordID string, cause error) {
	if recordID == "" || !application.IsDeterministicClientError(cause) {
		return
	}
	status, body := application.ErrorBody(cause)
	if err := s.idem.MarkFailed(ctx, recordID, status, body); err != nil {
		s.logger.Error("failed to finalize idempotency record", "record_id", recordID, "error", err)
	}
}

func validateCommand(cmd PlaceOrderCommand) error {
	if cmd.CustomerEmail == "" {
		return application.NewValidationError("customer email is required")
	}
	if cmd.ShippingAddress == "" {
		return application.NewValidationError("shipping address is required")
	}
	if cmd.CreditCard == "" {
		return application.NewValidationError("payment details are required")
	}
	if len(cmd.Items) == 0 {
		return application.NewValidationError("order must contain at least one item")
	}
	for _, item := range cmd.Items {
		if item.ProductID == "" {
			return application.NewValidationError("item product id is required")
		}
		if item.Quantity < 1 {
			return application.NewValidationError("quantity must be a positive integer")
		}
	}
	return nil
}

func mapDomainError(err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeValidation:
			return application.NewValidationError(domainErr.Message)
		case domain.ErrCodeProductsNotFound:
			return application.NewProductsNotFoundError(domainErr.Message)
		case domain.ErrCodeSplitShipment:
			return application.NewSplitShipmentError(domainErr.Message)
		}
	}
	return application.NewInternalError(err)
}
