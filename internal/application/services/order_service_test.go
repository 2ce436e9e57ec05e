package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

type orderServiceFixture struct {
	store    *memStore
	idemRepo *memIdempotencyRepo
	gateway  *recordingGateway
	geocoder *staticGeocoder
	service  *OrderService
}

func newOrderServiceFixture() *orderServiceFixture {
	store := newMemStore()
	store.addProduct("prod-a", 1000)
	store.addProduct("prod-b", 2500)
	store.addWarehouse("wh-denver", "Denver DC", 39.7392, -104.9903)
	store.addWarehouse("wh-ny", "New York DC", 40.7128, -74.0060)
	store.setStock("wh-denver", "prod-a", 10)
	store.setStock("wh-denver", "prod-b", 10)
	store.setStock("wh-ny", "prod-a", 10)
	store.setStock("wh-ny", "prod-b", 10)

	idemRepo := newMemIdempotencyRepo()
	gateway := newRecordingGateway()
	geocoder := &staticGeocoder{coords: austinCustomer}

	idemService := NewIdempotencyService(idemRepo, newTestLogger())
	service := NewOrderService(
		store,
		store,
		idemService,
		geocoder,
		gateway,
		&memTxManager{store: store},
		newTestLogger(),
	)

	return &orderServiceFixture{
		store:    store,
		idemRepo: idemRepo,
		gateway:  gateway,
		geocoder: geocoder,
		service:  service,
	}
}

func validCommand() PlaceOrderCommand {
	return PlaceOrderCommand{
		CustomerEmail:   "jane@example.com",
		ShippingAddress: "123 Main St, Austin, TX",
		CreditCard:      "4242424242424242",
		Items: []domain.RequestedItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 1},
		},
	}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path commits and decrements the chosen warehouse", func(t *testing.T) {
		f := newOrderServiceFixture()

		placed, err := f.service.PlaceOrder(ctx, validCommand())
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, placed.StatusCode)
		assert.False(t, placed.Replayed)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(placed.Body, &resp))
		assert.Equal(t, int64(4500), resp.TotalAmount)
		assert.Equal(t, string(domain.StatusPaid), resp.Status)
		assert.Equal(t, "wh-denver", resp.Warehouse.ID)
		assert.Nil(t, resp.Warehouse.ClosestWarehouseExcluded)
		require.Len(t, resp.OrderItems, 2)

		assert.Equal(t, int64(8), f.store.stock("wh-denver", "prod-a"))
		assert.Equal(t, int64(9), f.store.stock("wh-denver", "prod-b"))
		assert.Equal(t, int64(10), f.store.stock("wh-ny", "prod-a"), "losing warehouse untouched")
	})

	t.Run("nearer warehouse short on stock reports the exclusion", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.store.setStock("wh-denver", "prod-a", 1)

		placed, err := f.service.PlaceOrder(ctx, validCommand())
		require.NoError(t, err)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(placed.Body, &resp))
		assert.Equal(t, "wh-ny", resp.Warehouse.ID)
		require.NotNil(t, resp.Warehouse.ClosestWarehouseExcluded)
		assert.Equal(t, "wh-denver", resp.Warehouse.ClosestWarehouseExcluded.ID)
		require.Len(t, resp.Warehouse.ClosestWarehouseExcluded.MissingProducts, 1)
		assert.Equal(t, "prod-a", resp.Warehouse.ClosestWarehouseExcluded.MissingProducts[0].ProductID)
	})

	t.Run("unknown product is a 404 before any side effects", func(t *testing.T) {
		f := newOrderServiceFixture()
		cmd := validCommand()
		cmd.Items = append(cmd.Items, domain.RequestedItem{ProductID: "prod-missing", Quantity: 1})

		_, err := f.service.PlaceOrder(ctx, cmd)
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeProductsNotFound, svcErr.Code)
		assert.Contains(t, svcErr.Message, "prod-missing")
		assert.Empty(t, f.gateway.authorized)
		assert.Empty(t, f.store.decrements)
	})

	t.Run("split shipment is a 400 and charges nothing", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.store.setStock("wh-denver", "prod-a", 1)
		f.store.setStock("wh-ny", "prod-b", 0)

		_, err := f.service.PlaceOrder(ctx, validCommand())
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeSplitShipment, svcErr.Code)
		assert.Empty(t, f.gateway.authorized, "payment is only attempted after a warehouse is chosen")
		assert.Empty(t, f.store.decrements)
	})

	t.Run("declined payment never decrements and never refunds", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.gateway.declineAll = true

		_, err := f.service.PlaceOrder(ctx, validCommand())
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodePaymentFailed, svcErr.Code)
		assert.Equal(t, http.StatusPaymentRequired, svcErr.HTTPStatus)
		assert.Empty(t, f.store.decrements)
		assert.Empty(t, f.gateway.refunds, "a denial is not a charge, nothing to refund")
	})

	t.Run("commit failure after authorization refunds the charge", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.store.createOrderErr = errors.New("disk full")

		_, err := f.service.PlaceOrder(ctx, validCommand())
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeInternal, svcErr.Code)

		require.Len(t, f.gateway.authorized, 1)
		amount, refunded := f.gateway.refundedAmount(f.gateway.authorized[0])
		require.True(t, refunded, "authorized charge must be compensated")
		assert.Equal(t, int64(4500), amount)
	})

	t.Run("duplicate lines jointly exceeding stock are rejected before payment", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.store.setStock("wh-denver", "prod-a", 3)
		f.store.setStock("wh-ny", "prod-a", 3)

		cmd := validCommand()
		cmd.Items = []domain.RequestedItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-a", Quantity: 2},
		}

		_, err := f.service.PlaceOrder(ctx, cmd)
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeSplitShipment, svcErr.Code,
			"combined demand of 4 against stock of 3 is a clean rejection")
		assert.Empty(t, f.gateway.authorized)
		assert.Empty(t, f.store.decrements)
	})

	t.Run("duplicate lines within stock commit both decrements", func(t *testing.T) {
		f := newOrderServiceFixture()

		cmd := validCommand()
		cmd.Items = []domain.RequestedItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-a", Quantity: 1},
		}

		placed, err := f.service.PlaceOrder(ctx, cmd)
		require.NoError(t, err)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(placed.Body, &resp))
		assert.Equal(t, int64(3000), resp.TotalAmount)
		assert.Equal(t, int64(7), f.store.stock("wh-denver", "prod-a"))
		assert.Empty(t, f.gateway.refunds)
	})

	t.Run("geocoder failure is a 502", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.geocoder.err = fmt.Errorf("upstream timeout")

		_, err := f.service.PlaceOrder(ctx, validCommand())
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeGeocodingFailed, svcErr.Code)
		assert.Equal(t, http.StatusBadGateway, svcErr.HTTPStatus)
	})

	t.Run("rejects invalid command before touching collaborators", func(t *testing.T) {
		f := newOrderServiceFixture()

		for name, mutate := range map[string]func(*PlaceOrderCommand){
			"missing email":    func(c *PlaceOrderCommand) { c.CustomerEmail = "" },
			"missing address":  func(c *PlaceOrderCommand) { c.ShippingAddress = "" },
			"missing payment":  func(c *PlaceOrderCommand) { c.CreditCard = "" },
			"no items":         func(c *PlaceOrderCommand) { c.Items = nil },
			"zero quantity":    func(c *PlaceOrderCommand) { c.Items[0].Quantity = 0 },
			"empty product id": func(c *PlaceOrderCommand) { c.Items[0].ProductID = "" },
		} {
			cmd := validCommand()
			mutate(&cmd)
			_, err := f.service.PlaceOrder(ctx, cmd)
			require.Error(t, err, name)
			svcErr, ok := application.IsServiceError(err)
			require.True(t, ok, name)
			assert.Equal(t, application.ErrCodeValidation, svcErr.Code, name)
		}
	})
}

func TestPlaceOrderClientDisconnect(t *testing.T) {
	// net/http cancels the request context when the client goes away. The
	// commit path and the compensating refund must not inherit that
	// cancellation.

	t.Run("in-flight commit runs to completion", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.gateway.failWhenCancelled = true

		gone, cancel := context.WithCancel(context.Background())
		cancel()

		placed, err := f.service.PlaceOrder(gone, validCommand())
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, placed.StatusCode)
		assert.Equal(t, int64(8), f.store.stock("wh-denver", "prod-a"))
	})

	t.Run("compensating refund still reaches the gateway", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.gateway.failWhenCancelled = true
		f.store.createOrderErr = errors.New("disk full")

		gone, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.service.PlaceOrder(gone, validCommand())
		require.Error(t, err)

		require.Len(t, f.gateway.authorized, 1)
		amount, refunded := f.gateway.refundedAmount(f.gateway.authorized[0])
		require.True(t, refunded, "refund must not die with the request context")
		assert.Equal(t, int64(4500), amount)
	})

	t.Run("finalization survives the disconnect", func(t *testing.T) {
		f := newOrderServiceFixture()

		gone, cancel := context.WithCancel(context.Background())
		cancel()

		cmd := validCommand()
		cmd.IdempotencyKey = "key-gone"
		_, err := f.service.PlaceOrder(gone, cmd)
		require.NoError(t, err)

		rec := f.idemRepo.get("jane@example.com", "key-gone")
		require.NotNil(t, rec)
		assert.Equal(t, domain.IdempotencyCompleted, rec.Status,
			"the record must not stay PROCESSING after a committed order")
	})
}

func TestPlaceOrderIdempotency(t *testing.T) {
	ctx := context.Background()

	withKey := func(key string) PlaceOrderCommand {
		cmd := validCommand()
		cmd.IdempotencyKey = key
		return cmd
	}

	t.Run("retry replays the original response byte for byte", func(t *testing.T) {
		f := newOrderServiceFixture()

		first, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)
		require.False(t, first.Replayed)

		second, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.StatusCode, second.StatusCode)
		assert.Equal(t, first.Body, second.Body)

		// The retry executed nothing: one authorization, one decrement pass.
		assert.Len(t, f.gateway.authorized, 1)
		assert.Equal(t, int64(8), f.store.stock("wh-denver", "prod-a"))
	})

	t.Run("different card same key still replays", func(t *testing.T) {
		f := newOrderServiceFixture()

		first, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)

		cmd := withKey("key-1")
		cmd.CreditCard = "4000000000000002"
		second, err := f.service.PlaceOrder(ctx, cmd)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Body, second.Body)
	})

	t.Run("same key different items is a 422", func(t *testing.T) {
		f := newOrderServiceFixture()

		_, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)

		cmd := withKey("key-1")
		cmd.Items = []domain.RequestedItem{{ProductID: "prod-a", Quantity: 5}}
		_, err = f.service.PlaceOrder(ctx, cmd)
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeIdempotencyMismatch, svcErr.Code)
	})

	t.Run("deterministic failure is cached and replayed", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.gateway.declineAll = true

		_, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.Error(t, err)

		rec := f.idemRepo.get("jane@example.com", "key-1")
		require.NotNil(t, rec)
		assert.Equal(t, domain.IdempotencyFailed, rec.Status)
		require.NotNil(t, rec.ResponseStatus)
		assert.Equal(t, http.StatusPaymentRequired, *rec.ResponseStatus)

		// Retry replays the stored denial without calling the gateway again.
		f.gateway.declineAll = false
		second, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, http.StatusPaymentRequired, second.StatusCode)
		assert.Empty(t, f.gateway.authorized)
	})

	t.Run("transient failure leaves the record processing", func(t *testing.T) {
		f := newOrderServiceFixture()
		f.store.createOrderErr = errors.New("disk full")

		_, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.Error(t, err)

		rec := f.idemRepo.get("jane@example.com", "key-1")
		require.NotNil(t, rec)
		assert.Equal(t, domain.IdempotencyProcessing, rec.Status,
			"5xx outcomes are not cached so a retry can run again")
	})

	t.Run("distinct keys execute independently", func(t *testing.T) {
		f := newOrderServiceFixture()

		first, err := f.service.PlaceOrder(ctx, withKey("key-1"))
		require.NoError(t, err)
		second, err := f.service.PlaceOrder(ctx, withKey("key-2"))
		require.NoError(t, err)

		var firstResp, secondResp OrderResponse
		require.NoError(t, json.Unmarshal(first.Body, &firstResp))
		require.NoError(t, json.Unmarshal(second.Body, &secondResp))
		assert.NotEqual(t, firstResp.ID, secondResp.ID, "two distinct orders")
		assert.Len(t, f.gateway.authorized, 2)
		assert.Equal(t, int64(6), f.store.stock("wh-denver", "prod-a"))
	})

	t.Run("no key means every call executes", func(t *testing.T) {
		f := newOrderServiceFixture()

		_, err := f.service.PlaceOrder(ctx, validCommand())
		require.NoError(t, err)
		_, err = f.service.PlaceOrder(ctx, validCommand())
		require.NoError(t, err)

		assert.Len(t, f.gateway.authorized, 2)
		assert.Equal(t, int64(6), f.store.stock("wh-denver", "prod-a"))
	})
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a committed order", func(t *testing.T) {
		f := newOrderServiceFixture()

		placed, err := f.service.PlaceOrder(ctx, validCommand())
		require.NoError(t, err)

		var resp OrderResponse
		require.NoError(t, json.Unmarshal(placed.Body, &resp))

		order, err := f.service.GetOrder(ctx, resp.ID)
		require.NoError(t, err)
		assert.Equal(t, resp.ID, order.ID)
		assert.Equal(t, domain.StatusPaid, order.Status)
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		f := newOrderServiceFixture()

		_, err := f.service.GetOrder(ctx, "no-such-order")
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, svcErr.HTTPStatus)
	})
}
