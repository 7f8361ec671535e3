package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"merch-service/internal/domain"
	"merch-service/internal/mocks"
	"merch-service/internal/repository/memory"
)

func TestOrderService_Checkout(t *testing.T) {
	store := memory.NewStore()
	h := seedHeadset(t, store)
	dispatcher := new(mocks.MockDispatcher)
	dispatcher.On("Enqueue", mock.MatchedBy(func(n domain.OrderConfirmation) bool {
		return n.OrderID == 1 && n.TotalCents == 445000 && n.Contact == "orders@shop.test"
	})).Return(nil).Once()

	svc := newMemoryOrderService(store, dispatcher)

	res, err := svc.Checkout(context.Background(), cart(line(h.ID, 5)), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.OrderID)
	assert.Equal(t, int64(445000), res.TotalCents)
	assert.Equal(t, int64(0), stockOf(t, store, h.ID))

	order, err := svc.GetOrderById(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, order.Status)
	assert.Equal(t, int64(445000), order.TotalCents)
	require.Len(t, order.Items, 1)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.Equal(t, int64(5), order.Items[0].Quantity)
	assert.Equal(t, TestHeadsetPrice, order.Items[0].PriceAtPurchase)
	assert.WithinDuration(t, time.Now(), order.CreatedAt, 5*time.Second)

	_, err = svc.Checkout(context.Background(), cart(line(h.ID, 1)), nil)
	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(0), short.Available)

	dispatcher.AssertExpectations(t)
}

func TestOrderService_Checkout_RejectionLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name    string
		cart    func(h domain.Product) domain.CheckoutRequest
		wantErr error
	}{
		{"insufficient stock", func(h domain.Product) domain.CheckoutRequest { return cart(line(h.ID, 6)) }, domain.ErrInsufficientStock},
		{"unknown product", func(h domain.Product) domain.CheckoutRequest { return cart(line(h.ID, 1), line(999, 1)) }, domain.ErrProductNotFound},
		{"product id zero", func(h domain.Product) domain.CheckoutRequest { return cart(line(h.ID, 1), line(0, 1)) }, domain.ErrProductNotFound},
		{"invalid quantity", func(h domain.Product) domain.CheckoutRequest { return cart(line(h.ID, 0)) }, domain.ErrInvalidQuantity},
		{"empty cart", func(domain.Product) domain.CheckoutRequest { return cart() }, domain.ErrEmptyCart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			h := seedHeadset(t, store)
			dispatcher := new(mocks.MockDispatcher)
			svc := newMemoryOrderService(store, dispatcher)

			res, err := svc.Checkout(context.Background(), tt.cart(h), nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
			assert.Equal(t, TestHeadsetStock, stockOf(t, store, h.ID))

			_, err = svc.GetOrderById(context.Background(), 1)
			assert.ErrorIs(t, err, domain.ErrOrderNotFound)
			dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything)
		})
	}
}

func TestOrderService_Checkout_IgnoresCallerCancellation(t *testing.T) {
	store := memory.NewStore()
	h := seedHeadset(t, store)
	svc := newMemoryOrderService(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Checkout(ctx, cart(line(h.ID, 2)), nil)
	require.NoError(t, err)
	assert.Equal(t, 2*TestHeadsetPrice, res.TotalCents)
	assert.Equal(t, int64(3), stockOf(t, store, h.ID))
}

func TestOrderService_Checkout_ConcurrentBuyersOfLastUnits(t *testing.T) {
	const buyers = 20
	store := memory.NewStore()
	h := seedHeadset(t, store)
	svc := newMemoryOrderService(store, nil)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), cart(line(h.ID, TestHeadsetStock)), nil)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(buyers-1), rejected.Load())
	assert.Equal(t, int64(0), stockOf(t, store, h.ID))
}

func TestOrderService_Checkout_ConcurrentSingleUnits(t *testing.T) {
	const buyers = 40
	store := memory.NewStore()
	p := seedProduct(t, store, "sticker", "Sticker", 300, 25)
	svc := newMemoryOrderService(store, nil)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Checkout(context.Background(), cart(line(p.ID, 1)), nil); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), ok.Load())
	assert.Equal(t, int64(0), stockOf(t, store, p.ID))
}

func TestOrderService_Checkout_OpposedLockOrderDoesNotDeadlock(t *testing.T) {
	store := memory.NewStore()
	a := seedProduct(t, store, "mug", "Mug", 1200, 1000)
	b := seedProduct(t, store, "cap", "Cap", 2500, 1000)
	svc := newMemoryOrderService(store, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := cart(line(a.ID, 1), line(b.ID, 1))
				if i%2 == 1 {
					req = cart(line(b.ID, 1), line(a.ID, 1))
				}
				_, err := svc.Checkout(context.Background(), req, nil)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("checkouts did not finish")
	}
	assert.Equal(t, int64(900), stockOf(t, store, a.ID))
	assert.Equal(t, int64(900), stockOf(t, store, b.ID))
}

func newMockOrderService(store *mocks.MockStore, dispatcher *mocks.MockDispatcher) *OrderService {
	return NewOrderService(store, new(mocks.MockOrderRepository), NewLedger(testTracer), dispatcher,
		OrderServiceOptions{Retry: testRetry(), DefaultContact: "orders@shop.test"},
		testTracer, zerolog.Nop())
}

func happyTx(orderID uint64) *mocks.MockTx {
	tx := new(mocks.MockTx)
	tx.On("LockProducts", mock.Anything, []uint64{1}).
		Return(map[uint64]domain.Product{1: {ID: 1, Title: "Mug", PriceCents: 100, Stock: 5}}, nil)
	tx.On("DeductStock", mock.Anything, uint64(1), int64(2)).Return(nil)
	tx.On("CreateOrder", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Order).ID = orderID
	})
	tx.On("CreateOrderItems", mock.Anything, mock.MatchedBy(func(items []domain.OrderItem) bool {
		return len(items) == 1 && items[0].OrderID == orderID
	})).Return(nil)
	tx.On("Commit").Return(nil)
	tx.On("Rollback").Return(nil)
	return tx
}

func TestOrderService_Checkout_RetriesConflict(t *testing.T) {
	conflicted := new(mocks.MockTx)
	conflicted.On("LockProducts", mock.Anything, []uint64{1}).
		Return(nil, fmt.Errorf("lock products: %w", domain.ErrConflict))
	conflicted.On("Rollback").Return(nil)

	store := new(mocks.MockStore)
	store.On("Begin", mock.Anything).Return(conflicted, nil).Once()
	store.On("Begin", mock.Anything).Return(happyTx(42), nil).Once()

	dispatcher := new(mocks.MockDispatcher)
	dispatcher.On("Enqueue", mock.Anything).Return(nil).Once()

	res, err := newMockOrderService(store, dispatcher).Checkout(context.Background(), cart(line(1, 2)), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.OrderID)
	assert.Equal(t, int64(200), res.TotalCents)

	store.AssertNumberOfCalls(t, "Begin", 2)
	conflicted.AssertCalled(t, "Rollback")
	conflicted.AssertNotCalled(t, "Commit")
	dispatcher.AssertExpectations(t)
}

func TestOrderService_Checkout_ConflictExhaustsRetries(t *testing.T) {
	tx := new(mocks.MockTx)
	tx.On("LockProducts", mock.Anything, []uint64{1}).
		Return(nil, fmt.Errorf("lock products: %w", domain.ErrConflict))
	tx.On("Rollback").Return(nil)

	store := new(mocks.MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)
	dispatcher := new(mocks.MockDispatcher)

	res, err := newMockOrderService(store, dispatcher).Checkout(context.Background(), cart(line(1, 2)), nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "3 attempts")

	store.AssertNumberOfCalls(t, "Begin", 3)
	dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything)
}

func TestOrderService_Checkout_BusinessErrorsAreNotRetried(t *testing.T) {
	tx := new(mocks.MockTx)
	tx.On("LockProducts", mock.Anything, []uint64{1}).
		Return(map[uint64]domain.Product{1: {ID: 1, Title: "Mug", PriceCents: 100, Stock: 1}}, nil)
	tx.On("Rollback").Return(nil)

	store := new(mocks.MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)

	_, err := newMockOrderService(store, new(mocks.MockDispatcher)).Checkout(context.Background(), cart(line(1, 2)), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	store.AssertNumberOfCalls(t, "Begin", 1)
	tx.AssertNotCalled(t, "DeductStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_Checkout_NoNotificationWhenCommitFails(t *testing.T) {
	tx := new(mocks.MockTx)
	tx.On("LockProducts", mock.Anything, []uint64{1}).
		Return(map[uint64]domain.Product{1: {ID: 1, Title: "Mug", PriceCents: 100, Stock: 5}}, nil)
	tx.On("DeductStock", mock.Anything, uint64(1), int64(2)).Return(nil)
	tx.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	tx.On("CreateOrderItems", mock.Anything, mock.Anything).Return(nil)
	tx.On("Commit").Return(errors.New("connection reset"))
	tx.On("Rollback").Return(nil)

	store := new(mocks.MockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)
	dispatcher := new(mocks.MockDispatcher)

	_, err := newMockOrderService(store, dispatcher).Checkout(context.Background(), cart(line(1, 2)), nil)
	assert.ErrorContains(t, err, "connection reset")
	dispatcher.AssertNotCalled(t, "Enqueue", mock.Anything)
	tx.AssertCalled(t, "Rollback")
}

func TestOrderService_Checkout_EnqueueFailureDoesNotFailCheckout(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("Begin", mock.Anything).Return(happyTx(7), nil)
	dispatcher := new(mocks.MockDispatcher)
	dispatcher.On("Enqueue", mock.Anything).Return(errors.New("notification queue is full"))

	res, err := newMockOrderService(store, dispatcher).Checkout(context.Background(), cart(line(1, 2)), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.OrderID)
}

func TestOrderService_ContactFor(t *testing.T) {
	svc := newMemoryOrderService(memory.NewStore(), nil)

	tests := []struct {
		name      string
		req       domain.CheckoutRequest
		principal *domain.Principal
		want      string
	}{
		{"request contact wins", domain.CheckoutRequest{ContactEmail: " buyer@shop.test "}, &domain.Principal{Username: "admin@shop.test"}, "buyer@shop.test"},
		{"principal that looks like an address", domain.CheckoutRequest{}, &domain.Principal{Username: "admin@shop.test"}, "admin@shop.test"},
		{"principal without address", domain.CheckoutRequest{}, &domain.Principal{Username: "admin"}, "orders@shop.test"},
		{"anonymous", domain.CheckoutRequest{}, nil, "orders@shop.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.contactFor(tt.req, tt.principal))
		})
	}
}

func TestOrderService_GetOrderById(t *testing.T) {
	tests := []struct {
		name          string
		orderId       uint64
		setupMocks    func(*mocks.MockOrderRepository)
		expectedError error
	}{
		{
			name:    "successful order retrieval",
			orderId: 1,
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByID", mock.Anything, uint64(1)).Return(&domain.Order{
					ID:         1,
					Status:     domain.StatusPaid,
					TotalCents: 1000,
				}, nil)
			},
		},
		{
			name:    "order not found",
			orderId: 999,
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByID", mock.Anything, uint64(999)).Return(nil, nil)
			},
			expectedError: domain.ErrOrderNotFound,
		},
		{
			name:    "repository error",
			orderId: 1,
			setupMocks: func(mockRepo *mocks.MockOrderRepository) {
				mockRepo.On("FindByID", mock.Anything, uint64(1)).Return(nil, errors.New("database connection error"))
			},
			expectedError: errors.New("database connection error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(mocks.MockOrderRepository)
			tt.setupMocks(mockRepo)

			service := NewOrderService(new(mocks.MockStore), mockRepo, NewLedger(testTracer), nil,
				OrderServiceOptions{}, testTracer, zerolog.Nop())
			result, err := service.GetOrderById(context.Background(), tt.orderId)

			if tt.expectedError != nil {
				assert.Error(t, err)
				if tt.expectedError == domain.ErrOrderNotFound {
					assert.Equal(t, domain.ErrOrderNotFound, err)
				} else {
					assert.Contains(t, err.Error(), tt.expectedError.Error())
				}
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, result)
				assert.Equal(t, tt.orderId, result.ID)
				assert.Equal(t, domain.StatusPaid, result.Status)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}
