package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/internal/orders"
	"github.com/batahq/bata-backend/internal/products"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
	"github.com/batahq/bata-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders    []*models.Order
	lineItems []models.OrderLineItem
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *stubOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	s.lineItems = append(s.lineItems, items...)
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	for _, order := range s.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) UpdateGuarded(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, updates map[string]any) (int64, error) {
	return 0, nil
}

func (s *stubOrdersRepo) ListByParty(ctx context.Context, party uuid.UUID, role enums.UserRole, limit, offset int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubProductsRepo struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProductsRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubProductsRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var found []models.Product
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			found = append(found, *product)
		}
	}
	return found, nil
}

func (s *stubProductsRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	product, ok := s.products[id]
	if !ok || !product.IsActive || product.StockQty < qty {
		return 0, nil
	}
	product.StockQty -= qty
	return 1, nil
}

type stubLedgerService struct {
	entries []ledger.AppendInput
	err     error
}

func (s *stubLedgerService) Append(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.entries = append(s.entries, input)
	return &models.LedgerEntry{ID: uuid.New()}, nil
}

func (s *stubLedgerService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (s *stubLedgerService) ListPageByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}

func (s *stubLedgerService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newCheckoutService(t *testing.T, ordersRepo *stubOrdersRepo, productsRepo *stubProductsRepo, ledgerSvc *stubLedgerService) Service {
	t.Helper()
	svc, err := NewService(stubTxRunner{}, ordersRepo, productsRepo, ledgerSvc, testFeesConfig())
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestExecuteSingleSellerSplit(t *testing.T) {
	sellerID := uuid.New()
	buyerID := uuid.New()
	productID := uuid.New()
	productsRepo := &stubProductsRepo{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, SellerID: sellerID, Name: "USB Hub", Category: "electronics", PriceKobo: 1000000, StockQty: 3, IsActive: true},
	}}
	ordersRepo := &stubOrdersRepo{}
	ledgerSvc := &stubLedgerService{}
	svc := newCheckoutService(t, ordersRepo, productsRepo, ledgerSvc)

	result, err := svc.Execute(context.Background(), buyerID, CheckoutInput{
		Items: []CheckoutItem{{ProductID: productID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected one order got %d", len(result.Orders))
	}

	summary := result.Orders[0]
	if summary.ProductPriceKobo != 1000000 {
		t.Fatalf("expected subtotal 1000000 got %d", summary.ProductPriceKobo)
	}
	// 5% item fee (50000) plus the delivery margin (80000 - 56000).
	if summary.PlatformCommissionKobo != 74000 {
		t.Fatalf("expected commission 74000 got %d", summary.PlatformCommissionKobo)
	}
	if summary.SellerEscrowKobo != 950000 {
		t.Fatalf("expected escrow 950000 got %d", summary.SellerEscrowKobo)
	}
	if summary.TotalAmountKobo != 1080000 {
		t.Fatalf("expected total 1080000 got %d", summary.TotalAmountKobo)
	}
	if result.GrandTotalKobo != 1080000 {
		t.Fatalf("expected grand total 1080000 got %d", result.GrandTotalKobo)
	}

	if productsRepo.products[productID].StockQty != 2 {
		t.Fatalf("expected stock 2 got %d", productsRepo.products[productID].StockQty)
	}
	if len(ledgerSvc.entries) != 2 {
		t.Fatalf("expected buyer debit and seller escrow got %d entries", len(ledgerSvc.entries))
	}
	debit, escrow := ledgerSvc.entries[0], ledgerSvc.entries[1]
	if debit.UserID != buyerID || debit.Type != enums.LedgerEntryTypeDebit || debit.AmountKobo != 1080000 {
		t.Fatalf("unexpected debit %+v", debit)
	}
	if escrow.UserID != sellerID || escrow.Type != enums.LedgerEntryTypeEscrow || escrow.AmountKobo != 950000 {
		t.Fatalf("unexpected escrow %+v", escrow)
	}

	created := ordersRepo.orders[0]
	if created.Status != enums.OrderStatusPending || !created.IsPaid {
		t.Fatalf("expected paid pending order got %+v", created)
	}
	if created.PlatformCommissionKobo != 74000 {
		t.Fatalf("stored commission must include the delivery margin, got %d", created.PlatformCommissionKobo)
	}
	if created.SellerEscrowKobo+created.RiderPayoutKobo+created.PlatformCommissionKobo != created.TotalAmountKobo {
		t.Fatalf("order splits do not sum to total: %+v", created)
	}
	if len(ordersRepo.lineItems) != 1 || ordersRepo.lineItems[0].OrderID != created.ID {
		t.Fatalf("expected one line item bound to order got %+v", ordersRepo.lineItems)
	}
}

func TestExecuteMultiSellerCartSplits(t *testing.T) {
	buyerID := uuid.New()
	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	productsRepo := &stubProductsRepo{products: map[uuid.UUID]*models.Product{
		productA: {ID: productA, SellerID: sellerA, Name: "Jollof Pack", Category: "food", PriceKobo: 500000, StockQty: 10, IsActive: true},
		productB: {ID: productB, SellerID: sellerB, Name: "Notebook", Category: "stationery", PriceKobo: 200000, StockQty: 10, IsActive: true},
	}}
	ordersRepo := &stubOrdersRepo{}
	ledgerSvc := &stubLedgerService{}
	svc := newCheckoutService(t, ordersRepo, productsRepo, ledgerSvc)

	result, err := svc.Execute(context.Background(), buyerID, CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: productA, Qty: 1},
			{ProductID: productB, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("expected two orders got %d", len(result.Orders))
	}

	byseller := map[uuid.UUID]OrderSummary{}
	for _, summary := range result.Orders {
		byseller[summary.SellerID] = summary
	}
	// Food takes the high-fee rate; each order also keeps its own
	// delivery margin (80000 - 56000).
	if got := byseller[sellerA].PlatformCommissionKobo; got != 50000+24000 {
		t.Fatalf("expected 10%% commission plus margin 74000 got %d", got)
	}
	if got := byseller[sellerB].PlatformCommissionKobo; got != 20000+24000 {
		t.Fatalf("expected 5%% commission plus margin 44000 got %d", got)
	}
	// Each order carries its own delivery fee.
	if result.GrandTotalKobo != 500000+400000+2*80000 {
		t.Fatalf("unexpected grand total %d", result.GrandTotalKobo)
	}
	if len(ledgerSvc.entries) != 4 {
		t.Fatalf("expected four ledger entries got %d", len(ledgerSvc.entries))
	}
}

func TestExecuteRejectsInactiveProduct(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	productsRepo := &stubProductsRepo{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, SellerID: uuid.New(), Name: "Old Phone", Category: "electronics", PriceKobo: 100000, StockQty: 5, IsActive: false},
	}}
	ordersRepo := &stubOrdersRepo{}
	svc := newCheckoutService(t, ordersRepo, productsRepo, &stubLedgerService{})

	_, err := svc.Execute(context.Background(), buyerID, CheckoutInput{
		Items: []CheckoutItem{{ProductID: productID, Qty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable) {
		t.Fatalf("expected product unavailable got %v", err)
	}
	if len(ordersRepo.orders) != 0 {
		t.Fatal("no order should be created for an inactive product")
	}
}

func TestExecuteRejectsInsufficientStock(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	productsRepo := &stubProductsRepo{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, SellerID: uuid.New(), Name: "Charger", Category: "electronics", PriceKobo: 100000, StockQty: 1, IsActive: true},
	}}
	ordersRepo := &stubOrdersRepo{}
	ledgerSvc := &stubLedgerService{}
	svc := newCheckoutService(t, ordersRepo, productsRepo, ledgerSvc)

	_, err := svc.Execute(context.Background(), buyerID, CheckoutInput{
		Items: []CheckoutItem{{ProductID: productID, Qty: 2}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable) {
		t.Fatalf("expected product unavailable got %v", err)
	}
	if len(ledgerSvc.entries) != 0 {
		t.Fatal("no money should move when stock is short")
	}
}

func TestExecuteMergesDuplicateLines(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	productID := uuid.New()
	productsRepo := &stubProductsRepo{products: map[uuid.UUID]*models.Product{
		productID: {ID: productID, SellerID: sellerID, Name: "Mug", Category: "home", PriceKobo: 150000, StockQty: 5, IsActive: true},
	}}
	ordersRepo := &stubOrdersRepo{}
	svc := newCheckoutService(t, ordersRepo, productsRepo, &stubLedgerService{})

	result, err := svc.Execute(context.Background(), buyerID, CheckoutInput{
		Items: []CheckoutItem{
			{ProductID: productID, Qty: 1},
			{ProductID: productID, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected one order got %d", len(result.Orders))
	}
	if result.Orders[0].ProductPriceKobo != 450000 {
		t.Fatalf("expected merged subtotal 450000 got %d", result.Orders[0].ProductPriceKobo)
	}
	if productsRepo.products[productID].StockQty != 2 {
		t.Fatalf("expected stock 2 got %d", productsRepo.products[productID].StockQty)
	}
}
