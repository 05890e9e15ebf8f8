package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/batahq/bata-backend/internal/ledger"
	"github.com/batahq/bata-backend/internal/orders"
	"github.com/batahq/bata-backend/internal/products"
	"github.com/batahq/bata-backend/pkg/config"
	"github.com/batahq/bata-backend/pkg/db/models"
	"github.com/batahq/bata-backend/pkg/enums"
	pkgerrors "github.com/batahq/bata-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutInput is the buyer's cart at the moment of purchase.
type CheckoutInput struct {
	Items []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

// CheckoutItem is one requested product line.
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// OrderSummary reports the money split for one created order.
type OrderSummary struct {
	OrderID                uuid.UUID `json:"order_id"`
	OrderNumber            string    `json:"order_number"`
	SellerID               uuid.UUID `json:"seller_id"`
	ProductPriceKobo       int64     `json:"product_price_kobo"`
	DeliveryFeeKobo        int64     `json:"delivery_fee_kobo"`
	PlatformCommissionKobo int64     `json:"platform_commission_kobo"`
	SellerEscrowKobo       int64     `json:"seller_escrow_kobo"`
	TotalAmountKobo        int64     `json:"total_amount_kobo"`
}

// CheckoutResult is the outcome of one checkout call. A multi-seller cart
// produces one order per seller.
type CheckoutResult struct {
	Orders         []OrderSummary `json:"orders"`
	GrandTotalKobo int64          `json:"grand_total_kobo"`
	ChargedAtUnix  int64          `json:"charged_at"`
}

type service struct {
	tx           txRunner
	ordersRepo   orders.Repository
	productsRepo products.Repository
	ledger       ledger.Service
	rates        *RateTable
	fees         config.FeesConfig
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	productsRepo products.Repository,
	ledgerSvc ledger.Service,
	fees config.FeesConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		tx:           tx,
		ordersRepo:   ordersRepo,
		productsRepo: productsRepo,
		ledger:       ledgerSvc,
		rates:        NewRateTable(fees),
		fees:         fees,
	}, nil
}

func (s *service) Execute(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	qtyByProduct := make(map[uuid.UUID]int, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required on every item")
		}
		if item.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least one")
		}
		qtyByProduct[item.ProductID] += item.Qty
	}

	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		productsRepo := s.productsRepo.WithTx(tx)

		loaded, err := s.loadProducts(ctx, productsRepo, qtyByProduct)
		if err != nil {
			return err
		}

		// Stable seller ordering keeps order creation deterministic for a
		// given cart, which makes multi-order failures easier to trace.
		grouped := groupBySeller(loaded, qtyByProduct)
		sellerIDs := make([]uuid.UUID, 0, len(grouped))
		for sellerID := range grouped {
			sellerIDs = append(sellerIDs, sellerID)
		}
		sort.Slice(sellerIDs, func(i, j int) bool {
			return strings.Compare(sellerIDs[i].String(), sellerIDs[j].String()) < 0
		})

		now := time.Now().UTC()
		summaries := make([]OrderSummary, 0, len(sellerIDs))
		var grandTotal int64

		for _, sellerID := range sellerIDs {
			summary, err := s.createSellerOrder(ctx, tx, ordersRepo, productsRepo, buyerID, sellerID, grouped[sellerID], now)
			if err != nil {
				return err
			}
			summaries = append(summaries, *summary)
			grandTotal += summary.TotalAmountKobo
		}

		result = &CheckoutResult{
			Orders:         summaries,
			GrandTotalKobo: grandTotal,
			ChargedAtUnix:  now.Unix(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type cartLine struct {
	product models.Product
	qty     int
}

func (s *service) loadProducts(ctx context.Context, repo products.Repository, qtyByProduct map[uuid.UUID]int) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(qtyByProduct))
	for id := range qtyByProduct {
		ids = append(ids, id)
	}
	found, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, product := range found {
		byID[product.ID] = product
	}
	for id, qty := range qtyByProduct {
		product, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product not found").
				WithDetails(map[string]any{"product_id": id, "reason": "not_found"})
		}
		if !product.IsActive {
			return nil, pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "%s is no longer available", product.Name).
				WithDetails(map[string]any{"product_id": id, "reason": "inactive"})
		}
		if product.StockQty < qty {
			return nil, pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "%s has insufficient stock", product.Name).
				WithDetails(map[string]any{
					"product_id": id,
					"reason":     "insufficient_stock",
					"available":  product.StockQty,
					"requested":  qty,
				})
		}
	}
	return byID, nil
}

func groupBySeller(byID map[uuid.UUID]models.Product, qtyByProduct map[uuid.UUID]int) map[uuid.UUID][]cartLine {
	grouped := make(map[uuid.UUID][]cartLine)
	for id, qty := range qtyByProduct {
		product := byID[id]
		grouped[product.SellerID] = append(grouped[product.SellerID], cartLine{product: product, qty: qty})
	}
	for _, lines := range grouped {
		sort.Slice(lines, func(i, j int) bool {
			return strings.Compare(lines[i].product.ID.String(), lines[j].product.ID.String()) < 0
		})
	}
	return grouped
}

func (s *service) createSellerOrder(
	ctx context.Context,
	tx *gorm.DB,
	ordersRepo orders.Repository,
	productsRepo products.Repository,
	buyerID, sellerID uuid.UUID,
	lines []cartLine,
	now time.Time,
) (*OrderSummary, error) {
	var subtotal, commission int64
	lineItems := make([]models.OrderLineItem, 0, len(lines))

	for _, line := range lines {
		rows, err := productsRepo.DecrementStock(ctx, line.product.ID, line.qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if rows == 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "%s has insufficient stock", line.product.Name).
				WithDetails(map[string]any{"product_id": line.product.ID, "reason": "insufficient_stock"})
		}

		lineSubtotal := line.product.PriceKobo * int64(line.qty)
		subtotal += lineSubtotal
		commission += s.rates.CommissionKobo(line.product.Category, lineSubtotal)
		lineItems = append(lineItems, models.OrderLineItem{
			ProductID:     line.product.ID,
			Name:          line.product.Name,
			Category:      line.product.Category,
			UnitPriceKobo: line.product.PriceKobo,
			Qty:           line.qty,
			SubtotalKobo:  lineSubtotal,
		})
	}

	escrow := subtotal - commission
	total := subtotal + s.fees.DeliveryFeeKobo
	// The platform keeps the per-item fees plus whatever the delivery fee
	// leaves after the rider's fixed payout. Settlement pays this stored
	// figure out verbatim, so escrow + riderPayout + platformCommission
	// always sums to the order total.
	platformCommission := commission + s.fees.DeliveryFeeKobo - s.fees.RiderPayoutKobo

	order := &models.Order{
		OrderNumber:            newOrderNumber(s.fees.OrderNumberPrefix, now),
		BuyerID:                buyerID,
		SellerID:               sellerID,
		ProductPriceKobo:       subtotal,
		DeliveryFeeKobo:        s.fees.DeliveryFeeKobo,
		PlatformCommissionKobo: platformCommission,
		RiderPayoutKobo:        s.fees.RiderPayoutKobo,
		SellerEscrowKobo:       escrow,
		TotalAmountKobo:        total,
		Status:                 enums.OrderStatusPending,
		IsPaid:                 true,
	}
	created, err := ordersRepo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	for i := range lineItems {
		lineItems[i].OrderID = created.ID
	}
	if err := ordersRepo.CreateLineItems(ctx, lineItems); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
	}

	orderID := created.ID
	if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      buyerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeDebit,
		AmountKobo:  total,
		Description: fmt.Sprintf("payment for order %s", created.OrderNumber),
		Reference:   fmt.Sprintf("checkout:%s:payment", orderID),
	}); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
		UserID:      sellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeEscrow,
		AmountKobo:  escrow,
		Description: fmt.Sprintf("escrow hold for order %s", created.OrderNumber),
		Reference:   fmt.Sprintf("checkout:%s:escrow", orderID),
	}); err != nil {
		return nil, err
	}

	return &OrderSummary{
		OrderID:                created.ID,
		OrderNumber:            created.OrderNumber,
		SellerID:               sellerID,
		ProductPriceKobo:       subtotal,
		DeliveryFeeKobo:        s.fees.DeliveryFeeKobo,
		PlatformCommissionKobo: platformCommission,
		SellerEscrowKobo:       escrow,
		TotalAmountKobo:        total,
	}, nil
}

// newOrderNumber builds a human-traceable order number such as
// BATA-20260901-7F3A2C1D.
func newOrderNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}
