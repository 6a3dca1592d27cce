package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safar/marketplace-orders/internal/auth"
	"github.com/safar/marketplace-orders/internal/catalog"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/metrics"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/store"
)

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=2147483647"`
}

type ProductLookup interface {
	GetProduct(ctx context.Context, productID, token string) (*models.Product, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error)
	List(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreated) error
}

type OrderService struct {
	products  ProductLookup
	orders    OrderRepository
	publisher EventPublisher
	validate  *validator.Validate
	now       func() time.Time
}

func NewOrderService(products ProductLookup, orders OrderRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		products:  products,
		orders:    orders,
		publisher: publisher,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// CreateOrder resolves every line item in order, persists a PENDING order
// and then publishes its event. Publishing happens after commit and its
// failure never fails the call.
func (s *OrderService) CreateOrder(ctx context.Context, principal auth.Principal, req CreateOrderRequest) (*models.Order, error) {
	ctx, span := otel.Tracer("orders").Start(ctx, "orders.CreateOrder")
	defer span.End()

	order, err := s.createOrder(ctx, principal, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		metrics.OrderCreationFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	metrics.OrdersCreated.Inc()

	if err := s.publisher.PublishOrderCreated(ctx, events.FromOrder(order)); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("orderId", order.ID.String()).Msg("order created but event was not published")
		metrics.EventsPublished.WithLabelValues("failure").Inc()
	}

	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, principal auth.Principal, req CreateOrderRequest) (*models.Order, error) {
	if principal.Token == "" || principal.Subject == "" {
		return nil, &auth.Error{Kind: auth.KindMissingToken, Err: errors.New("missing bearer credential")}
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := s.products.GetProduct(ctx, line.ProductID, principal.Token)
		if err != nil {
			return nil, translateLookupError(line.ProductID, err)
		}
		if !product.Price.Valid || !product.Price.Decimal.IsPositive() {
			return nil, &InvalidPriceError{ProductID: line.ProductID}
		}
		items = append(items, models.NewOrderItem(line.ProductID, product.Name, product.Price.Decimal, line.Quantity))
	}

	order := models.NewPendingOrder(principal.Subject, items, s.now())
	if !order.TotalAmount.IsPositive() {
		return nil, ErrNonPositiveTotal
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("orderId", order.ID.String()).
		Str("buyerId", order.BuyerID).
		Str("totalAmount", order.TotalAmount.String()).
		Int("items", len(order.Items)).
		Msg("order created")
	return order, nil
}

// GetOrder returns an order to an admin, or to the buyer who placed it.
func (s *OrderService) GetOrder(ctx context.Context, principal auth.Principal, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !principal.HasRole(auth.RoleAdmin) && order.BuyerID != principal.Subject {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, principal auth.Principal) ([]models.Order, error) {
	orders, err := s.orders.ListByBuyer(ctx, principal.Subject)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", principal.Subject, err)
	}
	return orders, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	page, err := s.orders.List(ctx, cursor, limit)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			return nil, &ValidationError{Fields: map[string]string{"cursor": "is invalid"}}
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

func translateLookupError(productID string, err error) error {
	var upstream *catalog.UpstreamError
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return &ProductUnavailableError{ProductID: productID}
	case errors.Is(err, catalog.ErrUnreachable), errors.As(err, &upstream):
		return &ServiceUnavailableError{ProductID: productID, Err: err}
	default:
		return fmt.Errorf("resolve product %s: %w", productID, err)
	}
}

func failureReason(err error) string {
	var (
		authErr     *auth.Error
		validation  *ValidationError
		unavailable *ProductUnavailableError
		price       *InvalidPriceError
		upstream    *ServiceUnavailableError
	)
	switch {
	case errors.As(err, &authErr):
		return "unauthenticated"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &unavailable):
		return "product_unavailable"
	case errors.As(err, &price), errors.Is(err, ErrNonPositiveTotal):
		return "invalid_price"
	case errors.As(err, &upstream):
		return "upstream"
	default:
		return "internal"
	}
}

func (s *OrderService) validateRequest(req CreateOrderRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: map[string]string{"request": err.Error()}}
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath strips the struct name from the namespace: items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must contain at least " + fe.Param() + " element"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	default:
		return "is invalid"
	}
}
