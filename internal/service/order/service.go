package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
	"github.com/feirasmart/marketplace/internal/messaging/kafka"
	"github.com/feirasmart/marketplace/internal/metrics"
)

const (
	timelineEventOrderCreated       = "OrderCreated"
	timelineEventOrderStatusChanged = "OrderStatusChanged"
)

// Config задаёт политики ядра заказов.
type Config struct {
	// CheckStockOnCreate включает проверку остатков при создании заказа.
	// Каноничное поведение — проверять сток только при выдаче, поэтому
	// по умолчанию флаг выключен.
	CheckStockOnCreate bool
}

// CreateOrderInput — запрос на создание заказа.
type CreateOrderInput struct {
	VendorID string
	MarketID string
	Items    []ItemRequest
	Note     string
}

// Service — оркестратор ядра заказов: композиция валидатора, прайсинга,
// статусной машины и леджера поверх единицы работы хранилища.
type Service struct {
	tx       domain.TxRunner
	orders   domain.OrderRepository
	vendors  domain.VendorRepository
	markets  domain.MarketRepository
	products domain.ProductRepository
	timeline domain.TimelineRepository

	validator *Validator
	machine   StatusMachine
	ledger    Ledger

	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр оркестратора.
func NewService(
	tx domain.TxRunner,
	orders domain.OrderRepository,
	vendors domain.VendorRepository,
	markets domain.MarketRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	cfg Config,
	logger *log.Entry,
) *Service {
	svc := NewServiceWithoutMetrics(tx, orders, vendors, markets, products, timeline, cfg, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewServiceWithoutMetrics(
	tx domain.TxRunner,
	orders domain.OrderRepository,
	vendors domain.VendorRepository,
	markets domain.MarketRepository,
	products domain.ProductRepository,
	timeline domain.TimelineRepository,
	cfg Config,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		tx:        tx,
		orders:    orders,
		vendors:   vendors,
		markets:   markets,
		products:  products,
		timeline:  timeline,
		validator: NewValidator(vendors, markets, products, cfg.CheckStockOnCreate),
		logger:    logger,
	}
}

// CreateOrder валидирует запрос, считает итог и атомарно сохраняет заказ
// вместе с позициями. Заказ рождается в статусе pending; сток при создании
// не мутируется.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	items, err := s.validator.Validate(ctx, actor, in.VendorID, in.MarketID, in.Items)
	if err != nil {
		s.recordCreateRejected(err)
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": actor.ID,
			"vendor_id":   in.VendorID,
		}).Warn("order validation failed")
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].CreatedAt = now
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: actor.ID,
		VendorID:   in.VendorID,
		MarketID:   in.MarketID,
		Status:     domain.OrderStatusPending,
		Total:      CalculateTotal(items),
		Note:       in.Note,
		Items:      items,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, joinErrors(errs))
	}

	err = s.tx.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		event := kafka.NewOrderEvent(kafka.EventTypeOrderCreated,
			order.ID, order.CustomerID, order.VendorID, string(order.Status),
			map[string]any{
				"market_id":   order.MarketID,
				"total":       order.Total.StringFixed(2),
				"items_count": len(order.Items),
			})
		return s.enqueueEvent(ctx, tx, kafka.AggregateOrder, order.ID, event.EventType, event)
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return domain.Order{}, err
	}

	s.appendTimeline(ctx, order.ID, timelineEventOrderCreated, string(order.Status), now)
	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.Total.StringFixed(2),
	}).Info("order created")

	return order, nil
}

// UpdateStatus переводит заказ в новый статус. Чтение заказа, проверка
// владения, статусная машина, складской леджер и запись затронутых товаров
// выполняются внутри одной единицы работы: либо фиксируется всё, либо ничего.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStatusDuration(time.Since(start))
		}
	}()

	var (
		result     domain.Order
		prevStatus domain.OrderStatus
		applied    bool
	)

	// Проверка владения выполняется до единицы работы: продавец заказа
	// неизменяем, а WithinTx в памяти держит эксклюзивную блокировку
	// хранилища, под которой обычные view-чтения недоступны.
	err := s.authorizeTransition(ctx, actor, orderID)
	if err == nil {
		err = s.tx.WithinTx(ctx, func(tx domain.Tx) error {
			current, err := tx.Orders().Get(ctx, orderID)
			if err != nil {
				return err
			}

			effect, err := s.machine.Plan(current.Status, newStatus)
			if err != nil {
				return err
			}
			if effect == EffectNoop {
				result = current
				return nil
			}

			var touched map[string]*domain.Product
			if effect == EffectReserve || effect == EffectRelease {
				touched, err = s.loadProducts(ctx, tx, current.Items)
				if err != nil {
					return err
				}
				if effect == EffectReserve {
					err = s.ledger.ReserveOnDeliver(touched, current.Items)
				} else {
					err = s.ledger.ReleaseOnCancelAfterDelivery(touched, current.Items)
				}
				if err != nil {
					return err
				}
			}

			prevStatus = current.Status
			current.Status = newStatus
			current.UpdatedAt = time.Now().UTC()

			if err := tx.Orders().Save(ctx, current); err != nil {
				return err
			}
			current.Version++

			for _, product := range touched {
				product.UpdatedAt = current.UpdatedAt
				if err := tx.Products().Save(ctx, *product); err != nil {
					return err
				}
			}

			if err := s.enqueueStatusEvents(ctx, tx, current, prevStatus); err != nil {
				return err
			}
			if err := s.enqueueStockEvents(ctx, tx, touched); err != nil {
				return err
			}

			result = current
			applied = true
			return nil
		})
	}
	if err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.RecordStockConflict()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   orderID,
			"new_status": newStatus,
		}).Warn("status transition rejected")
		return domain.Order{}, err
	}

	if applied {
		s.appendTimeline(ctx, result.ID, timelineEventOrderStatusChanged, string(result.Status), result.UpdatedAt)
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(prevStatus), string(result.Status))
		}
		s.logger.WithFields(log.Fields{
			"order_id": result.ID,
			"from":     prevStatus,
			"to":       result.Status,
		}).Info("order status changed")
	}

	return result, nil
}

// ListOrders возвращает заказы текущего пользователя: покупатель видит свои,
// продавец — входящие заказы своих прилавков. Чтение без побочных эффектов.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	switch actor.Role {
	case domain.RoleCustomer:
		return s.orders.ListByCustomer(ctx, actor.ID)
	case domain.RoleVendor:
		return s.orders.ListByVendorOwner(ctx, actor.ID)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, actor.Role)
	}
}

// GetOrder возвращает заказ с проверкой владения: покупателю — свой заказ,
// продавцу — заказ его прилавка.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	switch actor.Role {
	case domain.RoleCustomer:
		if order.CustomerID != actor.ID {
			return domain.Order{}, domain.ErrNotOrderOwner
		}
	case domain.RoleVendor:
		vendor, err := s.vendors.Get(ctx, order.VendorID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("load vendor: %w", err)
		}
		if vendor.UserID != actor.ID {
			return domain.Order{}, domain.ErrNotOrderOwner
		}
	default:
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrUnknownRole, actor.Role)
	}

	return order, nil
}

// OrderTimeline возвращает события жизненного цикла заказа.
func (s *Service) OrderTimeline(ctx context.Context, orderID string) []domain.TimelineEvent {
	if s.timeline == nil {
		return nil
	}
	events, err := s.timeline.List(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to list timeline events")
		return nil
	}
	return events
}

// loadProducts читает товары всех позиций внутри текущей единицы работы.
// Хранилище удерживает прочитанные строки до конца транзакции, поэтому
// конкурирующие выдачи по одному товару сериализуются.
func (s *Service) loadProducts(ctx context.Context, tx domain.Tx, items []domain.OrderItem) (map[string]*domain.Product, error) {
	products := make(map[string]*domain.Product, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := tx.Products().Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		products[product.ID] = &product
	}
	return products, nil
}

// authorizeTransition проверяет, что переход запрашивает продавец заказа.
// Продавец заказа неизменяем, поэтому проверка не требует единицы работы.
func (s *Service) authorizeTransition(ctx context.Context, actor domain.Actor, orderID string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}

	vendor, err := s.vendors.Get(ctx, order.VendorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrVendorNotFound, order.VendorID)
		}
		return fmt.Errorf("load vendor: %w", err)
	}

	return s.machine.Authorize(actor, vendor)
}

func (s *Service) enqueueStatusEvents(ctx context.Context, tx domain.Tx, order domain.Order, prev domain.OrderStatus) error {
	changed := kafka.NewOrderEvent(kafka.EventTypeOrderStatusChanged,
		order.ID, order.CustomerID, order.VendorID, string(order.Status),
		map[string]any{
			"from": string(prev),
			"to":   string(order.Status),
		})
	if err := s.enqueueEvent(ctx, tx, kafka.AggregateOrder, order.ID, changed.EventType, changed); err != nil {
		return err
	}

	switch order.Status {
	case domain.OrderStatusDelivered:
		delivered := kafka.NewOrderEvent(kafka.EventTypeOrderDelivered,
			order.ID, order.CustomerID, order.VendorID, string(order.Status),
			map[string]any{
				"total": order.Total.StringFixed(2),
			})
		return s.enqueueEvent(ctx, tx, kafka.AggregateOrder, order.ID, delivered.EventType, delivered)
	case domain.OrderStatusCanceled:
		canceled := kafka.NewOrderEvent(kafka.EventTypeOrderCanceled,
			order.ID, order.CustomerID, order.VendorID, string(order.Status),
			map[string]any{
				"was_delivered":  prev == domain.OrderStatusDelivered,
				"stock_restored": prev == domain.OrderStatusDelivered,
			})
		return s.enqueueEvent(ctx, tx, kafka.AggregateOrder, order.ID, canceled.EventType, canceled)
	}
	return nil
}

// enqueueStockEvents публикует изменения остатков по затронутым товарам.
// Распроданный товар дополнительно помечается событием product.sold_out.
func (s *Service) enqueueStockEvents(ctx context.Context, tx domain.Tx, touched map[string]*domain.Product) error {
	for _, product := range touched {
		changed := kafka.NewProductEvent(kafka.EventTypeProductStockChanged,
			product.ID, product.VendorID, product.Stock, product.Available)
		if err := s.enqueueEvent(ctx, tx, kafka.AggregateProduct, product.ID, changed.EventType, changed); err != nil {
			return err
		}

		if product.Stock == 0 && !product.Available {
			soldOut := kafka.NewProductEvent(kafka.EventTypeProductSoldOut,
				product.ID, product.VendorID, product.Stock, product.Available)
			if err := s.enqueueEvent(ctx, tx, kafka.AggregateProduct, product.ID, soldOut.EventType, soldOut); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, tx domain.Tx, aggregateType, aggregateID string, eventType kafka.EventType, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue event %s: %w", eventType, err)
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
	return nil
}

func (s *Service) appendTimeline(ctx context.Context, orderID, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Service) recordCreateRejected(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case domain.IsForbidden(err):
		s.metrics.RecordCreateRejected("forbidden")
	case domain.IsNotFound(err):
		s.metrics.RecordCreateRejected("not_found")
	case domain.IsConflict(err):
		s.metrics.RecordCreateRejected("conflict")
	default:
		s.metrics.RecordCreateRejected("invalid_input")
	}
}

func joinErrors(errs []error) string {
	builder := strings.Builder{}
	for i, err := range errs {
		builder.WriteString(err.Error())
		if i < len(errs)-1 {
			builder.WriteString("; ")
		}
	}
	return builder.String()
}
