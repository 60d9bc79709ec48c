package memory

import (
	"context"
	"sync"
	"time"

	"github.com/feirasmart/marketplace/internal/domain"
)

// Store — in-memory хранилище для локальной разработки и тестов.
// Все данные живут под одним RWMutex; WithinTx захватывает мьютекс целиком,
// поэтому единицы работы выполняются строго последовательно.
type Store struct {
	mu sync.RWMutex

	orders   map[string]domain.Order
	products map[string]domain.Product
	vendors  map[string]domain.Vendor
	markets  map[string]domain.Market
	outbox   map[string]*outboxRecord
	timeline map[string][]domain.TimelineEvent
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		vendors:  make(map[string]domain.Vendor),
		markets:  make(map[string]domain.Market),
		outbox:   make(map[string]*outboxRecord),
		timeline: make(map[string][]domain.TimelineEvent),
	}
}

// WithinTx исполняет fn под эксклюзивной блокировкой. Записи внутри fn
// копятся в оверлее и применяются к хранилищу только при успехе; ошибка
// из fn отбрасывает оверлей целиком, частичных эффектов не бывает.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Orders возвращает репозиторий заказов поверх хранилища.
func (s *Store) Orders() domain.OrderRepository { return &orderView{s: s} }

// Products возвращает репозиторий товаров поверх хранилища.
func (s *Store) Products() domain.ProductRepository { return &productView{s: s} }

// Vendors возвращает репозиторий продавцов поверх хранилища.
func (s *Store) Vendors() domain.VendorRepository { return &vendorView{s: s} }

// Markets возвращает репозиторий ярмарок поверх хранилища.
func (s *Store) Markets() domain.MarketRepository { return &marketView{s: s} }

// Outbox возвращает репозиторий transactional outbox поверх хранилища.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxView{s: s} }

// Timeline возвращает репозиторий истории заказов поверх хранилища.
func (s *Store) Timeline() domain.TimelineRepository { return &timelineView{s: s} }

var _ domain.TxRunner = (*Store)(nil)

// memTx накапливает записи единицы работы в оверлее поверх базовых карт.
// Вызывающая сторона уже держит s.mu, поэтому memTx мьютексов не берёт.
type memTx struct {
	s *Store

	orders   map[string]domain.Order
	products map[string]domain.Product
	outbox   map[string]*outboxRecord
}

func newMemTx(s *Store) *memTx {
	return &memTx{
		s:        s,
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		outbox:   make(map[string]*outboxRecord),
	}
}

func (t *memTx) Orders() domain.OrderRepository     { return &txOrderRepository{tx: t} }
func (t *memTx) Products() domain.ProductRepository { return &txProductRepository{tx: t} }
func (t *memTx) Outbox() domain.OutboxRepository    { return &txOutboxRepository{tx: t} }

func (t *memTx) commit() {
	for id, order := range t.orders {
		t.s.orders[id] = order
	}
	for id, product := range t.products {
		t.s.products[id] = product
	}
	for id, record := range t.outbox {
		t.s.outbox[id] = record
	}
}

var _ domain.Tx = (*memTx)(nil)

// outboxRecord хранит сообщение и служебные поля публикации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)
