// Package memory — хранилище в памяти с транзакциями: InTx работает на копии
// состояния и подменяет ее целиком только при успехе. Опубликованные карты
// после этого не меняются (Put* тоже копируют карту), поэтому View читает их
// без копирования. Используется для storage_driver: memory и в тестах сервисов.
package memory

import (
	"context"
	"maps"
	"sync"

	"shopfloor/internal/storage"
)

type state struct {
	orders           map[int64]storage.ProductionOrder
	operations       map[int64]storage.Operation
	resources        map[storage.ResourceRef]storage.Resource
	routings         map[int64]storage.Routing
	routingOps       map[int64]storage.RoutingOperation
	routingMaterials map[int64]storage.RoutingOperationMaterial
	materials        map[int64]storage.OperationMaterial
	bomLines         map[int64]storage.BOMLine
	components       map[int64]storage.Component
	inventory        map[int64]storage.InventoryRow
	purchaseOrders   map[int64]storage.PurchaseOrder
	purchaseLines    map[int64]storage.PurchaseOrderLine
	lastID           int64
}

func newState() state {
	return state{
		orders:           map[int64]storage.ProductionOrder{},
		operations:       map[int64]storage.Operation{},
		resources:        map[storage.ResourceRef]storage.Resource{},
		routings:         map[int64]storage.Routing{},
		routingOps:       map[int64]storage.RoutingOperation{},
		routingMaterials: map[int64]storage.RoutingOperationMaterial{},
		materials:        map[int64]storage.OperationMaterial{},
		bomLines:         map[int64]storage.BOMLine{},
		components:       map[int64]storage.Component{},
		inventory:        map[int64]storage.InventoryRow{},
		purchaseOrders:   map[int64]storage.PurchaseOrder{},
		purchaseLines:    map[int64]storage.PurchaseOrderLine{},
	}
}

// clone копирует карты. Значения — структуры, указатели внутри них никогда не
// меняются на месте, поэтому поверхностной копии достаточно.
func (s state) clone() state {
	return state{
		orders:           maps.Clone(s.orders),
		operations:       maps.Clone(s.operations),
		resources:        maps.Clone(s.resources),
		routings:         maps.Clone(s.routings),
		routingOps:       maps.Clone(s.routingOps),
		routingMaterials: maps.Clone(s.routingMaterials),
		materials:        maps.Clone(s.materials),
		bomLines:         maps.Clone(s.bomLines),
		components:       maps.Clone(s.components),
		inventory:        maps.Clone(s.inventory),
		purchaseOrders:   maps.Clone(s.purchaseOrders),
		purchaseLines:    maps.Clone(s.purchaseLines),
		lastID:           s.lastID,
	}
}

func (s *state) nextID(id int64) int64 {
	if id == 0 {
		s.lastID++
		return s.lastID
	}
	if id > s.lastID {
		s.lastID = id
	}
	return id
}

type Store struct {
	mu    sync.RWMutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

// InTx выполняет fn эксклюзивно. Ошибка fn отбрасывает все изменения.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View читает снимок состояния. Попытка записи возвращает ошибку.
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.state
	s.mu.RUnlock()

	return fn(&memTx{state: snapshot, readOnly: true})
}

// put заменяет карту копией с новой записью: снимки, выданные View, остаются
// неизменными.
func put[K comparable, V any](m *map[K]V, k K, v V) {
	next := maps.Clone(*m)
	next[k] = v
	*m = next
}

// Методы Put* заполняют справочники и возвращают id (присваивается, если 0).

func (s *Store) PutOrder(po storage.ProductionOrder) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	po.ID = s.state.nextID(po.ID)
	put(&s.state.orders, po.ID, po)
	return po.ID
}

func (s *Store) PutResource(r storage.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(&s.state.resources, r.Ref, r)
}

func (s *Store) PutOperation(op storage.Operation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	op.ID = s.state.nextID(op.ID)
	put(&s.state.operations, op.ID, op)
	return op.ID
}

func (s *Store) PutOperationMaterial(m storage.OperationMaterial) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.state.nextID(m.ID)
	put(&s.state.materials, m.ID, m)
	return m.ID
}

func (s *Store) PutRouting(r storage.Routing) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.state.nextID(r.ID)
	put(&s.state.routings, r.ID, r)
	return r.ID
}

func (s *Store) PutRoutingOperation(ro storage.RoutingOperation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ro.ID = s.state.nextID(ro.ID)
	put(&s.state.routingOps, ro.ID, ro)
	return ro.ID
}

func (s *Store) PutRoutingMaterial(m storage.RoutingOperationMaterial) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.state.nextID(m.ID)
	put(&s.state.routingMaterials, m.ID, m)
	return m.ID
}

func (s *Store) PutBOMLine(l storage.BOMLine) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.state.nextID(l.ID)
	put(&s.state.bomLines, l.ID, l)
	return l.ID
}

func (s *Store) PutComponent(c storage.Component) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.state.nextID(c.ID)
	put(&s.state.components, c.ID, c)
	return c.ID
}

func (s *Store) PutInventory(row storage.InventoryRow) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.ID = s.state.nextID(row.ID)
	put(&s.state.inventory, row.ID, row)
	return row.ID
}

func (s *Store) PutPurchaseOrder(po storage.PurchaseOrder) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	po.ID = s.state.nextID(po.ID)
	put(&s.state.purchaseOrders, po.ID, po)
	return po.ID
}

func (s *Store) PutPurchaseLine(l storage.PurchaseOrderLine) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.state.nextID(l.ID)
	put(&s.state.purchaseLines, l.ID, l)
	return l.ID
}

// Inventory возвращает строки остатков позиции (для проверок в тестах).
func (s *Store) Inventory(productID int64) []storage.InventoryRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inventoryRows(s.state, productID)
}
