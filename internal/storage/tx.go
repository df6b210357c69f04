package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Tx — набор операций над хранилищем внутри одной транзакции (или одного
// чтения вне транзакции для View). Реализации: mysql.Storage, memory.Store.
type Tx interface {
	// LockProductionOrder и LockResource берут блокировку строки до конца
	// транзакции. Все переходы заказа и бронирования ресурса сериализуются ими.
	LockProductionOrder(ctx context.Context, id int64) error
	LockResource(ctx context.Context, ref ResourceRef) error

	GetProductionOrder(ctx context.Context, id int64) (*ProductionOrder, error)
	UpdateProductionOrder(ctx context.Context, po ProductionOrder) error

	GetResource(ctx context.Context, ref ResourceRef) (*Resource, error)

	GetOperation(ctx context.Context, id int64) (*Operation, error)
	// ListOperations возвращает операции заказа по возрастанию sequence.
	ListOperations(ctx context.Context, productionOrderID int64) ([]Operation, error)
	CreateOperation(ctx context.Context, op Operation) (int64, error)
	UpdateOperation(ctx context.Context, op Operation) error
	// DeleteOperations удаляет операции заказа вместе с их материалами.
	DeleteOperations(ctx context.Context, productionOrderID int64) (int, error)

	// FindBookings — нетерминальные операции с заполненным интервалом на
	// ресурсе, по возрастанию scheduled_start.
	FindBookings(ctx context.Context, f BookingFilter) ([]Operation, error)
	FindRunning(ctx context.Context, ref ResourceRef, excludeID int64) ([]Operation, error)

	GetActiveRouting(ctx context.Context, productID int64) (*Routing, error)
	ListRoutingOperations(ctx context.Context, routingID int64) ([]RoutingOperation, error)
	ListRoutingOperationMaterials(ctx context.Context, routingOperationID int64) ([]RoutingOperationMaterial, error)

	ListOperationMaterials(ctx context.Context, operationID int64) ([]OperationMaterial, error)
	CreateOperationMaterial(ctx context.Context, m OperationMaterial) (int64, error)
	UpdateOperationMaterial(ctx context.Context, m OperationMaterial) error

	// ListBOMLines — строки спецификации на указанных стадиях, без cost-only.
	ListBOMLines(ctx context.Context, bomID int64, stages []ConsumeStage) ([]BOMLine, error)

	GetComponent(ctx context.Context, id int64) (*Component, error)
	// AvailableQuantity: сумма (on_hand - allocated) по всем складам.
	AvailableQuantity(ctx context.Context, productID int64) (decimal.Decimal, error)
	// ConsumeInventory списывает qty с остатков (по порядку складов) и снимает
	// release из резерва. Возвращает фактически списанное количество.
	ConsumeInventory(ctx context.Context, productID int64, qty, release decimal.Decimal) (decimal.Decimal, error)

	// OpenSupply — открытые строки заказов поставщику по позиции, раньше
	// ожидаемая дата — выше, без даты — в конце, далее по id заказа.
	OpenSupply(ctx context.Context, productID int64) ([]IncomingSupply, error)
}

// Store открывает транзакции. View читает без транзакции: данные могут быть
// устаревшими и годятся только для подсказок.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}
