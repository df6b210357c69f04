package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderDraft      OrderStatus = "draft"
	OrderReleased   OrderStatus = "released"
	OrderInProgress OrderStatus = "in_progress"
	OrderComplete   OrderStatus = "complete"
	OrderCancelled  OrderStatus = "cancelled"
)

type ProductionOrder struct {
	ID                int64           `json:"id"`
	Code              string          `json:"code"`
	ProductID         int64           `json:"product_id"`
	QuantityOrdered   decimal.Decimal `json:"quantity_ordered"`
	QuantityCompleted decimal.Decimal `json:"quantity_completed"`
	Status            OrderStatus     `json:"status"`
	BOMID             *int64          `json:"bom_id"`
}

type OperationStatus string

const (
	OpPending   OperationStatus = "pending"
	OpQueued    OperationStatus = "queued"
	OpRunning   OperationStatus = "running"
	OpComplete  OperationStatus = "complete"
	OpSkipped   OperationStatus = "skipped"
	OpCancelled OperationStatus = "cancelled"
)

// Terminal статусы не участвуют ни в расписании, ни в проверке конфликтов.
func (s OperationStatus) Terminal() bool {
	return s == OpComplete || s == OpSkipped || s == OpCancelled
}

// Done — статус, который пропускает следующую операцию вперед.
func (s OperationStatus) Done() bool {
	return s == OpComplete || s == OpSkipped
}

type Operation struct {
	ID                 int64               `json:"id"`
	ProductionOrderID  int64               `json:"production_order_id"`
	RoutingOperationID *int64              `json:"routing_operation_id"`
	Sequence           int                 `json:"sequence"`
	OperationCode      string              `json:"operation_code"`
	OperationName      string              `json:"operation_name"`
	WorkCenterID       int64               `json:"work_center_id"`
	Resource           *ResourceRef        `json:"resource"`
	ScheduledStart     *time.Time          `json:"scheduled_start"`
	ScheduledEnd       *time.Time          `json:"scheduled_end"`
	Status             OperationStatus     `json:"status"`
	PlannedSetupMin    decimal.Decimal     `json:"planned_setup_minutes"`
	PlannedRunMin      decimal.Decimal     `json:"planned_run_minutes"`
	ActualStart        *time.Time          `json:"actual_start"`
	ActualEnd          *time.Time          `json:"actual_end"`
	ActualSetupMin     decimal.NullDecimal `json:"actual_setup_minutes"`
	ActualRunMin       decimal.NullDecimal `json:"actual_run_minutes"`
	QuantityCompleted  decimal.NullDecimal `json:"quantity_completed"`
	QuantityScrapped   decimal.NullDecimal `json:"quantity_scrapped"`
	ScrapReason        string              `json:"scrap_reason"`
	OperatorName       string              `json:"operator_name"`
	Notes              string              `json:"notes"`
}

// Booked — у операции есть интервал в расписании.
func (o Operation) Booked() bool {
	return o.ScheduledStart != nil && o.ScheduledEnd != nil
}

// BookingFilter описывает выборку занятости ресурса. Нулевые поля не фильтруют.
type BookingFilter struct {
	Resource ResourceRef
	// EndsAfter: scheduled_end > EndsAfter
	EndsAfter *time.Time
	// StartsBefore: scheduled_start < StartsBefore
	StartsBefore *time.Time
	ExcludeID    int64
}
