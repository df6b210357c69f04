package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type Routing struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
}

type RoutingOperation struct {
	ID               int64           `json:"id"`
	RoutingID        int64           `json:"routing_id"`
	WorkCenterID     int64           `json:"work_center_id"`
	Sequence         int             `json:"sequence"`
	OperationCode    string          `json:"operation_code"`
	OperationName    string          `json:"operation_name"`
	SetupTimeMinutes decimal.Decimal `json:"setup_time_minutes"`
	RunTimeMinutes   decimal.Decimal `json:"run_time_minutes"`
	WaitTimeMinutes  decimal.Decimal `json:"wait_time_minutes"`
	MoveTimeMinutes  decimal.Decimal `json:"move_time_minutes"`
}

type QuantityPer string

const (
	PerUnit  QuantityPer = "unit"
	PerBatch QuantityPer = "batch"
	PerOrder QuantityPer = "order"
)

type RoutingOperationMaterial struct {
	ID                 int64           `json:"id"`
	RoutingOperationID int64           `json:"routing_operation_id"`
	ComponentID        int64           `json:"component_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	QuantityPer        QuantityPer     `json:"quantity_per"`
	Unit               string          `json:"unit"`
	ScrapFactor        decimal.Decimal `json:"scrap_factor"`
	IsCostOnly         bool            `json:"is_cost_only"`
	IsOptional         bool            `json:"is_optional"`
}

var hundred = decimal.NewFromInt(100)

// RequiredQuantity — потребность на заказ с учетом процента отхода.
// Для batch и order количество не умножается на размер заказа.
func (m RoutingOperationMaterial) RequiredQuantity(orderQty decimal.Decimal) decimal.Decimal {
	gross := m.Quantity
	if m.QuantityPer == PerUnit || m.QuantityPer == "" {
		gross = gross.Mul(orderQty)
	}
	return gross.Mul(ScrapMultiplier(m.ScrapFactor))
}

// ScrapMultiplier: 1 + scrap/100.
func ScrapMultiplier(scrapFactor decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(scrapFactor.Div(hundred))
}

type MaterialStatus string

const (
	MaterialPending   MaterialStatus = "pending"
	MaterialAllocated MaterialStatus = "allocated"
	MaterialConsumed  MaterialStatus = "consumed"
	MaterialReturned  MaterialStatus = "returned"
)

type OperationMaterial struct {
	ID                         int64           `json:"id"`
	OperationID                int64           `json:"production_order_operation_id"`
	ComponentID                int64           `json:"component_id"`
	RoutingOperationMaterialID *int64          `json:"routing_operation_material_id"`
	QuantityRequired           decimal.Decimal `json:"quantity_required"`
	QuantityAllocated          decimal.Decimal `json:"quantity_allocated"`
	QuantityConsumed           decimal.Decimal `json:"quantity_consumed"`
	Unit                       string          `json:"unit"`
	Status                     MaterialStatus  `json:"status"`
}

type ConsumeStage string

const (
	StageProduction ConsumeStage = "production"
	StageAssembly   ConsumeStage = "assembly"
	StageFinishing  ConsumeStage = "finishing"
	StageShipping   ConsumeStage = "shipping"
	StageAny        ConsumeStage = "any"
)

type BOMLine struct {
	ID           int64           `json:"id"`
	BOMID        int64           `json:"bom_id"`
	ComponentID  int64           `json:"component_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	ConsumeStage ConsumeStage    `json:"consume_stage"`
	ScrapFactor  decimal.Decimal `json:"scrap_factor"`
	IsCostOnly   bool            `json:"is_cost_only"`
}

// Component — номенклатура, Unit — единица хранения на складе.
type Component struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

type InventoryRow struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	OnHand     decimal.Decimal `json:"on_hand_quantity"`
	Allocated  decimal.Decimal `json:"allocated_quantity"`
}

type PurchaseOrderStatus string

const (
	PurchaseDraft     PurchaseOrderStatus = "draft"
	PurchaseOrdered   PurchaseOrderStatus = "ordered"
	PurchaseShipped   PurchaseOrderStatus = "shipped"
	PurchaseReceived  PurchaseOrderStatus = "received"
	PurchaseClosed    PurchaseOrderStatus = "closed"
	PurchaseCancelled PurchaseOrderStatus = "cancelled"
)

// OpenPurchaseStatuses — заказы поставщику, по которым еще ждем приход.
var OpenPurchaseStatuses = []PurchaseOrderStatus{PurchaseDraft, PurchaseOrdered, PurchaseShipped}

func (s PurchaseOrderStatus) Open() bool {
	for _, st := range OpenPurchaseStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type PurchaseOrder struct {
	ID           int64               `json:"id"`
	Code         string              `json:"code"`
	Status       PurchaseOrderStatus `json:"status"`
	ExpectedDate *time.Time          `json:"expected_date"`
}

type PurchaseOrderLine struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	ProductID        int64           `json:"product_id"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
}

// IncomingSupply — открытая строка заказа поставщику с ненулевым остатком.
type IncomingSupply struct {
	PurchaseOrderID   int64           `json:"purchase_order_id"`
	PurchaseOrderCode string          `json:"purchase_order_code"`
	Quantity          decimal.Decimal `json:"quantity"`
	ExpectedDate      *time.Time      `json:"expected_date"`
}

// SupplyLess: раньше ожидаемая дата — выше, без даты — в конце, затем меньший id заказа.
func SupplyLess(a, b IncomingSupply) bool {
	switch {
	case a.ExpectedDate != nil && b.ExpectedDate == nil:
		return true
	case a.ExpectedDate == nil && b.ExpectedDate != nil:
		return false
	case a.ExpectedDate != nil && !a.ExpectedDate.Equal(*b.ExpectedDate):
		return a.ExpectedDate.Before(*b.ExpectedDate)
	}
	return a.PurchaseOrderID < b.PurchaseOrderID
}

// PlanConsumption раскладывает списание qty по строкам остатков в их порядке и
// снимает release из резерва. Возвращает измененные строки и сколько списано.
// Больше, чем есть на складе, не списывается.
func PlanConsumption(rows []InventoryRow, qty, release decimal.Decimal) ([]InventoryRow, decimal.Decimal) {
	deducted := decimal.Zero
	changed := make([]InventoryRow, 0, len(rows))
	for _, row := range rows {
		dirty := false
		if release.IsPositive() && row.Allocated.IsPositive() {
			r := decimal.Min(release, row.Allocated)
			row.Allocated = row.Allocated.Sub(r)
			release = release.Sub(r)
			dirty = true
		}
		if qty.IsPositive() && row.OnHand.IsPositive() {
			d := decimal.Min(qty, row.OnHand)
			row.OnHand = row.OnHand.Sub(d)
			qty = qty.Sub(d)
			deducted = deducted.Add(d)
			dirty = true
		}
		if dirty {
			changed = append(changed, row)
		}
	}
	return changed, deducted
}
