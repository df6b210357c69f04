package storage

import (
	"fmt"
	"strings"
)

type ResourceKind string

const (
	ResourceMachine ResourceKind = "machine"
	ResourcePrinter ResourceKind = "printer"
)

// ResourceRef ссылается на станок или принтер. Два справочника живут в разных
// таблицах, поэтому id без вида ресурса неоднозначен.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func Machine(id int64) ResourceRef { return ResourceRef{Kind: ResourceMachine, ID: id} }
func Printer(id int64) ResourceRef { return ResourceRef{Kind: ResourcePrinter, ID: id} }

// RefFromRequest переводит пару (resource_id, is_printer) из запроса в ссылку.
func RefFromRequest(id int64, isPrinter bool) ResourceRef {
	if isPrinter {
		return Printer(id)
	}
	return Machine(id)
}

func (r ResourceRef) IsZero() bool { return r.ID == 0 && r.Kind == "" }

func (r ResourceRef) Valid() bool {
	return r.ID > 0 && (r.Kind == ResourceMachine || r.Kind == ResourcePrinter)
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceMachine:
		return ResourceMachine, nil
	case ResourcePrinter:
		return ResourcePrinter, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceBusy        ResourceStatus = "busy"
	ResourceMaintenance ResourceStatus = "maintenance"
	ResourceOffline     ResourceStatus = "offline"
)

type PhysicalClass string

const (
	ClassOpen     PhysicalClass = "open"
	ClassEnclosed PhysicalClass = "enclosed"
)

type Resource struct {
	Ref           ResourceRef    `json:"ref"`
	WorkCenterID  int64          `json:"work_center_id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Status        ResourceStatus `json:"status"`
	IsActive      bool           `json:"is_active"`
	PhysicalClass PhysicalClass  `json:"physical_class"`
}

// CanRun — ресурс включен и свободен по справочнику.
func (r Resource) CanRun() bool {
	return r.IsActive && r.Status == ResourceAvailable
}
