package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shopfloor/internal/storage"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindSequenceViolation Kind = "sequence_violation"
	KindResourceConflict  Kind = "resource_conflict"
	KindQuantityViolation Kind = "quantity_violation"
	KindValidation        Kind = "validation"
)

// Error — ожидаемый отказ бизнес-правила. Возвращается вызывающему как есть,
// повторять запрос автоматически нельзя.
type Error struct {
	Kind    Kind
	Message string

	OperationID         int64
	BlockingOperationID int64
	CurrentStatus       string
	RequiredStatus      string

	Maximum   *decimal.Decimal
	Requested *decimal.Decimal

	Conflicts []storage.Operation
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf возвращает вид бизнес-ошибки или "" для неожиданных сбоев.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// notFoundOr переводит storage.ErrNotFound в бизнес-ошибку, остальное пробрасывает.
func notFoundOr(err error, op string, format string, args ...any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound(format, args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}
