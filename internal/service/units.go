package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"shopfloor/internal/constants"
)

func normalizeUnit(u string) string {
	u = strings.ToUpper(strings.TrimSpace(u))
	if alias, ok := constants.UnitAliases[u]; ok {
		return alias
	}
	return u
}

// SameUnit сравнивает единицы без учета регистра и алиасов.
func SameUnit(a, b string) bool {
	return normalizeUnit(a) == normalizeUnit(b)
}

// UnitsCompatible — единицы из одной базы (масса с массой и т.д.).
func UnitsCompatible(from, to string) bool {
	if SameUnit(from, to) {
		return true
	}
	f, ok1 := constants.Units[normalizeUnit(from)]
	t, ok2 := constants.Units[normalizeUnit(to)]
	return ok1 && ok2 && f.Base == t.Base
}

// ConvertUnit переводит количество. ok=false, если базы разные или единица неизвестна.
func ConvertUnit(qty decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	if SameUnit(from, to) {
		return qty, true
	}
	f, ok1 := constants.Units[normalizeUnit(from)]
	t, ok2 := constants.Units[normalizeUnit(to)]
	if !ok1 || !ok2 || f.Base != t.Base {
		return qty, false
	}
	ff := decimal.RequireFromString(f.Factor)
	tf := decimal.RequireFromString(t.Factor)
	return qty.Mul(ff).DivRound(tf, 6), true
}
