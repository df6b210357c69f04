package service

import (
	"strings"

	"shopfloor/internal/constants"
	"shopfloor/internal/storage"
)

// StageMap сопоставляет код операции со стадиями списания BOM.
// Передается в AvailabilityService явно, а не берется из глобальной таблицы.
type StageMap struct {
	byCode   map[string][]storage.ConsumeStage
	fallback []storage.ConsumeStage
}

// NewStageMap строит таблицу из встроенных значений и накладывает overrides
// из конфигурации. Пустой defaults оставляет встроенный набор.
func NewStageMap(overrides map[string][]string, defaults []string) StageMap {
	m := StageMap{byCode: make(map[string][]storage.ConsumeStage, len(constants.ConsumeStages))}
	for code, stages := range constants.ConsumeStages {
		m.byCode[strings.ToUpper(code)] = toStages(stages)
	}
	for code, stages := range overrides {
		m.byCode[strings.ToUpper(code)] = toStages(stages)
	}

	m.fallback = toStages(constants.DefaultConsumeStages)
	if len(defaults) > 0 {
		m.fallback = toStages(defaults)
	}
	return m
}

func DefaultStageMap() StageMap {
	return NewStageMap(nil, nil)
}

// Stages для неизвестного или пустого кода возвращает набор по умолчанию.
func (m StageMap) Stages(operationCode string) []storage.ConsumeStage {
	code := strings.ToUpper(strings.TrimSpace(operationCode))
	if code == "" {
		return m.fallback
	}
	if stages, ok := m.byCode[code]; ok {
		return stages
	}
	return m.fallback
}

func toStages(in []string) []storage.ConsumeStage {
	out := make([]storage.ConsumeStage, 0, len(in))
	for _, s := range in {
		out = append(out, storage.ConsumeStage(strings.ToLower(strings.TrimSpace(s))))
	}
	return out
}
