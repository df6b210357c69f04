package generate_excel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"shopfloor/internal/storage"
)

type ScheduleStorage interface {
	Resource(ctx context.Context, ref storage.ResourceRef) (*storage.Resource, error)
	ResourceSchedule(ctx context.Context, ref storage.ResourceRef, from, to *time.Time) ([]storage.Operation, error)
}

type GenerateExcelService struct {
	schedule ScheduleStorage
}

func NewGenerateService(schedule ScheduleStorage) *GenerateExcelService {
	return &GenerateExcelService{schedule: schedule}
}

var scheduleHeaders = []string{
	"Операция", "Заказ", "Шаг", "Код", "Наименование", "Статус",
	"Начало", "Окончание", "Минут", "Оператор",
}

const timeFormat = "2006-01-02 15:04"

// GenerateScheduleExcel выгружает брони ресурса в xlsx, одна строка на операцию.
func (g *GenerateExcelService) GenerateScheduleExcel(ctx context.Context, ref storage.ResourceRef, from, to *time.Time) ([]byte, error) {
	res, err := g.schedule.Resource(ctx, ref)
	if err != nil {
		return nil, err
	}
	bookings, err := g.schedule.ResourceSchedule(ctx, ref, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(res)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, name := range scheduleHeaders {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(scheduleHeaders), 1), headerStyle)

	for i, b := range bookings {
		row := i + 2
		f.SetCellValue(sheet, cellName(1, row), b.ID)
		f.SetCellValue(sheet, cellName(2, row), b.ProductionOrderID)
		f.SetCellValue(sheet, cellName(3, row), b.Sequence)
		f.SetCellValue(sheet, cellName(4, row), b.OperationCode)
		f.SetCellValue(sheet, cellName(5, row), b.OperationName)
		f.SetCellValue(sheet, cellName(6, row), string(b.Status))
		if b.Booked() {
			f.SetCellValue(sheet, cellName(7, row), b.ScheduledStart.Format(timeFormat))
			f.SetCellValue(sheet, cellName(8, row), b.ScheduledEnd.Format(timeFormat))
			minutes := b.ScheduledEnd.Sub(*b.ScheduledStart).Minutes()
			f.SetCellValue(sheet, cellName(9, row), minutes)
		}
		f.SetCellValue(sheet, cellName(10, row), b.OperatorName)
	}

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheet, "A", "D", 12)
	f.SetColWidth(sheet, "E", "E", 30)
	f.SetColWidth(sheet, "F", "J", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

var invalidSheetChars = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// Имя листа ограничено 31 символом и не допускает часть знаков.
func sheetName(res *storage.Resource) string {
	name := res.Code
	if name == "" {
		name = res.Ref.String()
	}
	name = invalidSheetChars.Replace(name)
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
