package excel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/staging"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName  = "RFID标签"
	timeLayout = "2006-01-02 15:04:05"

	colID       = 1
	colTID      = 2
	colInbound  = 3
	colOutbound = 4
	colAddress  = 5
)

// Header 盘点表固定表头
var Header = []string{"编号", "TID", "入场时间", "出场时间", "项目地址", "备注"}

// ExportResult 一次导出的结果
type ExportResult struct {
	Path    string
	Added   int
	Updated int
}

// Exporter 把账本合并进按日期命名的盘点表（跨次运行累加）
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// NewExporter 创建导出器
func NewExporter(dir string, logger *zap.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// PathFor 当天的文件路径，如 RFID_20240501.xlsx
func (e *Exporter) PathFor(day time.Time) string {
	return filepath.Join(e.dir, fmt.Sprintf("RFID_%s.xlsx", day.Format("20060102")))
}

// Export 以 TID 为键合并：已存在的行只更新时间列，新 TID 追加并分配新编号
func (e *Exporter) Export(mode policy.Mode, records []ledger.TagRecord, aux policy.AuxiliaryFields, now time.Time) (*ExportResult, error) {
	column := policy.ExportColumnFor(mode)
	if len(records) == 0 {
		return nil, &staging.ValidationError{Reason: staging.EmptyLedger}
	}

	path := e.PathFor(now)
	sheet, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	defer sheet.file.Close()

	result := &ExportResult{Path: path}
	for _, r := range records {
		key := ledger.NormalizeTID(r.TID)
		if row, ok := sheet.rowByTID[key]; ok {
			if err := sheet.writeTimes(row, column, r, aux); err != nil {
				return nil, err
			}
			result.Updated++
			continue
		}

		sheet.maxID++
		sheet.lastRow++
		values := []interface{}{sheet.maxID, r.TID, "", "", "", ""}
		if column == policy.ExportInbound {
			values[colInbound-1] = r.FirstSeenAt.Format(timeLayout)
		} else {
			values[colOutbound-1] = r.LastSeenAt.Format(timeLayout)
			values[colAddress-1] = aux.Address
		}
		cell, _ := excelize.CoordinatesToCellName(1, sheet.lastRow)
		if err := sheet.file.SetSheetRow(sheet.name, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to append row %d: %w", sheet.lastRow, err)
		}
		sheet.rowByTID[key] = sheet.lastRow
		result.Added++
	}

	if err := sheet.file.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", path, err)
	}

	e.logger.Info("Exported ledger to spreadsheet",
		zap.String("path", path),
		zap.String("mode", string(mode)),
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

type inventorySheet struct {
	file     *excelize.File
	name     string
	rowByTID map[string]int
	maxID    int
	lastRow  int
}

func (s *inventorySheet) writeTimes(row int, column policy.ExportColumn, r ledger.TagRecord, aux policy.AuxiliaryFields) error {
	col, value := colInbound, r.FirstSeenAt.Format(timeLayout)
	if column == policy.ExportOutbound {
		col, value = colOutbound, r.LastSeenAt.Format(timeLayout)
	}
	if err := setCell(s.file, s.name, col, row, value); err != nil {
		return err
	}
	if column == policy.ExportOutbound && aux.Address != "" {
		return setCell(s.file, s.name, colAddress, row, aux.Address)
	}
	return nil
}

// openOrCreate 读取已有盘点表并建立 TID -> 行号索引；不存在则新建带表头的文件
func openOrCreate(path string) (*inventorySheet, error) {
	if _, err := os.Stat(path); err == nil {
		return openExisting(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return createNew(path)
}

func openExisting(path string) (*inventorySheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	name := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(name)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	s := &inventorySheet{
		file:     f,
		name:     name,
		rowByTID: make(map[string]int),
		lastRow:  len(rows),
	}
	if s.lastRow == 0 {
		// 空表补表头
		if err := writeHeader(f, name); err != nil {
			f.Close()
			return nil, err
		}
		s.lastRow = 1
	}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < colTID {
			continue
		}
		tid := ledger.NormalizeTID(row[colTID-1])
		if tid == "" {
			continue
		}
		s.rowByTID[tid] = i + 1
		if id, err := strconv.Atoi(strings.TrimSpace(row[colID-1])); err == nil && id > s.maxID {
			s.maxID = id
		}
	}
	return s, nil
}

func createNew(path string) (*inventorySheet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeHeader(f, sheetName); err != nil {
		f.Close()
		return nil, err
	}
	return &inventorySheet{
		file:     f,
		name:     sheetName,
		rowByTID: make(map[string]int),
		lastRow:  1,
	}, nil
}

func writeHeader(f *excelize.File, sheet string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range Header {
		if err := setCell(f, sheet, col+1, 1, header); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	columnWidths := []float64{8, 30, 20, 20, 30, 20}
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

// setCell 设置单元格值
func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
