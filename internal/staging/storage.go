package staging

import (
	"fmt"

	"wisefido-rfid/internal/ledger"
)

// StorageField 入库单上的下拉字段
type StorageField string

const (
	FieldPipeType     StorageField = "pipe_type"
	FieldManufacturer StorageField = "manufacturer"
	FieldProduct      StorageField = "product"
	FieldSupplier     StorageField = "supplier"
)

// StorageFields 显示顺序
var StorageFields = []StorageField{FieldPipeType, FieldManufacturer, FieldProduct, FieldSupplier}

// Label 显示名称，必填项带 *
func (f StorageField) Label() string {
	switch f {
	case FieldPipeType:
		return "管道类型*"
	case FieldManufacturer:
		return "生产厂家*"
	case FieldProduct:
		return "产品名称*"
	case FieldSupplier:
		return "供应商"
	}
	return string(f)
}

// Required 供应商之外都是必填
func (f StorageField) Required() bool {
	return f != FieldSupplier
}

// Option 下拉选项
type Option struct {
	ID   string
	Name string
}

// ChipInfo 后台登记的芯片信息
type ChipInfo struct {
	MaterialName string
	DiameterSize *float64
}

// StorageChip 入库单中的一行
type StorageChip struct {
	SequenceID int
	TID        string
	Selected   bool
	Info       *ChipInfo
}

// StorageItem 批量入库接口的单条数据
type StorageItem struct {
	ChipID         string  `json:"chipId"`
	PipelineTypeID string  `json:"pipelineTypeId"`
	ManufacturerID string  `json:"manufacturerId"`
	ProductID      string  `json:"productId"`
	SupplierID     *string `json:"supplierId"`
	MaterialName   string  `json:"materialName"`
	DiameterSize   float64 `json:"diameterSize"`
}

// StorageSheet 批量入库单
//
// 与主账本相互独立：打开时复制主账本的 TID，之后只接收入库扫描的结果。
// 不是并发安全的，只在主上下文中使用。
type StorageSheet struct {
	chips   []*StorageChip
	index   map[string]*StorageChip
	options map[StorageField][]Option
	chosen  map[StorageField]Option
}

// NewStorageSheet 以主账本当前记录为初始内容，全部未选中
func NewStorageSheet(seed []ledger.TagRecord) *StorageSheet {
	s := &StorageSheet{
		index:   make(map[string]*StorageChip),
		options: make(map[StorageField][]Option),
		chosen:  make(map[StorageField]Option),
	}
	for _, r := range seed {
		s.Add(r.TID)
	}
	return s
}

// Add 新 TID 追加到末尾；已存在或格式错误时返回 false
func (s *StorageSheet) Add(tid string) (StorageChip, bool) {
	if !ledger.ValidTID(tid) {
		return StorageChip{}, false
	}
	key := ledger.NormalizeTID(tid)
	if _, ok := s.index[key]; ok {
		return StorageChip{}, false
	}
	chip := &StorageChip{SequenceID: len(s.chips) + 1, TID: tid}
	s.chips = append(s.chips, chip)
	s.index[key] = chip
	return *chip, true
}

// Len 行数
func (s *StorageSheet) Len() int {
	return len(s.chips)
}

// Chips 当前所有行的快照
func (s *StorageSheet) Chips() []StorageChip {
	out := make([]StorageChip, 0, len(s.chips))
	for _, c := range s.chips {
		cp := *c
		if c.Info != nil {
			info := *c.Info
			cp.Info = &info
		}
		out = append(out, cp)
	}
	return out
}

// TIDs 按行顺序返回 TID
func (s *StorageSheet) TIDs() []string {
	out := make([]string, 0, len(s.chips))
	for _, c := range s.chips {
		out = append(out, c.TID)
	}
	return out
}

// Toggle 切换单行的选择状态
func (s *StorageSheet) Toggle(seq int) (bool, error) {
	if seq < 1 || seq > len(s.chips) {
		return false, fmt.Errorf("%w: %d", ledger.ErrUnknownRecord, seq)
	}
	c := s.chips[seq-1]
	c.Selected = !c.Selected
	return c.Selected, nil
}

// SelectAll 全选 / 全不选
func (s *StorageSheet) SelectAll(selected bool) {
	for _, c := range s.chips {
		c.Selected = selected
	}
}

// SetInfo 写入查询到的芯片信息；TID 不在单中时返回 false
func (s *StorageSheet) SetInfo(tid string, info ChipInfo) bool {
	c, ok := s.index[ledger.NormalizeTID(tid)]
	if !ok {
		return false
	}
	c.Info = &info
	return true
}

// SetOptions 替换某个字段的选项，并默认选中第一项
func (s *StorageSheet) SetOptions(f StorageField, opts []Option) {
	s.options[f] = append([]Option(nil), opts...)
	delete(s.chosen, f)
	if len(opts) > 0 {
		s.chosen[f] = opts[0]
	}
}

// Options 某个字段的选项
func (s *StorageSheet) Options(f StorageField) []Option {
	return append([]Option(nil), s.options[f]...)
}

// Choose 按序号选择，Index 从 1 开始；0 表示清空
func (s *StorageSheet) Choose(f StorageField, index int) error {
	opts := s.options[f]
	if index == 0 {
		delete(s.chosen, f)
		return nil
	}
	if index < 0 || index > len(opts) {
		return fmt.Errorf("%w: %s #%d", ErrUnknownOption, f, index)
	}
	s.chosen[f] = opts[index-1]
	return nil
}

// Chosen 某个字段当前的选择
func (s *StorageSheet) Chosen(f StorageField) (Option, bool) {
	o, ok := s.chosen[f]
	return o, ok
}

// Build 生成批量入库数据
//
// 先检查必填字段，再检查是否有选中的芯片。
func (s *StorageSheet) Build() ([]StorageItem, error) {
	for _, f := range StorageFields {
		if _, ok := s.chosen[f]; f.Required() && !ok {
			return nil, invalid(MissingStorageFields)
		}
	}

	var supplier *string
	if o, ok := s.chosen[FieldSupplier]; ok {
		id := o.ID
		supplier = &id
	}

	var items []StorageItem
	for _, c := range s.chips {
		if !c.Selected {
			continue
		}
		item := StorageItem{
			ChipID:         c.TID,
			PipelineTypeID: s.chosen[FieldPipeType].ID,
			ManufacturerID: s.chosen[FieldManufacturer].ID,
			ProductID:      s.chosen[FieldProduct].ID,
			SupplierID:     supplier,
		}
		if c.Info != nil {
			item.MaterialName = c.Info.MaterialName
			if c.Info.DiameterSize != nil {
				item.DiameterSize = *c.Info.DiameterSize
			}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, invalid(NoChipSelected)
	}
	return items, nil
}
