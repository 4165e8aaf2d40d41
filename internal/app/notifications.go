package app

import (
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"
)

// Notification 推送给界面的通知（封闭集合）
type Notification interface {
	notification()
}

// View 界面层，Notify 只在主上下文中被调用
type View interface {
	Notify(Notification)
}

// LedgerChanged 账本变更
type LedgerChanged struct {
	Event ledger.Event
}

// ModeChanged 模式切换，所有字段已清空
type ModeChanged struct {
	Mode    policy.Mode
	Enabled policy.FieldSet
}

// FieldsChanged 模式字段的值变化
type FieldsChanged struct {
	Fields policy.AuxiliaryFields
}

// CatalogChanged 管道参数列表更新
type CatalogChanged struct {
	Categories []policy.Category
	FromCache  bool
}

// ReaderStatus 读写器状态
type ReaderStatus struct {
	Connected  bool
	Scanning   bool
	Descriptor reader.Descriptor
}

// SessionChanged 登录状态变化
type SessionChanged struct {
	Username string
	LoggedIn bool
}

// Status 普通日志行
type Status struct {
	Text string
}

// Alert 需要用户注意的提示（对应弹窗）
type Alert struct {
	Title string
	Text  string
}

// RecordsListed 记录列表
type RecordsListed struct {
	Mode    policy.Mode
	Records []ledger.TagRecord
	Totals  ledger.Totals
}

// PortsListed 串口列表
type PortsListed struct {
	Ports []string
}

// HistoryListed 上传历史
type HistoryListed struct {
	Batches []*repository.UploadBatch
}

// StorageField 入库单下拉字段的当前状态
type StorageField struct {
	Field   staging.StorageField
	Options []staging.Option
	Chosen  *staging.Option
}

// StorageListed 入库单快照；Open 为 false 表示已关闭
type StorageListed struct {
	Open     bool
	Scanning bool
	Chips    []staging.StorageChip
	Fields   []StorageField
}

// StorageChipAdded 入库扫描发现新芯片
type StorageChipAdded struct {
	Chip staging.StorageChip
}

func (LedgerChanged) notification()    {}
func (ModeChanged) notification()      {}
func (FieldsChanged) notification()    {}
func (CatalogChanged) notification()   {}
func (ReaderStatus) notification()     {}
func (SessionChanged) notification()   {}
func (Status) notification()           {}
func (Alert) notification()            {}
func (RecordsListed) notification()    {}
func (PortsListed) notification()      {}
func (HistoryListed) notification()    {}
func (StorageListed) notification()    {}
func (StorageChipAdded) notification() {}
