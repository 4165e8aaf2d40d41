package app

import (
	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"
)

// Message 主上下文收件箱中的消息（封闭集合）
//
// 用户命令、读写器事件以及后台任务结果都以 Message 进入收件箱，
// 只有 Run 所在的 goroutine 消费它们。
type Message interface {
	appMessage()
}

// ---- 用户命令 ----

// ConnectReader 连接读写器
type ConnectReader struct {
	Descriptor reader.Descriptor
}

// DisconnectReader 断开读写器（扫描中会先停止扫描）
type DisconnectReader struct{}

// ListPorts 刷新串口列表
type ListPorts struct{}

// StartScan 按当前模式开始扫描
type StartScan struct{}

// StopScan 停止扫描
type StopScan struct{}

// SetMode 切换盘点模式
type SetMode struct {
	Mode policy.Mode
}

// ChooseCategory 选择管道参数，Index 从 1 开始
type ChooseCategory struct {
	Index int
}

// SetCoordinates 手动输入经纬度
type SetCoordinates struct {
	Longitude float64
	Latitude  float64
}

// SetAddress 输入项目地址
type SetAddress struct {
	Address string
}

// Locate 地址转经纬度
type Locate struct {
	Address string
}

// Select 设置单条记录的选择状态
type Select struct {
	SequenceID int
	Selected   bool
}

// Toggle 切换单条记录的选择状态
type Toggle struct {
	SequenceID int
}

// SelectAll 全选 / 全不选
type SelectAll struct {
	Selected bool
}

// ClearLedger 清空账本，Confirmed 为 false 时不执行
type ClearLedger struct {
	Confirmed bool
}

// ListRecords 输出当前记录
type ListRecords struct{}

// Export 导出到当日 Excel
type Export struct{}

// Login 账号登录
type Login struct {
	Username string
	Password string
}

// Logout 退出登录
type Logout struct{}

// RefreshCatalog 刷新管道参数，Force 时跳过缓存
type RefreshCatalog struct {
	Force bool
}

// Upload 上传已选记录
type Upload struct{}

// ShowHistory 查看最近的上传记录
type ShowHistory struct{}

// ---- 批量入库单 ----

// OpenStorage 打开入库单，复制主账本当前的 TID
type OpenStorage struct{}

// CloseStorage 关闭入库单，扫描中会先停止并恢复主账本的订阅
type CloseStorage struct{}

// StorageScan 入库单扫描开关
type StorageScan struct {
	On bool
}

// StorageToggle 切换入库单中单行的选择状态
type StorageToggle struct {
	SequenceID int
}

// StorageSelectAll 入库单全选 / 全不选
type StorageSelectAll struct {
	Selected bool
}

// StorageChoose 选择入库单下拉字段，Index 从 1 开始，0 表示清空
type StorageChoose struct {
	Field staging.StorageField
	Index int
}

// StorageQuery 查询入库单中所有芯片的登记信息
type StorageQuery struct{}

// StorageList 输出入库单
type StorageList struct{}

// StorageSubmit 提交批量入库
type StorageSubmit struct{}

// ---- 事件与后台结果 ----

// ReaderEvent 读写器会话事件
type ReaderEvent struct {
	Event reader.Event
}

// StorageEvent 入库单扫描期间的读写器事件
type StorageEvent struct {
	Event reader.Event
}

// ConnectResult 连接结果
type ConnectResult struct {
	Descriptor reader.Descriptor
	Err        error
}

// PortsResult 串口列表
type PortsResult struct {
	Ports []string
	Err   error
}

// LoginResult 登录结果
type LoginResult struct {
	Username string
	Err      error
}

// CatalogResult 管道参数结果
type CatalogResult struct {
	Categories []policy.Category
	FromCache  bool
	Skipped    bool // 未登录且无缓存
	Err        error
}

// UploadResult 上传结果
type UploadResult struct {
	Payload staging.Payload
	Err     error
}

// GeocodeResult 地址解析结果
type GeocodeResult struct {
	Address  string
	Location *client.Location
	Err      error
}

// HistoryResult 上传历史
type HistoryResult struct {
	Batches []*repository.UploadBatch
	Err     error
}

// StorageOptionsResult 下拉选项
type StorageOptionsResult struct {
	Field   staging.StorageField
	Options []staging.Option
	Err     error
}

// ChipInfoResult 芯片信息查询结果，Err 非空时 Infos 只含出错前的部分
type ChipInfoResult struct {
	Infos map[string]staging.ChipInfo
	Err   error
}

// StorageResult 批量入库结果
type StorageResult struct {
	Count int
	Err   error
}

func (ConnectReader) appMessage()        {}
func (DisconnectReader) appMessage()     {}
func (ListPorts) appMessage()            {}
func (StartScan) appMessage()            {}
func (StopScan) appMessage()             {}
func (SetMode) appMessage()              {}
func (ChooseCategory) appMessage()       {}
func (SetCoordinates) appMessage()       {}
func (SetAddress) appMessage()           {}
func (Locate) appMessage()               {}
func (Select) appMessage()               {}
func (Toggle) appMessage()               {}
func (SelectAll) appMessage()            {}
func (ClearLedger) appMessage()          {}
func (ListRecords) appMessage()          {}
func (Export) appMessage()               {}
func (Login) appMessage()                {}
func (Logout) appMessage()               {}
func (RefreshCatalog) appMessage()       {}
func (Upload) appMessage()               {}
func (ShowHistory) appMessage()          {}
func (OpenStorage) appMessage()          {}
func (CloseStorage) appMessage()         {}
func (StorageScan) appMessage()          {}
func (StorageToggle) appMessage()        {}
func (StorageSelectAll) appMessage()     {}
func (StorageChoose) appMessage()        {}
func (StorageQuery) appMessage()         {}
func (StorageList) appMessage()          {}
func (StorageSubmit) appMessage()        {}
func (ReaderEvent) appMessage()          {}
func (StorageEvent) appMessage()         {}
func (ConnectResult) appMessage()        {}
func (PortsResult) appMessage()          {}
func (LoginResult) appMessage()          {}
func (CatalogResult) appMessage()        {}
func (UploadResult) appMessage()         {}
func (GeocodeResult) appMessage()        {}
func (HistoryResult) appMessage()        {}
func (StorageOptionsResult) appMessage() {}
func (ChipInfoResult) appMessage()       {}
func (StorageResult) appMessage()        {}
