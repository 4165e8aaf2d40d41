package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/excel"
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/publisher"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const workerTimeout = 30 * time.Second

// ReaderSession 读写器会话
type ReaderSession interface {
	Connect(desc reader.Descriptor) error
	Disconnect()
	StartScan(modeHint string) error
	StopScan()
	ListPorts() ([]string, error)
	Subscribe(sub reader.Subscriber) reader.Subscriber
}

// Backend 管网后台
type Backend interface {
	Session() *client.Session
	Login(ctx context.Context, username, password string) error
	Logout()
	FetchCategories(ctx context.Context) ([]policy.Category, error)
	BatchAdd(ctx context.Context, items []staging.UploadItem) error
	StorageOptions(ctx context.Context, field staging.StorageField) ([]staging.Option, error)
	ChipInfo(ctx context.Context, chipID string) (*staging.ChipInfo, error)
	BatchStorage(ctx context.Context, items []staging.StorageItem) error
}

// Geocoder 地址解析
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*client.Location, error)
}

// Exporter Excel 导出
type Exporter interface {
	Export(mode policy.Mode, records []ledger.TagRecord, aux policy.AuxiliaryFields, now time.Time) (*excel.ExportResult, error)
}

// CatalogStore 管道参数缓存
type CatalogStore interface {
	Store(ctx context.Context, categories []policy.Category) error
	Load(ctx context.Context) ([]policy.Category, error)
}

// SightingPublisher 扫描事件下游
type SightingPublisher interface {
	Enqueue(evt publisher.SightingEvent) bool
}

// BatchStore 上传历史
type BatchStore interface {
	SaveBatch(ctx context.Context, batch *repository.UploadBatch) error
	RecentBatches(ctx context.Context, limit int) ([]*repository.UploadBatch, error)
}

// Options 运行参数
type Options struct {
	DrainInterval time.Duration
	QueueSize     int
	InitialMode   policy.Mode
	AutoConnect   bool
	Descriptor    reader.Descriptor
	Username      string // 非空时启动后自动登录
	Password      string
	HistoryLimit  int
}

// Deps 外部协作者；Geocoder、Catalog、Publisher、Batches 可为 nil
type Deps struct {
	Reader    ReaderSession
	Backend   Backend
	Geocoder  Geocoder
	Exporter  Exporter
	Catalog   CatalogStore
	Publisher SightingPublisher
	Batches   BatchStore
	View      View
}

// App 主上下文
//
// 收件箱是唯一的串行化点：账本和表单只在 Run 的 goroutine 中修改，
// 后台任务通过 Submit 投递结果，不直接触碰共享状态。
type App struct {
	opts   Options
	deps   Deps
	logger *zap.Logger

	sessionID string
	inbox     chan Message
	done      chan struct{}
	runCtx    context.Context

	ledger  *ledger.Ledger
	form    *policy.Form
	catalog []policy.Category

	connected bool
	scanning  bool
	desc      reader.Descriptor

	// 入库单扫描期间读写器订阅被临时替换，storagePrev 保存原订阅
	storage         *staging.StorageSheet
	storageScanning bool
	storageSwapped  bool
	storagePrev     reader.Subscriber

	running   atomic.Bool
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// New 创建主上下文
func New(opts Options, deps Deps, logger *zap.Logger) *App {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = 100 * time.Millisecond
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if !opts.InitialMode.Valid() {
		opts.InitialMode = policy.ModeInbound
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}

	a := &App{
		opts:      opts,
		deps:      deps,
		logger:    logger,
		sessionID: uuid.New().String(),
		inbox:     make(chan Message, opts.QueueSize),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
		ledger:    ledger.New(),
		form:      policy.NewForm(opts.InitialMode),
	}
	a.ledger.SetAutoSelect(policy.AutoSelectFor(opts.InitialMode))
	a.ledger.Observe(a.onLedgerEvent)
	return a
}

// SessionID 本次运行的会话标识
func (a *App) SessionID() string {
	return a.sessionID
}

// Submit 投递消息；收件箱满时阻塞，Run 退出后返回 false
func (a *App) Submit(msg Message) bool {
	if msg == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.inbox <- msg:
		return true
	case <-a.done:
		return false
	}
}

// Run 周期性处理收件箱，直到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	a.runCtx = ctx
	a.running.Store(true)
	defer close(a.done)

	a.deps.Reader.Subscribe(func(evt reader.Event) {
		a.Submit(ReaderEvent{Event: evt})
	})

	a.logger.Info("RFID session started",
		zap.String("session_id", a.sessionID),
		zap.String("mode", string(a.form.Mode())),
	)
	a.notify(ModeChanged{Mode: a.form.Mode(), Enabled: a.form.Enabled()})
	a.startup()

	ticker := time.NewTicker(a.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.drain()
		}
	}
}

// drain 处理当前已在队列中的全部消息
func (a *App) drain() {
	for {
		select {
		case msg := <-a.inbox:
			a.handle(msg)
		default:
			return
		}
	}
}

func (a *App) startup() {
	if a.opts.AutoConnect {
		a.handle(ConnectReader{Descriptor: a.opts.Descriptor})
	}
	if a.deps.Catalog != nil {
		a.handle(RefreshCatalog{})
	}
	if a.opts.Username != "" {
		a.handle(Login{Username: a.opts.Username, Password: a.opts.Password})
	}
}

// Close 停止扫描、断开读写器并等待后台任务结束
//
// Run 仍在运行时先等它返回，调用方需要已取消 Run 的 ctx。
// goWork 只在 Run 的 goroutine 中调用，Run 返回后 workers 不会再增加。
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.running.Load() {
			<-a.done
		}
		a.deps.Reader.Disconnect()
		a.deps.Reader.Subscribe(nil)
		a.workers.Wait()
		a.logger.Info("RFID session closed", zap.String("session_id", a.sessionID))
	})
}

// goWork 在一次性 goroutine 中执行 fn，并把结果投递回收件箱
func (a *App) goWork(op string, fn func(ctx context.Context) Message) {
	parent := a.runCtx
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		ctx, cancel := context.WithTimeout(parent, workerTimeout)
		defer cancel()

		a.logger.Debug("Background task started", zap.String("op", op))
		a.Submit(fn(ctx))
	}()
}

func (a *App) notify(n Notification) {
	if a.deps.View != nil {
		a.deps.View.Notify(n)
	}
}

func (a *App) status(text string) {
	a.notify(Status{Text: text})
}

func (a *App) alert(title, text string) {
	a.notify(Alert{Title: title, Text: text})
}

func (a *App) onLedgerEvent(evt ledger.Event) {
	a.notify(LedgerChanged{Event: evt})

	if a.deps.Publisher == nil {
		return
	}
	var rec ledger.TagRecord
	switch e := evt.(type) {
	case ledger.RecordInserted:
		rec = e.Record
	case ledger.RecordUpdated:
		rec = e.Record
	default:
		return
	}
	a.deps.Publisher.Enqueue(publisher.SightingEvent{
		SessionID:  a.sessionID,
		SequenceID: rec.SequenceID,
		TID:        rec.TID,
		Count:      rec.SightingCount,
		Mode:       string(a.form.Mode()),
		At:         rec.LastSeenAt,
	})
}
