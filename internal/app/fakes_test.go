package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/excel"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/publisher"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu         sync.Mutex
	sub        reader.Subscriber
	connectErr error
	connected  bool
	scanning   bool
	modes      []string
}

func (r *fakeReader) Subscribe(sub reader.Subscriber) reader.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sub
	r.sub = sub
	return prev
}

func (r *fakeReader) subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub != nil
}

func (r *fakeReader) emit(evt reader.Event) {
	r.mu.Lock()
	sub := r.sub
	r.mu.Unlock()
	if sub != nil {
		sub(evt)
	}
}

func (r *fakeReader) Connect(desc reader.Descriptor) error {
	if r.connectErr != nil {
		return r.connectErr
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	r.emit(reader.Connected{Descriptor: desc})
	return nil
}

func (r *fakeReader) Disconnect() {
	r.StopScan()
	r.mu.Lock()
	was := r.connected
	r.connected = false
	r.mu.Unlock()
	if was {
		r.emit(reader.Disconnected{})
	}
}

func (r *fakeReader) StartScan(mode string) error {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return reader.ErrNotConnected
	}
	r.scanning = true
	r.modes = append(r.modes, mode)
	r.mu.Unlock()
	r.emit(reader.ScanStarted{Mode: mode})
	return nil
}

func (r *fakeReader) StopScan() {
	r.mu.Lock()
	was := r.scanning
	r.scanning = false
	r.mu.Unlock()
	if was {
		r.emit(reader.ScanStopped{})
	}
}

func (r *fakeReader) ListPorts() ([]string, error) {
	return []string{"COM3", "COM4"}, nil
}

type fakeBackend struct {
	mu         sync.Mutex
	session    *client.Session
	categories []policy.Category
	fetchErr   error
	uploadErr  error
	uploaded   [][]staging.UploadItem

	chipInfos  map[string]staging.ChipInfo
	storageErr error
	stored     [][]staging.StorageItem
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{session: client.NewSession()}
}

func (b *fakeBackend) Session() *client.Session { return b.session }

func (b *fakeBackend) Login(ctx context.Context, username, password string) error {
	if password != "secret" {
		return &client.BusinessError{Op: "login", Code: "0", Message: "密码错误"}
	}
	b.session.Set(username, "token-"+username)
	return nil
}

func (b *fakeBackend) Logout() { b.session.Clear() }

func (b *fakeBackend) FetchCategories(ctx context.Context) ([]policy.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return b.categories, nil
}

func (b *fakeBackend) BatchAdd(ctx context.Context, items []staging.UploadItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return b.uploadErr
	}
	b.uploaded = append(b.uploaded, items)
	return nil
}

func (b *fakeBackend) uploads() [][]staging.UploadItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]staging.UploadItem(nil), b.uploaded...)
}

func (b *fakeBackend) StorageOptions(ctx context.Context, field staging.StorageField) ([]staging.Option, error) {
	return []staging.Option{{ID: "1", Name: string(field) + "-1"}, {ID: "2", Name: string(field) + "-2"}}, nil
}

func (b *fakeBackend) ChipInfo(ctx context.Context, chipID string) (*staging.ChipInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.chipInfos[chipID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (b *fakeBackend) BatchStorage(ctx context.Context, items []staging.StorageItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.storageErr != nil {
		return b.storageErr
	}
	b.stored = append(b.stored, items)
	return nil
}

func (b *fakeBackend) storedBatches() [][]staging.StorageItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]staging.StorageItem(nil), b.stored...)
}

type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(ctx context.Context, address string) (*client.Location, error) {
	if address == "nowhere" {
		return nil, client.ErrAddressNotFound
	}
	return &client.Location{Longitude: 102.7, Latitude: 25.04, FormattedAddress: "云南省昆明市"}, nil
}

type memCatalog struct {
	mu   sync.Mutex
	cats []policy.Category
	ok   bool
}

func (c *memCatalog) Store(ctx context.Context, cats []policy.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cats, c.ok = cats, true
	return nil
}

func (c *memCatalog) Load(ctx context.Context) ([]policy.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return nil, assert.AnError
	}
	return c.cats, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publisher.SightingEvent
}

func (p *fakePublisher) Enqueue(evt publisher.SightingEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return true
}

type fakeBatches struct {
	mu    sync.Mutex
	saved []*repository.UploadBatch
}

func (b *fakeBatches) SaveBatch(ctx context.Context, batch *repository.UploadBatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, batch)
	return nil
}

func (b *fakeBatches) RecentBatches(ctx context.Context, limit int) ([]*repository.UploadBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*repository.UploadBatch(nil), b.saved...), nil
}

func (b *fakeBatches) first() *repository.UploadBatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saved) == 0 {
		return nil
	}
	return b.saved[0]
}

func (b *fakeBatches) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saved)
}

type recordingView struct {
	mu    sync.Mutex
	notes []Notification
}

func (v *recordingView) Notify(n Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = append(v.notes, n)
}

func (v *recordingView) all() []Notification {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Notification(nil), v.notes...)
}

func (v *recordingView) alerts() []Alert {
	var out []Alert
	for _, n := range v.all() {
		if a, ok := n.(Alert); ok {
			out = append(out, a)
		}
	}
	return out
}

func (v *recordingView) hasAlert(text string) bool {
	for _, a := range v.alerts() {
		if a.Text == text {
			return true
		}
	}
	return false
}

func (v *recordingView) countStatus(suffix string) int {
	var n int
	for _, note := range v.all() {
		if s, ok := note.(Status); ok && strings.HasSuffix(s.Text, suffix) {
			n++
		}
	}
	return n
}

func (v *recordingView) hasStatus(text string) bool {
	for _, n := range v.all() {
		if s, ok := n.(Status); ok && s.Text == text {
			return true
		}
	}
	return false
}

func newTestExporter(t *testing.T) *excel.Exporter {
	return excel.NewExporter(t.TempDir(), zap.NewNop())
}

// harness 组装 App 与全部假依赖
type harness struct {
	app       *App
	reader    *fakeReader
	backend   *fakeBackend
	catalog   *memCatalog
	publisher *fakePublisher
	batches   *fakeBatches
	view      *recordingView
	cancel    context.CancelFunc
	stopped   chan struct{}
}

func newHarness(t *testing.T, opts Options, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		reader:    &fakeReader{},
		backend:   newFakeBackend(),
		catalog:   &memCatalog{},
		publisher: &fakePublisher{},
		batches:   &fakeBatches{},
		view:      &recordingView{},
		stopped:   make(chan struct{}),
	}
	deps := Deps{
		Reader:    h.reader,
		Backend:   h.backend,
		Geocoder:  fakeGeocoder{},
		Exporter:  newTestExporter(t),
		Catalog:   h.catalog,
		Publisher: h.publisher,
		Batches:   h.batches,
		View:      h.view,
	}
	if mutate != nil {
		mutate(&deps)
	}
	if opts.DrainInterval == 0 {
		opts.DrainInterval = time.Millisecond
	}
	h.app = New(opts, deps, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.stopped)
		h.app.Run(ctx)
	}()
	t.Cleanup(h.stop)

	// Run 订阅读写器之前发出的事件会被丢弃
	h.eventually(t, h.reader.subscribed, "reader subscribed")
	return h
}

// stop 结束 Run；之后可以在测试 goroutine 中安全读取账本
func (h *harness) stop() {
	h.cancel()
	<-h.stopped
	h.app.Close()
}

func (h *harness) submit(t *testing.T, msgs ...Message) {
	t.Helper()
	for _, m := range msgs {
		require.True(t, h.app.Submit(m))
	}
}

func (h *harness) eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond, msg)
}
