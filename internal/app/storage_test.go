package app

import (
	"testing"
	"time"

	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/staging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, Options{AutoConnect: true, Descriptor: reader.USB()}, nil)
	h.eventually(t, func() bool { return h.view.hasStatus("USB设备连接成功") }, "auto connect")
	return h
}

func (v *recordingView) chipAdded(tid string) bool {
	for _, n := range v.all() {
		if ca, ok := n.(StorageChipAdded); ok && ca.Chip.TID == tid {
			return true
		}
	}
	return false
}

func (v *recordingView) storageClosed() bool {
	for _, n := range v.all() {
		if sl, ok := n.(StorageListed); ok && !sl.Open {
			return true
		}
	}
	return false
}

func (v *recordingView) listedRecords(n int) bool {
	for _, note := range v.all() {
		if rl, ok := note.(RecordsListed); ok && len(rl.Records) == n {
			return true
		}
	}
	return false
}

func TestApp_StorageScanTakesOverSubscription(t *testing.T) {
	h := connectedHarness(t)
	h.reader.emit(sighting(tidA, time.Now()))

	h.submit(t, OpenStorage{}, StorageScan{On: true})
	h.eventually(t, func() bool { return h.view.hasStatus("开始入库单扫描...") }, "storage scan started")

	h.reader.emit(sighting(tidA, time.Now()))
	h.reader.emit(sighting("not-a-tid", time.Now()))
	h.reader.emit(sighting(tidB, time.Now()))
	h.eventually(t, func() bool { return h.view.chipAdded(tidB) }, "chip added to sheet")

	h.submit(t, StorageScan{On: false})
	h.eventually(t, func() bool { return h.view.hasStatus("扫描已停止") }, "storage scan stopped")

	// 订阅已交还主账本
	h.reader.emit(sighting(tidB, time.Now()))
	h.submit(t, ListRecords{})
	h.eventually(t, func() bool { return h.view.listedRecords(2) }, "main ledger receives again")

	h.stop()

	records := h.app.ledger.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].SightingCount, "storage sightings stay out of the main ledger")
	assert.Equal(t, []string{storageScanHint}, h.reader.modes)

	chips := h.app.storage.Chips()
	require.Len(t, chips, 2)
	assert.Equal(t, tidA, chips[0].TID)
	assert.Equal(t, tidB, chips[1].TID)
	assert.Equal(t, 2, chips[1].SequenceID)
	assert.False(t, h.app.storageSwapped)
	assert.False(t, h.app.storageScanning)
}

func TestApp_CloseStorageRestoresSubscription(t *testing.T) {
	h := connectedHarness(t)

	h.submit(t, OpenStorage{}, StorageScan{On: true})
	h.eventually(t, func() bool { return h.view.hasStatus("开始入库单扫描...") }, "storage scan started")

	h.submit(t, CloseStorage{})
	h.eventually(t, func() bool { return h.view.hasStatus("入库单已关闭") }, "closed")
	h.eventually(t, func() bool { return h.view.storageClosed() }, "closed notification")

	h.reader.emit(sighting(tidB, time.Now()))
	h.submit(t, ListRecords{})
	h.eventually(t, func() bool { return h.view.listedRecords(1) }, "main ledger receives again")

	h.stop()
	assert.Nil(t, h.app.storage)
	assert.False(t, h.app.scanning)
	assert.False(t, h.reader.scanning)
}

func TestApp_StorageScanPreconditions(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	h.submit(t, StorageScan{On: true})
	h.eventually(t, func() bool { return h.view.hasAlert("请先打开入库单") }, "sheet required")

	h.submit(t, OpenStorage{}, StorageScan{On: true})
	h.eventually(t, func() bool { return h.view.hasAlert("错误: 未连接到设备") }, "connection required")

	h.stop()
	assert.False(t, h.app.storageSwapped)
	assert.True(t, h.reader.subscribed())
}

func TestApp_StorageScanRefusedWhileMainScanning(t *testing.T) {
	h := connectedHarness(t)
	h.submit(t, StartScan{})
	h.eventually(t, func() bool { return h.view.hasStatus("开始入库扫描...") }, "main scan")

	h.submit(t, OpenStorage{}, StorageScan{On: true})
	h.eventually(t, func() bool { return h.view.hasAlert("请先停止当前扫描") }, "refused")

	h.stop()
	assert.False(t, h.app.storageSwapped)
}

func TestApp_StorageSubmitFlow(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.backend.session.Set("admin", "tok")
	size := 110.0
	h.backend.chipInfos = map[string]staging.ChipInfo{
		tidA: {MaterialName: "PE", DiameterSize: &size},
	}

	h.reader.emit(sighting(tidA, time.Now()))
	h.reader.emit(sighting(tidB, time.Now()))
	h.submit(t, OpenStorage{})
	h.eventually(t, func() bool { return h.view.countStatus("个选项") == len(staging.StorageFields) }, "options fetched")

	h.submit(t, StorageSubmit{})
	h.eventually(t, func() bool { return h.view.hasAlert("请选择要入库的芯片") }, "nothing selected")

	h.submit(t, StorageQuery{})
	h.eventually(t, func() bool { return h.view.hasStatus("已查询到 1 个芯片信息") }, "chip info")

	h.submit(t,
		StorageChoose{Field: staging.FieldProduct, Index: 2},
		StorageChoose{Field: staging.FieldSupplier, Index: 0},
		StorageToggle{SequenceID: 1},
		StorageSubmit{},
	)
	h.eventually(t, func() bool { return len(h.backend.storedBatches()) == 1 }, "stored")
	h.eventually(t, func() bool { return h.view.hasAlert("批量入库成功") }, "success")
	h.eventually(t, func() bool { return h.view.storageClosed() }, "sheet closed after success")

	items := h.backend.storedBatches()[0]
	require.Len(t, items, 1)
	assert.Equal(t, tidA, items[0].ChipID)
	assert.Equal(t, "1", items[0].PipelineTypeID)
	assert.Equal(t, "2", items[0].ProductID)
	assert.Nil(t, items[0].SupplierID)
	assert.Equal(t, "PE", items[0].MaterialName)
	assert.Equal(t, 110.0, items[0].DiameterSize)
}

func TestApp_StorageWithoutLogin(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.reader.emit(sighting(tidA, time.Now()))

	h.submit(t, OpenStorage{})
	h.eventually(t, func() bool { return h.view.hasStatus("未登录，无法获取入库下拉选项") }, "no options")

	h.submit(t, StorageSelectAll{Selected: true}, StorageSubmit{})
	h.eventually(t, func() bool { return h.view.hasAlert("请填写所有必填项（标记*的字段）") }, "fields required")

	h.submit(t, StorageChoose{Field: staging.FieldPipeType, Index: 1})
	h.eventually(t, func() bool { return h.view.hasAlert("无效的序号") }, "no options to choose")

	h.submit(t, StorageQuery{})
	h.eventually(t, func() bool { return h.view.hasAlert("请先登录后再查询") }, "login required")
}

func TestApp_StorageFailureKeepsSheetOpen(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.backend.session.Set("admin", "tok")
	h.backend.storageErr = &client.BusinessError{Op: "batch storage", Code: "0", Message: "芯片已入库"}

	h.reader.emit(sighting(tidA, time.Now()))
	h.submit(t, OpenStorage{})
	h.eventually(t, func() bool { return h.view.countStatus("个选项") == len(staging.StorageFields) }, "options fetched")

	h.submit(t, StorageToggle{SequenceID: 1}, StorageSubmit{})
	h.eventually(t, func() bool { return h.view.hasAlert("入库失败: 芯片已入库") }, "failure")

	h.stop()
	require.NotNil(t, h.app.storage)
	assert.Equal(t, 1, h.app.storage.Len())
}

func TestApp_NotLoggedInResetsSessionView(t *testing.T) {
	// 无缓存时启动阶段不会刷新管道参数
	h := newHarness(t, Options{}, func(d *Deps) { d.Catalog = nil })
	h.backend.session.Set("admin", "tok")
	h.backend.fetchErr = client.ErrNotLoggedIn

	h.submit(t, RefreshCatalog{Force: true})
	h.eventually(t, func() bool { return h.view.hasAlert("获取管道参数时出错: 请先登录") }, "alert")

	var reset bool
	for _, n := range h.view.all() {
		if sc, ok := n.(SessionChanged); ok && !sc.LoggedIn {
			reset = true
		}
	}
	assert.True(t, reset)
}
