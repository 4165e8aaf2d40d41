package app

import (
	"context"
	"fmt"

	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/staging"

	"go.uber.org/zap"
)

const storageScanHint = "storage"

func (a *App) handleStorage(msg Message) {
	switch m := msg.(type) {
	case OpenStorage:
		a.openStorage()
	case CloseStorage:
		a.closeStorage()
	case StorageScan:
		if m.On {
			a.startStorageScan()
		} else {
			a.stopStorageScan()
		}
	case StorageEvent:
		a.onStorageEvent(m.Event)
	case StorageToggle:
		if !a.requireStorage() {
			return
		}
		if _, err := a.storage.Toggle(m.SequenceID); err != nil {
			a.alert("入库单", describe(err))
			return
		}
		a.notifyStorage()
	case StorageSelectAll:
		if !a.requireStorage() {
			return
		}
		a.storage.SelectAll(m.Selected)
		a.notifyStorage()
	case StorageChoose:
		a.chooseStorageOption(m.Field, m.Index)
	case StorageOptionsResult:
		a.onStorageOptions(m)
	case StorageQuery:
		a.queryChipInfo()
	case ChipInfoResult:
		a.onChipInfoResult(m)
	case StorageList:
		if a.requireStorage() {
			a.notifyStorage()
		}
	case StorageSubmit:
		a.submitStorage()
	case StorageResult:
		a.onStorageResult(m)
	}
}

func (a *App) requireStorage() bool {
	if a.storage == nil {
		a.alert("入库单", "请先打开入库单")
		return false
	}
	return true
}

func (a *App) notifyStorage() {
	if a.storage == nil {
		a.notify(StorageListed{})
		return
	}
	fields := make([]StorageField, 0, len(staging.StorageFields))
	for _, f := range staging.StorageFields {
		sf := StorageField{Field: f, Options: a.storage.Options(f)}
		if o, ok := a.storage.Chosen(f); ok {
			sf.Chosen = &o
		}
		fields = append(fields, sf)
	}
	a.notify(StorageListed{
		Open:     true,
		Scanning: a.storageScanning,
		Chips:    a.storage.Chips(),
		Fields:   fields,
	})
}

func (a *App) openStorage() {
	if a.storage != nil {
		a.notifyStorage()
		return
	}
	a.storage = staging.NewStorageSheet(a.ledger.Records())
	a.notifyStorage()
	a.status(fmt.Sprintf("已打开入库单（%d 条）", a.storage.Len()))

	if !a.deps.Backend.Session().LoggedIn() {
		a.status("未登录，无法获取入库下拉选项")
		return
	}
	for _, f := range staging.StorageFields {
		a.goWork("storage options", func(ctx context.Context) Message {
			opts, err := a.deps.Backend.StorageOptions(ctx, f)
			return StorageOptionsResult{Field: f, Options: opts, Err: err}
		})
	}
}

func (a *App) onStorageOptions(m StorageOptionsResult) {
	if a.storage == nil {
		return
	}
	if m.Err != nil {
		a.onAuthError(m.Err)
		a.alert("错误", fmt.Sprintf("获取数据失败: %s", describe(m.Err)))
		return
	}
	a.storage.SetOptions(m.Field, m.Options)
	a.status(fmt.Sprintf("%s: %d 个选项", m.Field.Label(), len(m.Options)))
}

func (a *App) chooseStorageOption(f staging.StorageField, index int) {
	if !a.requireStorage() {
		return
	}
	if err := a.storage.Choose(f, index); err != nil {
		a.alert("入库单", describe(err))
		return
	}
	if o, ok := a.storage.Chosen(f); ok {
		a.status(fmt.Sprintf("%s: %s", f.Label(), o.Name))
		return
	}
	a.status(fmt.Sprintf("%s: 已清空", f.Label()))
}

// ---- 入库扫描 ----

func (a *App) startStorageScan() {
	if !a.requireStorage() {
		return
	}
	if a.storageScanning {
		a.status("入库扫描进行中")
		return
	}
	if !a.connected {
		a.alert("扫描", "错误: 未连接到设备")
		return
	}
	if a.scanning {
		a.alert("入库单", "请先停止当前扫描")
		return
	}

	a.storagePrev = a.deps.Reader.Subscribe(func(evt reader.Event) {
		a.Submit(StorageEvent{Event: evt})
	})
	a.storageSwapped = true
	a.storageScanning = true

	if err := a.deps.Reader.StartScan(storageScanHint); err != nil {
		a.restoreSubscriber()
		a.alert("扫描", describe(err))
	}
}

func (a *App) stopStorageScan() {
	if !a.storageScanning {
		return
	}
	a.status("停止扫描...")
	a.deps.Reader.StopScan()
}

// restoreSubscriber 把读写器订阅交还给主账本
func (a *App) restoreSubscriber() {
	if !a.storageSwapped {
		return
	}
	a.deps.Reader.Subscribe(a.storagePrev)
	a.storagePrev = nil
	a.storageSwapped = false
	a.storageScanning = false
	a.logger.Debug("Reader subscription restored")
}

func (a *App) onStorageEvent(evt reader.Event) {
	switch e := evt.(type) {
	case reader.TagSighted:
		if a.storage == nil {
			return
		}
		if chip, ok := a.storage.Add(e.TID); ok {
			a.notify(StorageChipAdded{Chip: chip})
		}
		return
	case reader.ScanStarted:
		a.scanning = true
		a.notifyReader()
		a.status("开始入库单扫描...")
		return
	case reader.ScanStopped, reader.Disconnected:
		a.restoreSubscriber()
	}
	a.onReaderEvent(evt)
}

// ---- 芯片信息与提交 ----

func (a *App) queryChipInfo() {
	if !a.requireStorage() {
		return
	}
	if a.storage.Len() == 0 {
		a.status("入库单为空")
		return
	}
	if !a.deps.Backend.Session().LoggedIn() {
		a.alert("未登录", "请先登录后再查询")
		return
	}

	tids := a.storage.TIDs()
	a.status(fmt.Sprintf("正在查询 %d 个芯片信息...", len(tids)))
	a.goWork("chip info", func(ctx context.Context) Message {
		infos := make(map[string]staging.ChipInfo, len(tids))
		for _, tid := range tids {
			info, err := a.deps.Backend.ChipInfo(ctx, tid)
			if err != nil {
				return ChipInfoResult{Infos: infos, Err: err}
			}
			if info != nil {
				infos[tid] = *info
			}
		}
		return ChipInfoResult{Infos: infos}
	})
}

func (a *App) onChipInfoResult(m ChipInfoResult) {
	if a.storage == nil {
		return
	}
	for tid, info := range m.Infos {
		a.storage.SetInfo(tid, info)
	}
	a.notifyStorage()
	if m.Err != nil {
		a.onAuthError(m.Err)
		a.alert("错误", fmt.Sprintf("查询信息失败: %s", describe(m.Err)))
		return
	}
	a.status(fmt.Sprintf("已查询到 %d 个芯片信息", len(m.Infos)))
}

func (a *App) submitStorage() {
	if !a.requireStorage() {
		return
	}
	items, err := a.storage.Build()
	if err != nil {
		a.alert("错误", describe(err))
		return
	}
	if !a.deps.Backend.Session().LoggedIn() {
		a.alert("未登录", "请先登录后再入库")
		return
	}

	a.status(fmt.Sprintf("入库中...（%d 条）", len(items)))
	a.goWork("batch storage", func(ctx context.Context) Message {
		return StorageResult{Count: len(items), Err: a.deps.Backend.BatchStorage(ctx, items)}
	})
}

func (a *App) onStorageResult(m StorageResult) {
	if m.Err != nil {
		a.onAuthError(m.Err)
		a.logger.Warn("Batch storage failed", zap.Error(m.Err))
		a.alert("错误", fmt.Sprintf("入库失败: %s", describe(m.Err)))
		return
	}
	a.alert("成功", "批量入库成功")
	a.closeStorage()
}

// closeStorage 扫描中先停止扫描，再恢复主账本订阅
func (a *App) closeStorage() {
	if a.storage == nil {
		return
	}
	if a.storageScanning {
		a.deps.Reader.StopScan()
		a.restoreSubscriber()
	}
	a.storage = nil
	a.notifyStorage()
	a.status("入库单已关闭")
}
