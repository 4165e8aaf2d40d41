package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"

	"go.uber.org/zap"
)

func (a *App) handle(msg Message) {
	switch m := msg.(type) {
	case ReaderEvent:
		a.onReaderEvent(m.Event)

	case ConnectReader:
		a.connect(m.Descriptor)
	case ConnectResult:
		a.onConnectResult(m)
	case DisconnectReader:
		a.goWork("disconnect", func(context.Context) Message {
			a.deps.Reader.Disconnect()
			return nil
		})
	case ListPorts:
		a.goWork("list ports", func(context.Context) Message {
			ports, err := a.deps.Reader.ListPorts()
			return PortsResult{Ports: ports, Err: err}
		})
	case PortsResult:
		if m.Err != nil {
			a.alert("串口", fmt.Sprintf("获取串口列表失败: %v", m.Err))
			return
		}
		a.notify(PortsListed{Ports: m.Ports})

	case StartScan:
		a.startScan()
	case StopScan:
		if a.scanning {
			a.status("停止扫描...")
		}
		a.deps.Reader.StopScan()

	case SetMode:
		a.setMode(m.Mode)
	case ChooseCategory:
		a.chooseCategory(m.Index)
	case SetCoordinates:
		if err := a.form.SetCoordinates(m.Longitude, m.Latitude); err != nil {
			a.alert("经纬度", describe(err))
			return
		}
		a.notify(FieldsChanged{Fields: a.form.Fields()})
	case SetAddress:
		if err := a.form.SetAddress(m.Address); err != nil {
			a.alert("项目地址", describe(err))
			return
		}
		a.notify(FieldsChanged{Fields: a.form.Fields()})
	case Locate:
		a.locate(m.Address)
	case GeocodeResult:
		a.onGeocodeResult(m)

	case Select:
		if err := a.ledger.SetSelected(m.SequenceID, m.Selected); err != nil {
			a.alert("选择", describe(err))
		}
	case Toggle:
		if _, err := a.ledger.Toggle(m.SequenceID); err != nil {
			a.alert("选择", describe(err))
		}
	case SelectAll:
		a.ledger.SelectAll(m.Selected)
	case ClearLedger:
		if err := a.ledger.Clear(m.Confirmed); err != nil {
			a.status("已取消清空")
			return
		}
		a.status("已清空所有标签记录")
	case ListRecords:
		a.notify(RecordsListed{Mode: a.form.Mode(), Records: a.ledger.Records(), Totals: a.ledger.Totals()})

	case Export:
		a.export()

	case Login:
		a.login(m.Username, m.Password)
	case LoginResult:
		a.onLoginResult(m)
	case Logout:
		a.deps.Backend.Logout()
		a.notify(SessionChanged{})
		a.status("已退出登录")
	case RefreshCatalog:
		a.refreshCatalog(m.Force)
	case CatalogResult:
		a.onCatalogResult(m)

	case Upload:
		a.upload()
	case UploadResult:
		a.onUploadResult(m)

	case ShowHistory:
		a.showHistory()
	case HistoryResult:
		if m.Err != nil {
			a.alert("上传历史", describe(m.Err))
			return
		}
		a.notify(HistoryListed{Batches: m.Batches})

	case OpenStorage, CloseStorage, StorageScan, StorageEvent, StorageToggle, StorageSelectAll,
		StorageChoose, StorageOptionsResult, StorageQuery, ChipInfoResult, StorageList,
		StorageSubmit, StorageResult:
		a.handleStorage(msg)

	default:
		a.logger.Warn("Unhandled message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// ---- 读写器 ----

func (a *App) onReaderEvent(evt reader.Event) {
	switch e := evt.(type) {
	case reader.TagSighted:
		if !a.ledger.Fold(e.TID, e.Timestamp) {
			a.logger.Warn("Dropping malformed sighting", zap.String("tid", e.TID))
		}
	case reader.ScanCycleComplete:
		a.logger.Debug("Scan cycle complete", zap.Int("tags", e.Tags))
	case reader.Connected:
		a.connected = true
		a.desc = e.Descriptor
		a.notifyReader()
		if e.Descriptor.Transport == reader.TransportSerial {
			a.status(fmt.Sprintf("串口设备连接成功: %s", e.Descriptor))
		} else {
			a.status("USB设备连接成功")
		}
	case reader.Disconnected:
		a.connected = false
		a.scanning = false
		a.notifyReader()
		if e.Err != nil {
			a.alert("读写器", fmt.Sprintf("读写器连接已断开: %v", e.Err))
			return
		}
		a.status("设备已断开连接")
	case reader.ScanStarted:
		a.scanning = true
		a.notifyReader()
		a.status(fmt.Sprintf("开始%s扫描...", policy.Mode(e.Mode).Label()))
	case reader.ScanStopped:
		a.scanning = false
		a.notifyReader()
		if e.Err != nil {
			a.alert("扫描", fmt.Sprintf("扫描异常终止: %v", e.Err))
			return
		}
		a.status("扫描已停止")
	case reader.ScanFailed:
		if !e.Fatal {
			a.status(fmt.Sprintf("扫描错误: %v", e.Err))
		}
	}
}

func (a *App) notifyReader() {
	a.notify(ReaderStatus{Connected: a.connected, Scanning: a.scanning, Descriptor: a.desc})
}

func (a *App) connect(desc reader.Descriptor) {
	if a.connected {
		a.status("设备已连接")
		return
	}
	if err := desc.Validate(); err != nil {
		a.alert("连接", fmt.Sprintf("错误: %v", err))
		return
	}
	a.status(fmt.Sprintf("正在连接 %s ...", desc))
	a.goWork("connect", func(context.Context) Message {
		return ConnectResult{Descriptor: desc, Err: a.deps.Reader.Connect(desc)}
	})
}

func (a *App) onConnectResult(m ConnectResult) {
	if m.Err == nil {
		return
	}
	a.alert("连接失败", describe(m.Err))
}

func (a *App) startScan() {
	if !a.connected {
		a.alert("扫描", "错误: 未连接到设备")
		return
	}
	if err := a.deps.Reader.StartScan(string(a.form.Mode())); err != nil {
		a.alert("扫描", describe(err))
	}
}

// ---- 模式与字段 ----

func (a *App) setMode(mode policy.Mode) {
	if !mode.Valid() {
		a.alert("模式", fmt.Sprintf("未知的盘点模式: %s", mode))
		return
	}
	a.form.SetMode(mode)
	a.ledger.SetAutoSelect(policy.AutoSelectFor(mode))
	a.notify(ModeChanged{Mode: mode, Enabled: a.form.Enabled()})
	a.status(fmt.Sprintf("切换到%s模式", mode.Label()))
}

func (a *App) chooseCategory(index int) {
	if len(a.catalog) == 0 {
		a.alert("管道参数", "管道参数列表为空，请先登录获取")
		return
	}
	if index < 1 || index > len(a.catalog) {
		a.alert("管道参数", fmt.Sprintf("无效的序号: %d", index))
		return
	}
	if err := a.form.SetClassification(a.catalog[index-1]); err != nil {
		a.alert("管道参数", describe(err))
		return
	}
	a.notify(FieldsChanged{Fields: a.form.Fields()})
}

func (a *App) locate(address string) {
	if !a.form.Enabled().Geolocation {
		a.alert("获取位置", describe(fmt.Errorf("geolocation: %w", policy.ErrFieldDisabled)))
		return
	}
	if a.deps.Geocoder == nil {
		a.alert("获取位置", "未配置地图服务")
		return
	}
	a.status(fmt.Sprintf("正在获取位置: %s", address))
	a.goWork("geocode", func(ctx context.Context) Message {
		loc, err := a.deps.Geocoder.Geocode(ctx, address)
		return GeocodeResult{Address: address, Location: loc, Err: err}
	})
}

func (a *App) onGeocodeResult(m GeocodeResult) {
	if m.Err != nil {
		a.alert("获取位置失败", describe(m.Err))
		return
	}
	// 结果返回前可能已切换模式
	if err := a.form.SetCoordinates(m.Location.Longitude, m.Location.Latitude); err != nil {
		a.logger.Info("Discarding geocode result", zap.String("address", m.Address), zap.Error(err))
		return
	}
	a.notify(FieldsChanged{Fields: a.form.Fields()})
	a.status(fmt.Sprintf("位置: %s (%f, %f)", m.Location.FormattedAddress, m.Location.Longitude, m.Location.Latitude))
}

// ---- 导出 ----

func (a *App) export() {
	result, err := a.deps.Exporter.Export(a.form.Mode(), a.ledger.Records(), a.form.Fields(), time.Now())
	if err != nil {
		a.logger.Warn("Export failed", zap.Error(err))
		a.alert("导出失败", describe(err))
		return
	}
	a.status(fmt.Sprintf("已导出到 %s（新增 %d 行，更新 %d 行）", result.Path, result.Added, result.Updated))
}

// ---- 登录与管道参数 ----

func (a *App) login(username, password string) {
	if username == "" || password == "" {
		a.alert("登录", "请输入用户名和密码")
		return
	}
	a.goWork("login", func(ctx context.Context) Message {
		return LoginResult{Username: username, Err: a.deps.Backend.Login(ctx, username, password)}
	})
}

func (a *App) onLoginResult(m LoginResult) {
	if m.Err != nil {
		a.alert("登录失败", describe(m.Err))
		return
	}
	a.notify(SessionChanged{Username: m.Username, LoggedIn: true})
	a.status("登录成功")
	a.refreshCatalog(true)
}

func (a *App) refreshCatalog(force bool) {
	a.goWork("catalog", func(ctx context.Context) Message {
		return a.fetchCatalog(ctx, force)
	})
}

// fetchCatalog 非强制时先读缓存；后台网络错误时回退到缓存
func (a *App) fetchCatalog(ctx context.Context, force bool) CatalogResult {
	store := a.deps.Catalog
	if !force && store != nil {
		if cats, err := store.Load(ctx); err == nil {
			return CatalogResult{Categories: cats, FromCache: true}
		}
		if !a.deps.Backend.Session().LoggedIn() {
			return CatalogResult{Skipped: true}
		}
	}

	cats, err := a.deps.Backend.FetchCategories(ctx)
	if err != nil {
		var ne *client.NetworkError
		if store != nil && errors.As(err, &ne) {
			if cached, cerr := store.Load(ctx); cerr == nil {
				return CatalogResult{Categories: cached, FromCache: true, Err: err}
			}
		}
		return CatalogResult{Err: err}
	}

	if store != nil {
		if err := store.Store(ctx, cats); err != nil {
			a.logger.Warn("Failed to cache pipeline categories", zap.Error(err))
		}
	}
	return CatalogResult{Categories: cats}
}

func (a *App) onCatalogResult(m CatalogResult) {
	if m.Skipped {
		return
	}
	if m.Err != nil {
		a.onAuthError(m.Err)
		if !m.FromCache {
			a.alert("管道参数", fmt.Sprintf("获取管道参数时出错: %s", describe(m.Err)))
			return
		}
		a.status(fmt.Sprintf("获取管道参数时出错，使用缓存: %s", describe(m.Err)))
	}
	a.catalog = m.Categories
	a.notify(CatalogChanged{Categories: m.Categories, FromCache: m.FromCache})
	if m.Err == nil {
		a.status("管道参数列表更新成功")
	}
}

// onAuthError 会话已被清除时同步界面的登录状态
func (a *App) onAuthError(err error) {
	if client.IsAuthError(err) {
		a.notify(SessionChanged{})
	}
}

// ---- 上传 ----

func (a *App) upload() {
	mode := a.form.Mode()
	payload, err := staging.BuildPayload(mode, a.ledger.Records(), a.form.Fields())
	if err != nil {
		a.alert("上传失败", describe(err))
		return
	}
	if !a.deps.Backend.Session().LoggedIn() {
		a.alert("未登录", "请先登录后再上传数据")
		return
	}

	username := a.deps.Backend.Session().Username()
	a.status(fmt.Sprintf("上传中...（%d 条）", len(payload.Items)))
	a.goWork("upload", func(ctx context.Context) Message {
		err := a.deps.Backend.BatchAdd(ctx, payload.Items)
		a.recordBatch(ctx, payload, username, err)
		return UploadResult{Payload: payload, Err: err}
	})
}

// recordBatch 记录上传历史，失败只记日志
func (a *App) recordBatch(ctx context.Context, payload staging.Payload, username string, uploadErr error) {
	if a.deps.Batches == nil {
		return
	}
	batch := &repository.UploadBatch{
		SessionID: a.sessionID,
		Mode:      string(payload.Mode),
		Username:  username,
		Status:    repository.BatchStatusSuccess,
		Items:     payload.Items,
	}
	if uploadErr != nil {
		batch.Status = repository.BatchStatusFailed
		batch.Error = uploadErr.Error()
	}
	if err := a.deps.Batches.SaveBatch(ctx, batch); err != nil {
		a.logger.Error("Failed to save upload batch", zap.Error(err))
	}
}

func (a *App) onUploadResult(m UploadResult) {
	if m.Err != nil {
		a.onAuthError(m.Err)
		a.alert("上传失败", describe(m.Err))
		return
	}
	a.alert("上传成功", fmt.Sprintf("数据已成功上传（%d 条）", len(m.Payload.Items)))
}

func (a *App) showHistory() {
	if a.deps.Batches == nil {
		a.alert("上传历史", "未启用上传历史")
		return
	}
	limit := a.opts.HistoryLimit
	a.goWork("history", func(ctx context.Context) Message {
		batches, err := a.deps.Batches.RecentBatches(ctx, limit)
		return HistoryResult{Batches: batches, Err: err}
	})
}

// describe 面向用户的错误文本
func describe(err error) string {
	var (
		ve *staging.ValidationError
		ce *reader.ConnectionError
		be *client.BusinessError
		ne *client.NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message()
	case errors.As(err, &ce):
		return ce.Message()
	case errors.Is(err, client.ErrNotLoggedIn):
		return "请先登录"
	case errors.Is(err, client.ErrSessionExpired):
		return "登录已失效，请重新登录"
	case errors.Is(err, client.ErrAddressNotFound):
		return client.ErrAddressNotFound.Error()
	case errors.As(err, &be):
		if be.Message == "" {
			return "未知错误"
		}
		return be.Message
	case errors.As(err, &ne):
		return fmt.Sprintf("网络错误: %v", ne)
	case errors.Is(err, reader.ErrNotConnected):
		return "错误: 未连接到设备"
	case errors.Is(err, policy.ErrFieldDisabled):
		return "当前模式下该字段不可用"
	case errors.Is(err, ledger.ErrUnknownRecord):
		return "编号不存在"
	case errors.Is(err, staging.ErrUnknownOption):
		return "无效的序号"
	}
	return err.Error()
}
