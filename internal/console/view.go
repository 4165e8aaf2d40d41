package console

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"wisefido-rfid/internal/app"
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"
	"wisefido-rfid/internal/staging"
)

type displayState struct {
	mode     policy.Mode
	username string
}

// Notify 实现 app.View
func (c *Console) Notify(n app.Notification) {
	switch v := n.(type) {
	case app.LedgerChanged:
		c.onLedger(v.Event)
	case app.ModeChanged:
		c.mu.Lock()
		c.display.mode = v.Mode
		c.mu.Unlock()
		c.logf("当前模式: %s（可填写: %s）", v.Mode.Label(), describeFields(v.Enabled))
	case app.FieldsChanged:
		c.logf("已填写: %s", describeValues(v.Fields))
	case app.CatalogChanged:
		c.printCatalog(v.Categories, v.FromCache)
	case app.ReaderStatus:
		c.logf("读写器: %s", describeReader(v))
	case app.SessionChanged:
		c.mu.Lock()
		c.display.username = v.Username
		c.mu.Unlock()
		if v.LoggedIn {
			c.logf("当前用户: %s", v.Username)
		} else {
			c.logf("未登录")
		}
	case app.Status:
		c.logf("%s", v.Text)
	case app.Alert:
		c.printf("\n[%s] %s\n", v.Title, v.Text)
	case app.RecordsListed:
		c.printRecords(v)
	case app.PortsListed:
		if len(v.Ports) == 0 {
			c.logf("未找到可用的串口")
			return
		}
		c.logf("可用串口: %s", strings.Join(v.Ports, ", "))
		c.logf("波特率: %s（默认 %d）", joinInts(reader.BaudRates), reader.DefaultBaudRate)
	case app.HistoryListed:
		c.printHistory(v.Batches)
	case app.StorageListed:
		c.printStorage(v)
	case app.StorageChipAdded:
		c.logf("入库单新增芯片: %s (编号: %d)", ledger.FormatTID(v.Chip.TID), v.Chip.SequenceID)
	}
}

func (c *Console) onLedger(e ledger.Event) {
	switch v := e.(type) {
	case ledger.RecordInserted:
		c.logf("检测到标签TID: %s (编号: %d)", ledger.FormatTID(v.Record.TID), v.Record.SequenceID)
	case ledger.Cleared:
		c.logf("所有记录已清空")
	}
}

func (c *Console) printRecords(v app.RecordsListed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "模式: %s  标签总数: %d  唯一标签: %d\n", v.Mode.Label(), v.Totals.TotalSightings, v.Totals.UniqueCount)
	if len(v.Records) == 0 {
		fmt.Fprintln(c.out, "（暂无记录）")
		return
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "选择\t编号\tTID\t次数\t最后扫描时间")
	for _, r := range v.Records {
		mark := "[ ]"
		if r.Selected {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", mark, r.SequenceID, ledger.FormatTID(r.TID), r.SightingCount, r.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func (c *Console) printCatalog(categories []policy.Category, fromCache bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	source := "服务器"
	if fromCache {
		source = "缓存"
	}
	fmt.Fprintf(c.out, "管道参数（来自%s，共 %d 项）:\n", source, len(categories))
	for i, cat := range categories {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, cat.Key())
	}
}

func (c *Console) printHistory(batches []*repository.UploadBatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(batches) == 0 {
		fmt.Fprintln(c.out, "（暂无上传记录）")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "时间\t模式\t用户\t条数\t状态")
	for _, b := range batches {
		status := "成功"
		if b.Status != repository.BatchStatusSuccess {
			status = "失败: " + b.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", b.UploadedAt.Format("2006-01-02 15:04:05"), policy.Mode(b.Mode).Label(), b.Username, b.ItemCount, status)
	}
	w.Flush()
}

func (c *Console) printStorage(v app.StorageListed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !v.Open {
		fmt.Fprintln(c.out, "入库单已关闭")
		return
	}
	for _, f := range v.Fields {
		chosen := "（未选择）"
		if f.Chosen != nil {
			chosen = f.Chosen.Name
		}
		fmt.Fprintf(c.out, "%s %s", f.Field.Label(), chosen)
		if len(f.Options) > 0 {
			fmt.Fprintf(c.out, "  [%s]", describeOptions(f.Options))
		}
		fmt.Fprintln(c.out)
	}
	if v.Scanning {
		fmt.Fprintln(c.out, "扫描中...")
	}
	if len(v.Chips) == 0 {
		fmt.Fprintln(c.out, "（暂无芯片）")
		return
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "选择\t编号\tTID\t材质\t管径")
	for _, chip := range v.Chips {
		mark := "[ ]"
		if chip.Selected {
			mark = "[x]"
		}
		var material, size string
		if chip.Info != nil {
			material = chip.Info.MaterialName
			if chip.Info.DiameterSize != nil {
				size = strconv.FormatFloat(*chip.Info.DiameterSize, 'f', -1, 64)
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", mark, chip.SequenceID, ledger.FormatTID(chip.TID), material, size)
	}
	w.Flush()
}

func describeOptions(opts []staging.Option) string {
	parts := make([]string, 0, len(opts))
	for i, o := range opts {
		parts = append(parts, fmt.Sprintf("%d) %s", i+1, o.Name))
	}
	return strings.Join(parts, ", ")
}

func describeFields(f policy.FieldSet) string {
	var names []string
	if f.Classification {
		names = append(names, "管道参数")
	}
	if f.Geolocation {
		names = append(names, "经纬度")
	}
	if f.Address {
		names = append(names, "项目地址")
	}
	if len(names) == 0 {
		return "无"
	}
	return strings.Join(names, "/")
}

func describeValues(a policy.AuxiliaryFields) string {
	if a.Empty() {
		return "无"
	}
	var parts []string
	if a.Classification != nil {
		parts = append(parts, "管道参数 "+a.Classification.Key())
	}
	if a.Longitude != nil && a.Latitude != nil {
		parts = append(parts, fmt.Sprintf("经纬度 %.6f, %.6f", *a.Longitude, *a.Latitude))
	}
	if a.Address != "" {
		parts = append(parts, "地址 "+a.Address)
	}
	return strings.Join(parts, "；")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "/")
}

func describeReader(s app.ReaderStatus) string {
	switch {
	case s.Scanning:
		return "扫描中 (" + s.Descriptor.String() + ")"
	case s.Connected:
		return "已连接 (" + s.Descriptor.String() + ")"
	}
	return "未连接"
}
