package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"wisefido-rfid/internal/app"
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/staging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runConsole(t *testing.T, input string, accept bool) ([]app.Message, string) {
	t.Helper()

	var out bytes.Buffer
	c := New(strings.NewReader(input), &out, zap.NewNop())

	var got []app.Message
	err := c.Run(context.Background(), func(m app.Message) bool {
		got = append(got, m)
		return accept
	})
	require.NoError(t, err)
	return got, out.String()
}

func TestRunParsesCommands(t *testing.T) {
	input := strings.Join([]string{
		"connect",
		"connect serial COM3 9600",
		"connect rs232 /dev/ttyUSB0",
		"mode 录入",
		"category 2",
		"coords 102.71 25.04",
		"address 昆明市 五华区",
		"locate 昆明市政府",
		"select all",
		"select none",
		"select 3",
		"login admin secret",
		"catalog",
		"upload",
		"quit",
		"list",
	}, "\n")

	got, _ := runConsole(t, input, true)

	assert.Equal(t, []app.Message{
		app.ConnectReader{Descriptor: reader.USB()},
		app.ConnectReader{Descriptor: reader.Serial("COM3", 9600)},
		app.ConnectReader{Descriptor: reader.Serial("/dev/ttyUSB0", reader.DefaultBaudRate)},
		app.SetMode{Mode: policy.ModeRegistration},
		app.ChooseCategory{Index: 2},
		app.SetCoordinates{Longitude: 102.71, Latitude: 25.04},
		app.SetAddress{Address: "昆明市 五华区"},
		app.Locate{Address: "昆明市政府"},
		app.SelectAll{Selected: true},
		app.SelectAll{Selected: false},
		app.Toggle{SequenceID: 3},
		app.Login{Username: "admin", Password: "secret"},
		app.RefreshCatalog{Force: true},
		app.Upload{},
	}, got)
}

func TestRunClearAsksForConfirmation(t *testing.T) {
	got, out := runConsole(t, "clear\ny\nclear\n\n", true)

	assert.Equal(t, []app.Message{
		app.ClearLedger{Confirmed: true},
		app.ClearLedger{Confirmed: false},
	}, got)
	assert.Contains(t, out, "(y/N)")
}

func TestRunReportsInvalidInput(t *testing.T) {
	got, out := runConsole(t, "category x\nconnect serial\nmode warehouse\nfoo\ncoords 1\nlist\n", true)

	assert.Equal(t, []app.Message{app.ListRecords{}}, got)
	assert.Contains(t, out, "无效的序号: x")
	assert.Contains(t, out, "请选择COM端口")
	assert.Contains(t, out, "unknown inventory mode")
	assert.Contains(t, out, `unknown command "foo"`)
}

func TestRunReportsClosedSession(t *testing.T) {
	_, out := runConsole(t, "start\n", false)
	assert.Contains(t, out, "会话已关闭")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(pr, io.Discard, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(app.Message) bool { return true })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}

func TestNotifyFormatsNotifications(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local) }

	seen := time.Date(2024, 5, 1, 9, 29, 0, 0, time.Local)
	rec := ledger.TagRecord{TID: "E2003412B802011A", SequenceID: 1, SightingCount: 3, FirstSeenAt: seen, LastSeenAt: seen, Selected: true}

	c.Notify(app.LedgerChanged{Event: ledger.RecordInserted{Record: rec}})
	c.Notify(app.ModeChanged{Mode: policy.ModeInstallation, Enabled: policy.FieldsEnabledFor(policy.ModeInstallation)})
	c.Notify(app.CatalogChanged{Categories: []policy.Category{{ID: "1", MaterialName: "PE", DiameterSize: 110}}, FromCache: true})
	c.Notify(app.RecordsListed{Mode: policy.ModeInstallation, Records: []ledger.TagRecord{rec}, Totals: ledger.Totals{TotalSightings: 3, UniqueCount: 1}})
	c.Notify(app.Alert{Title: "错误", Text: "错误: 未连接到设备"})

	text := out.String()
	assert.Contains(t, text, "[09:30:00] 检测到标签TID: E200 3412 B802 011A (编号: 1)")
	assert.Contains(t, text, "当前模式: 安装（可填写: 经纬度）")
	assert.Contains(t, text, "1) PE 110")
	assert.Contains(t, text, "来自缓存")
	assert.Contains(t, text, "[x]")
	assert.Contains(t, text, "标签总数: 3  唯一标签: 1")
	assert.Contains(t, text, "[错误] 错误: 未连接到设备")
	assert.Equal(t, "rfid[安装]> ", c.prompt())
}

func TestRunParsesStorageCommands(t *testing.T) {
	input := strings.Join([]string{
		"storage open",
		"storage start",
		"storage stop",
		"storage select 2",
		"storage select all",
		"storage set pipe 1",
		"storage set 供应商 0",
		"storage set color 1",
		"storage set product x",
		"storage query",
		"storage submit",
		"storage close",
	}, "\n")

	got, out := runConsole(t, input, true)

	assert.Equal(t, []app.Message{
		app.OpenStorage{},
		app.StorageScan{On: true},
		app.StorageScan{On: false},
		app.StorageToggle{SequenceID: 2},
		app.StorageSelectAll{Selected: true},
		app.StorageChoose{Field: staging.FieldPipeType, Index: 1},
		app.StorageChoose{Field: staging.FieldSupplier, Index: 0},
		app.StorageQuery{},
		app.StorageSubmit{},
		app.CloseStorage{},
	}, got)
	assert.Contains(t, out, "未知的字段: color")
	assert.Contains(t, out, "无效的序号: x")
}

func TestNotifyFormatsStorage(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, zap.NewNop())

	size := 110.0
	pipe := staging.Option{ID: "1", Name: "给水管"}
	c.Notify(app.StorageListed{
		Open: true,
		Chips: []staging.StorageChip{
			{SequenceID: 1, TID: "E2003412B802011A", Selected: true, Info: &staging.ChipInfo{MaterialName: "PE", DiameterSize: &size}},
			{SequenceID: 2, TID: "E2003412B802011B"},
		},
		Fields: []app.StorageField{
			{Field: staging.FieldPipeType, Options: []staging.Option{pipe}, Chosen: &pipe},
			{Field: staging.FieldSupplier},
		},
	})
	c.Notify(app.StorageChipAdded{Chip: staging.StorageChip{SequenceID: 3, TID: "E2003412B802011C"}})
	c.Notify(app.StorageListed{})

	text := out.String()
	assert.Contains(t, text, "管道类型* 给水管  [1) 给水管]")
	assert.Contains(t, text, "供应商 （未选择）")
	assert.Contains(t, text, "E200 3412 B802 011A")
	assert.Contains(t, text, "PE")
	assert.Contains(t, text, "110")
	assert.Contains(t, text, "入库单新增芯片: E200 3412 B802 011C (编号: 3)")
	assert.Contains(t, text, "入库单已关闭")
}
