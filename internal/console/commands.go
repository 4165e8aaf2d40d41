package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"wisefido-rfid/internal/app"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/staging"

	"github.com/spf13/cobra"
)

func init() {
	// Windows 下双击启动时 cobra 默认会提示并退出
	cobra.MousetrapHelpText = ""
}

// execute 每行输入用一棵新的命令树解析
func (c *Console) execute(ctx context.Context, line string, submit func(app.Message) bool) error {
	root := c.commands(submit)
	root.SetArgs(strings.Fields(line))
	root.SetOut(c.out)
	root.SetErr(c.out)
	return root.ExecuteContext(ctx)
}

func (c *Console) commands(submit func(app.Message) bool) *cobra.Command {
	send := func(msg app.Message) error {
		if !submit(msg) {
			return fmt.Errorf("会话已关闭")
		}
		return nil
	}
	simple := func(use, short string, msg app.Message) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(msg)
			},
		}
	}

	root := &cobra.Command{
		Use:           "rfid",
		Short:         "RFID 标签盘点",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		&cobra.Command{
			Use:   "connect [usb | serial <port> [baud]]",
			Short: "连接读写器（默认 USB 自动发现）",
			Args:  cobra.MaximumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				desc, err := parseDescriptor(args)
				if err != nil {
					return err
				}
				return send(app.ConnectReader{Descriptor: desc})
			},
		},
		simple("disconnect", "断开读写器", app.DisconnectReader{}),
		simple("ports", "刷新串口列表", app.ListPorts{}),
		simple("start", "开始扫描", app.StartScan{}),
		simple("stop", "停止扫描", app.StopScan{}),
		&cobra.Command{
			Use:   "mode <inbound|outbound|registration|installation>",
			Short: "切换盘点模式（也可输入 入库/出库/录入/安装）",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mode, err := policy.ParseMode(args[0])
				if err != nil {
					return err
				}
				return send(app.SetMode{Mode: mode})
			},
		},
		&cobra.Command{
			Use:   "category <n>",
			Short: "选择管道参数（序号见 catalog）",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("无效的序号: %s", args[0])
				}
				return send(app.ChooseCategory{Index: n})
			},
		},
		&cobra.Command{
			Use:   "coords <longitude> <latitude>",
			Short: "输入经纬度",
			Args:  cobra.ExactArgs(2),
			// 负数坐标不能当作 flag
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				lng, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("无效的经度: %s", args[0])
				}
				lat, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("无效的纬度: %s", args[1])
				}
				return send(app.SetCoordinates{Longitude: lng, Latitude: lat})
			},
		},
		&cobra.Command{
			Use:   "address <text>",
			Short: "输入项目地址",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(app.SetAddress{Address: strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "locate <address>",
			Short: "根据地址获取经纬度",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(app.Locate{Address: strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "select <seq|all|none>",
			Short: "切换单条选择，或全选/全不选",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				switch strings.ToLower(args[0]) {
				case "all":
					return send(app.SelectAll{Selected: true})
				case "none":
					return send(app.SelectAll{Selected: false})
				}
				seq, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("无效的编号: %s", args[0])
				}
				return send(app.Toggle{SequenceID: seq})
			},
		},
		simple("list", "显示已扫描的标签", app.ListRecords{}),
		&cobra.Command{
			Use:   "clear",
			Short: "清空所有记录（需确认）",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ok := c.confirm(cmd.Context(), "确定要清空所有记录吗？此操作不可恢复")
				return send(app.ClearLedger{Confirmed: ok})
			},
		},
		simple("export", "导出到当日 Excel", app.Export{}),
		&cobra.Command{
			Use:   "login <username> <password>",
			Short: "登录后台",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(app.Login{Username: args[0], Password: args[1]})
			},
		},
		simple("logout", "退出登录", app.Logout{}),
		simple("catalog", "刷新管道参数列表", app.RefreshCatalog{Force: true}),
		simple("upload", "上传已选记录", app.Upload{}),
		simple("history", "查看最近的上传记录", app.ShowHistory{}),
		c.storageCommand(send, simple),
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "退出",
			Args:    cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				c.quit = true
			},
		},
	)
	return root
}

func (c *Console) storageCommand(send func(app.Message) error, simple func(use, short string, msg app.Message) *cobra.Command) *cobra.Command {
	storage := &cobra.Command{
		Use:   "storage",
		Short: "批量入库单",
	}
	storage.AddCommand(
		simple("open", "打开入库单（复制当前记录）", app.OpenStorage{}),
		simple("close", "关闭入库单", app.CloseStorage{}),
		simple("start", "入库单扫描", app.StorageScan{On: true}),
		simple("stop", "停止入库单扫描", app.StorageScan{On: false}),
		simple("list", "显示入库单", app.StorageList{}),
		simple("query", "查询芯片信息", app.StorageQuery{}),
		simple("submit", "提交批量入库", app.StorageSubmit{}),
		&cobra.Command{
			Use:   "select <seq|all|none>",
			Short: "切换入库单中的选择",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				switch strings.ToLower(args[0]) {
				case "all":
					return send(app.StorageSelectAll{Selected: true})
				case "none":
					return send(app.StorageSelectAll{Selected: false})
				}
				seq, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("无效的编号: %s", args[0])
				}
				return send(app.StorageToggle{SequenceID: seq})
			},
		},
		&cobra.Command{
			Use:   "set <pipe|manufacturer|product|supplier> <n>",
			Short: "选择下拉字段（0 清空）",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				field, err := parseStorageField(args[0])
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("无效的序号: %s", args[1])
				}
				return send(app.StorageChoose{Field: field, Index: n})
			},
		},
	)
	return storage
}

func parseStorageField(s string) (staging.StorageField, error) {
	switch strings.ToLower(s) {
	case "pipe", "pipe_type", "管道类型":
		return staging.FieldPipeType, nil
	case "manufacturer", "生产厂家":
		return staging.FieldManufacturer, nil
	case "product", "产品名称":
		return staging.FieldProduct, nil
	case "supplier", "供应商":
		return staging.FieldSupplier, nil
	}
	return "", fmt.Errorf("未知的字段: %s", s)
}

func parseDescriptor(args []string) (reader.Descriptor, error) {
	if len(args) == 0 {
		return reader.USB(), nil
	}
	transport, err := reader.ParseTransport(args[0])
	if err != nil {
		return reader.Descriptor{}, err
	}
	if transport == reader.TransportUSB {
		if len(args) > 1 {
			return reader.Descriptor{}, fmt.Errorf("usb 连接不需要额外参数")
		}
		return reader.USB(), nil
	}

	if len(args) < 2 {
		return reader.Descriptor{}, fmt.Errorf("请选择COM端口")
	}
	baud := reader.DefaultBaudRate
	if len(args) == 3 {
		b, err := strconv.Atoi(args[2])
		if err != nil || b <= 0 {
			return reader.Descriptor{}, fmt.Errorf("无效的波特率: %s", args[2])
		}
		baud = b
	}
	return reader.Serial(args[1], baud), nil
}
