package policy

// FieldSet 模式相关字段的启用状态
type FieldSet struct {
	Classification bool // 管道参数（类别/材质/管径）
	Geolocation    bool // 经纬度
	Address        bool // 项目地址
}

// ExportColumn 导出 Excel 时写入的时间列
type ExportColumn int

const (
	ExportInbound  ExportColumn = iota // 入场时间列，写首次扫描时间
	ExportOutbound                     // 出场时间列，写最后扫描时间
)

// FieldsEnabledFor 模式 -> 启用字段
//
//	录入: 管道参数
//	安装: 经纬度
//	出库: 项目地址
//	入库: 无（只做去重计数）
func FieldsEnabledFor(mode Mode) FieldSet {
	switch mode {
	case ModeRegistration:
		return FieldSet{Classification: true}
	case ModeInstallation:
		return FieldSet{Geolocation: true}
	case ModeOutbound:
		return FieldSet{Address: true}
	default:
		return FieldSet{}
	}
}

// ExportColumnFor 入库写入场时间，其余模式都写出场时间
func ExportColumnFor(mode Mode) ExportColumn {
	if mode == ModeInbound {
		return ExportInbound
	}
	return ExportOutbound
}

// AutoSelectFor 录入/安装以上传为目的，新标签默认勾选
func AutoSelectFor(mode Mode) bool {
	return mode == ModeRegistration || mode == ModeInstallation
}
