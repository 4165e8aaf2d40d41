package policy

import (
	"fmt"
	"strings"
)

// Mode 盘点模式
type Mode string

const (
	ModeInbound      Mode = "inbound"      // 入库
	ModeOutbound     Mode = "outbound"     // 出库
	ModeRegistration Mode = "registration" // 录入
	ModeInstallation Mode = "installation" // 安装
)

// Modes 界面展示顺序
var Modes = []Mode{ModeInbound, ModeOutbound, ModeRegistration, ModeInstallation}

var modeLabels = map[Mode]string{
	ModeInbound:      "入库",
	ModeOutbound:     "出库",
	ModeRegistration: "录入",
	ModeInstallation: "安装",
}

// Label 中文名称
func (m Mode) Label() string {
	if l, ok := modeLabels[m]; ok {
		return l
	}
	return string(m)
}

// Valid 是否为已知模式
func (m Mode) Valid() bool {
	_, ok := modeLabels[m]
	return ok
}

// ParseMode 接受英文标识或中文名称
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	m := Mode(strings.ToLower(s))
	if m.Valid() {
		return m, nil
	}
	for mode, label := range modeLabels {
		if label == s {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown inventory mode: %q", s)
}
