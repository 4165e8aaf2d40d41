package ledger

import (
	"strings"
	"time"
)

// TagRecord 一个 TID 在本次会话中的去重记录
type TagRecord struct {
	TID           string // 按首次收到的原样保存/显示
	SequenceID    int    // 首次出现时分配的编号，从 1 开始，会话内不复用
	SightingCount int
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
	Selected      bool
}

// Totals 聚合统计
type Totals struct {
	TotalSightings int64 // 自创建/上次清空以来所有 fold 调用次数（含重复）
	UniqueCount    int
	LastSeenAt     time.Time
}

// NormalizeTID 用于比较的规范形式：去空白、大写
func NormalizeTID(tid string) string {
	return strings.ToUpper(strings.Join(strings.Fields(tid), ""))
}

// ValidTID 非空且只包含十六进制字符
func ValidTID(tid string) bool {
	n := NormalizeTID(tid)
	if n == "" {
		return false
	}
	for _, c := range n {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// FormatTID 每 4 位一组显示，如 "E200 0017 2211 ..."
func FormatTID(tid string) string {
	var b strings.Builder
	for i, c := range tid {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return b.String()
}
