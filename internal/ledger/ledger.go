package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ErrClearNotConfirmed 清空操作需要调用方确认
var ErrClearNotConfirmed = errors.New("ledger clear requires confirmation")

// ErrUnknownRecord 编号不存在
var ErrUnknownRecord = errors.New("unknown sequence id")

// Ledger 去重账本：TID -> 顺序编号记录
//
// Ledger 不加锁，只允许主上下文（消息队列的唯一消费者）调用。
type Ledger struct {
	records   []*TagRecord   // 按首次出现顺序
	byTID     map[string]int // 规范化 TID -> records 下标
	nextSeq   int
	total     int64
	lastSeen  time.Time
	autoSel   bool
	observers []Observer
}

// New 创建空账本
func New() *Ledger {
	return &Ledger{
		byTID:   make(map[string]int),
		nextSeq: 1,
	}
}

// Observe 注册变更观察者
func (l *Ledger) Observe(o Observer) {
	l.observers = append(l.observers, o)
}

func (l *Ledger) emit(e Event) {
	for _, o := range l.observers {
		o(e)
	}
}

// SetAutoSelect 首次出现的记录是否默认选中（由盘点模式决定）
func (l *Ledger) SetAutoSelect(on bool) {
	l.autoSel = on
}

// Fold 合并一次扫描。非法 TID 直接忽略并返回 false，由调用方记录告警。
func (l *Ledger) Fold(tid string, at time.Time) bool {
	if !ValidTID(tid) {
		return false
	}
	key := NormalizeTID(tid)

	l.total++
	l.lastSeen = at

	if idx, ok := l.byTID[key]; ok {
		rec := l.records[idx]
		rec.SightingCount++
		rec.LastSeenAt = at
		l.emit(RecordUpdated{Record: *rec})
	} else {
		rec := &TagRecord{
			TID:           tid,
			SequenceID:    l.nextSeq,
			SightingCount: 1,
			FirstSeenAt:   at,
			LastSeenAt:    at,
			Selected:      l.autoSel,
		}
		l.nextSeq++
		l.byTID[key] = len(l.records)
		l.records = append(l.records, rec)
		l.emit(RecordInserted{Record: *rec})
	}

	l.emit(TotalsChanged{Totals: l.Totals()})
	return true
}

// Clear 清空全部记录并重置编号和计数
func (l *Ledger) Clear(confirmed bool) error {
	if !confirmed {
		return ErrClearNotConfirmed
	}
	l.records = nil
	l.byTID = make(map[string]int)
	l.nextSeq = 1
	l.total = 0
	l.lastSeen = time.Time{}
	l.emit(Cleared{})
	l.emit(TotalsChanged{Totals: l.Totals()})
	return nil
}

// Totals 当前统计
func (l *Ledger) Totals() Totals {
	return Totals{
		TotalSightings: l.total,
		UniqueCount:    len(l.records),
		LastSeenAt:     l.lastSeen,
	}
}

// Len 唯一记录数
func (l *Ledger) Len() int {
	return len(l.records)
}

// Records 按首次出现顺序返回快照
func (l *Ledger) Records() []TagRecord {
	out := make([]TagRecord, len(l.records))
	for i, r := range l.records {
		out[i] = *r
	}
	return out
}

// Lookup 按 TID 查找（大小写不敏感）
func (l *Ledger) Lookup(tid string) (TagRecord, bool) {
	idx, ok := l.byTID[NormalizeTID(tid)]
	if !ok {
		return TagRecord{}, false
	}
	return *l.records[idx], true
}

// Get 按编号查找
func (l *Ledger) Get(seq int) (TagRecord, bool) {
	rec := l.find(seq)
	if rec == nil {
		return TagRecord{}, false
	}
	return *rec, true
}

// 编号连续且从 1 开始，直接换算下标
func (l *Ledger) find(seq int) *TagRecord {
	if seq < 1 || seq > len(l.records) {
		return nil
	}
	return l.records[seq-1]
}

// SetSelected 设置单条记录的选择状态
func (l *Ledger) SetSelected(seq int, selected bool) error {
	rec := l.find(seq)
	if rec == nil {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, seq)
	}
	if rec.Selected != selected {
		rec.Selected = selected
		l.emit(SelectionChanged{SequenceIDs: []int{seq}, Selected: selected})
	}
	return nil
}

// Toggle 切换单条记录的选择状态
func (l *Ledger) Toggle(seq int) (bool, error) {
	rec := l.find(seq)
	if rec == nil {
		return false, fmt.Errorf("%w: %d", ErrUnknownRecord, seq)
	}
	rec.Selected = !rec.Selected
	l.emit(SelectionChanged{SequenceIDs: []int{seq}, Selected: rec.Selected})
	return rec.Selected, nil
}

// SelectAll 把当前所有记录设为同一选择状态
func (l *Ledger) SelectAll(selected bool) {
	if len(l.records) == 0 {
		return
	}
	ids := make([]int, 0, len(l.records))
	for _, r := range l.records {
		r.Selected = selected
		ids = append(ids, r.SequenceID)
	}
	l.emit(SelectionChanged{SequenceIDs: ids, Selected: selected})
}

// Selected 返回已选记录（保持显示顺序）
func (l *Ledger) Selected() []TagRecord {
	var out []TagRecord
	for _, r := range l.records {
		if r.Selected {
			out = append(out, *r)
		}
	}
	return out
}
