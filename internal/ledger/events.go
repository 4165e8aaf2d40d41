package ledger

// Event 账本变更通知（封闭的变体集合）
type Event interface {
	ledgerEvent()
}

// RecordInserted 新 TID 入账
type RecordInserted struct {
	Record TagRecord
}

// RecordUpdated 已有 TID 再次被看到
type RecordUpdated struct {
	Record TagRecord
}

// TotalsChanged 每次 fold 都会发出
type TotalsChanged struct {
	Totals Totals
}

// SelectionChanged 选择状态变化（单条或全选）
type SelectionChanged struct {
	SequenceIDs []int
	Selected    bool
}

// Cleared 账本被清空
type Cleared struct{}

func (RecordInserted) ledgerEvent()   {}
func (RecordUpdated) ledgerEvent()    {}
func (TotalsChanged) ledgerEvent()    {}
func (SelectionChanged) ledgerEvent() {}
func (Cleared) ledgerEvent()          {}

// Observer 接收账本变更
type Observer func(Event)
