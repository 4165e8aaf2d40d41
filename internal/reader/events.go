package reader

import "time"

// Event 读写器会话事件（封闭集合）
type Event interface {
	readerEvent()
}

// Connected 连接成功
type Connected struct {
	Descriptor Descriptor
}

// Disconnected 连接已断开
type Disconnected struct {
	Err error // 传输层丢失时非空
}

// ScanStarted 扫描循环已启动
type ScanStarted struct {
	Mode string
}

// ScanStopped 扫描循环已完全退出
type ScanStopped struct {
	Err error // 因致命错误退出时非空
}

// ScanCycleComplete 一轮盘点结束
type ScanCycleComplete struct {
	Tags int
}

// TagSighted 读到一次标签
type TagSighted struct {
	TID       string
	Timestamp time.Time
	Antenna   int
	RSSI      int
}

// ScanFailed 某一轮盘点失败，Fatal 时循环随后退出
type ScanFailed struct {
	Err   error
	Fatal bool
}

func (Connected) readerEvent()         {}
func (Disconnected) readerEvent()      {}
func (ScanStarted) readerEvent()       {}
func (ScanStopped) readerEvent()       {}
func (ScanCycleComplete) readerEvent() {}
func (TagSighted) readerEvent()        {}
func (ScanFailed) readerEvent()        {}

// Subscriber 事件接收方，同一时刻只有一个
type Subscriber func(Event)
