package publisher

import "time"

// SightingEvent 发布到下游的单次读取事件
type SightingEvent struct {
	SessionID  string    `json:"session_id"`
	SequenceID int       `json:"sequence_id"`
	TID        string    `json:"tid"`
	Count      int       `json:"count"`
	Mode       string    `json:"mode"`
	At         time.Time `json:"at"`
}
