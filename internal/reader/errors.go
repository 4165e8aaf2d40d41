package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportLost 串口读写失败，扫描循环必须退出
	ErrTransportLost = errors.New("reader transport lost")
	// ErrNotConnected 未连接读写器
	ErrNotConnected = errors.New("reader not connected")
)

// ConnectionKind 连接失败类型
type ConnectionKind int

const (
	NoDeviceFound ConnectionKind = iota + 1
	PortUnavailable
	ProtocolError
)

func (k ConnectionKind) String() string {
	switch k {
	case NoDeviceFound:
		return "no device found"
	case PortUnavailable:
		return "port unavailable"
	case ProtocolError:
		return "protocol error"
	}
	return "unknown"
}

// ConnectionError 连接读写器失败
type ConnectionError struct {
	Kind ConnectionKind
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	msg := e.Kind.String()
	if e.Port != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Port)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Message 面向用户的提示
func (e *ConnectionError) Message() string {
	switch e.Kind {
	case NoDeviceFound:
		return "未检测到USB RFID设备，请检查连接"
	case PortUnavailable:
		return fmt.Sprintf("无法打开串口: %s", e.Port)
	case ProtocolError:
		return "读写器无响应或协议错误"
	}
	return e.Error()
}

// IsConnectionKind 判断连接错误类型
func IsConnectionKind(err error, kind ConnectionKind) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == kind
}
