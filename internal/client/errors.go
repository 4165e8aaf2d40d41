package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn 未登录，需要先登录
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired 登录已失效（HTTP 401），需要重新登录
	ErrSessionExpired = errors.New("session expired")
	// ErrAddressNotFound 地址解析无结果
	ErrAddressNotFound = errors.New("未找到该地址对应的位置信息")
)

// IsAuthError 是否需要重新登录
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) || errors.Is(err, ErrSessionExpired)
}

// NetworkError 超时、不可达、非 2xx 状态或响应格式错误
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BusinessError 接口返回了非成功的业务码
type BusinessError struct {
	Op      string
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "未知错误"
	}
	return fmt.Sprintf("%s: %s (code: %s)", e.Op, msg, e.Code)
}
