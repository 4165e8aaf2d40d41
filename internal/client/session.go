package client

import "sync"

// Session 进程级登录状态：登录时写入，登出/退出时清除，其余请求只读
type Session struct {
	mu       sync.RWMutex
	username string
	token    string
}

// NewSession 创建空会话
func NewSession() *Session {
	return &Session{}
}

// Set 保存登录结果
func (s *Session) Set(username, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.token = token
}

// Clear 登出
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.token = ""
}

// Token 当前 Authorization 值
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Username 当前登录用户
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// LoggedIn 是否已登录
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}
