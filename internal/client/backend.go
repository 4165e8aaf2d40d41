package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wisefido-rfid/internal/common/logger"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/staging"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	pathLogin      = "/sys/auth/pwdLogin"
	pathCategories = "/pipeline/category/page"
	pathBatchAdd   = "/pipeline/chip/batchAdd"

	userAgent = "RFID Scanner App"
)

// envelope 后端统一响应 {code, message, data}，code == 1 表示成功
type envelope struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) code() string {
	return strings.Trim(string(e.Code), `"`)
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

// BackendClient 管网后台 API 客户端
//
// 只在用户触发时调用一次，不做自动重试。
type BackendClient struct {
	httpClient *resty.Client
	session    *Session
	logger     *zap.Logger
}

// NewBackendClient 创建后台客户端
func NewBackendClient(baseURL string, timeout time.Duration, session *Session, logger *zap.Logger) *BackendClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &BackendClient{
		httpClient: client,
		session:    session,
		logger:     logger,
	}
}

// Session 共享的登录状态
func (c *BackendClient) Session() *Session {
	return c.session
}

// Login 账号密码登录，成功后写入会话
func (c *BackendClient) Login(ctx context.Context, username, password string) error {
	req := c.httpClient.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"username": username,
			"password": password,
		})

	data, err := c.call(ctx, "login", req, http.MethodPost, pathLogin)
	if err != nil {
		return err
	}

	token, err := parseToken(data)
	if err != nil {
		return &NetworkError{Op: "login", Err: err}
	}

	c.session.Set(username, token)
	c.logger.Info("Logged in",
		zap.String("username", username),
		zap.String("authorization", logger.MaskToken(token)),
	)
	return nil
}

// Logout 清除本地会话
func (c *BackendClient) Logout() {
	c.session.Clear()
}

// FetchCategories 获取管道参数列表
func (c *BackendClient) FetchCategories(ctx context.Context) ([]policy.Category, error) {
	req, err := c.authorized()
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, "fetch categories", req, http.MethodGet, pathCategories)
	if err != nil {
		return nil, err
	}

	categories, err := parseCategories(data)
	if err != nil {
		return nil, &NetworkError{Op: "fetch categories", Err: err}
	}

	c.logger.Info("Fetched pipeline categories", zap.Int("count", len(categories)))
	return categories, nil
}

// BatchAdd 批量上传芯片数据
func (c *BackendClient) BatchAdd(ctx context.Context, items []staging.UploadItem) error {
	req, err := c.authorized()
	if err != nil {
		return err
	}
	req.SetHeader("Content-Type", "application/json").SetBody(items)

	if _, err := c.call(ctx, "batch add", req, http.MethodPost, pathBatchAdd); err != nil {
		return err
	}

	c.logger.Info("Uploaded chip batch", zap.Int("count", len(items)))
	return nil
}

func (c *BackendClient) authorized() (*resty.Request, error) {
	token := c.session.Token()
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	return c.httpClient.R().SetHeader("Authorization", token), nil
}

// call 发送请求并解析统一响应，返回 data 字段
func (c *BackendClient) call(ctx context.Context, op string, req *resty.Request, method, path string) (json.RawMessage, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		c.logger.Error("Backend request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.session.Clear()
		return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}
	if resp.IsError() {
		c.logger.Error("Backend returned error status",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode()}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if env.code() != "1" {
		c.logger.Warn("Backend returned business error",
			zap.String("op", op),
			zap.String("code", env.code()),
			zap.String("message", env.message()),
		)
		return nil, &BusinessError{Op: op, Code: env.code(), Message: env.message()}
	}
	return env.Data, nil
}

// parseToken data 可能是字符串，也可能是 {accessToken|token, tokenType}
func parseToken(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s, nil
	}

	var obj struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"token"`
		TokenType   string `json:"tokenType"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("malformed login data: %w", err)
	}
	token := obj.AccessToken
	if token == "" {
		token = obj.Token
	}
	if token == "" {
		return "", fmt.Errorf("login response carries no token")
	}
	if obj.TokenType != "" && !strings.HasPrefix(token, obj.TokenType) {
		token = obj.TokenType + " " + token
	}
	return token, nil
}

type rawCategory struct {
	ID           json.RawMessage `json:"id"`
	MaterialName string          `json:"materialName"`
	DiameterSize json.RawMessage `json:"diameterSize"`
}

// parseCategories data 可能直接是数组，也可能是分页对象 {list|records|dataList}
func parseCategories(data json.RawMessage) ([]policy.Category, error) {
	var items []rawCategory
	if err := json.Unmarshal(data, &items); err != nil {
		var page struct {
			List     []rawCategory `json:"list"`
			Records  []rawCategory `json:"records"`
			DataList []rawCategory `json:"dataList"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("malformed category data: %w", err)
		}
		switch {
		case page.List != nil:
			items = page.List
		case page.Records != nil:
			items = page.Records
		default:
			items = page.DataList
		}
	}

	out := make([]policy.Category, 0, len(items))
	for _, it := range items {
		id := strings.Trim(string(it.ID), `"`)
		if id == "" || id == "null" {
			continue
		}
		size, _ := strconv.ParseFloat(strings.Trim(string(it.DiameterSize), `" `), 64)
		out = append(out, policy.Category{
			ID:           id,
			MaterialName: strings.TrimSpace(it.MaterialName),
			DiameterSize: size,
		})
	}
	return out, nil
}
