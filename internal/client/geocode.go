package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Location 地址解析结果
type Location struct {
	Longitude        float64
	Latitude         float64
	FormattedAddress string
}

type amapResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Geocodes []struct {
		FormattedAddress json.RawMessage `json:"formatted_address"`
		Location         string          `json:"location"` // "经度,纬度"
	} `json:"geocodes"`
}

// GeocodeClient 高德地理编码客户端
type GeocodeClient struct {
	httpClient *resty.Client
	url        string
	key        string
	logger     *zap.Logger
}

// NewGeocodeClient 创建地理编码客户端
func NewGeocodeClient(url, key string, timeout time.Duration, logger *zap.Logger) *GeocodeClient {
	return &GeocodeClient{
		httpClient: resty.New().SetTimeout(timeout).SetHeader("User-Agent", userAgent),
		url:        url,
		key:        key,
		logger:     logger,
	}
}

// Geocode 地址 -> 经纬度
func (c *GeocodeClient) Geocode(ctx context.Context, address string) (*Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressNotFound
	}

	var result amapResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":     c.key,
			"address": address,
			"output":  "json",
		}).
		Get(c.url)
	if err != nil {
		return nil, &NetworkError{Op: "geocode", Err: err}
	}
	if resp.IsError() {
		return nil, &NetworkError{Op: "geocode", StatusCode: resp.StatusCode()}
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &NetworkError{Op: "geocode", Err: fmt.Errorf("malformed response: %w", err)}
	}

	if result.Status != "1" {
		msg := result.Info
		if msg == "" {
			msg = "请求失败"
		}
		return nil, &BusinessError{Op: "geocode", Code: result.Status, Message: msg}
	}
	if len(result.Geocodes) == 0 {
		return nil, ErrAddressNotFound
	}

	first := result.Geocodes[0]
	lng, lat, err := parseLocation(first.Location)
	if err != nil {
		return nil, &NetworkError{Op: "geocode", Err: err}
	}

	loc := &Location{Longitude: lng, Latitude: lat}
	// 高德在无值时会返回 [] 而不是字符串
	_ = json.Unmarshal(first.FormattedAddress, &loc.FormattedAddress)

	c.logger.Debug("Geocoded address",
		zap.String("address", address),
		zap.Float64("longitude", lng),
		zap.Float64("latitude", lat),
	)
	return loc, nil
}

func parseLocation(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed location: %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed latitude: %w", err)
	}
	return lng, lat, nil
}
