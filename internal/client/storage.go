package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wisefido-rfid/internal/staging"

	"go.uber.org/zap"
)

const (
	pathPipeTypes     = "/sys/dict/data/page"
	pathManufacturers = "/pipeline/manufacturer/list"
	pathProducts      = "/pipeline/product/list"
	pathSuppliers     = "/pipeline/supplier/list"
	pathChipInfo      = "/pipeline/chip/info"
	pathBatchStorage  = "/pipeline/chip/batchStorage"

	pipeTypeDict = "pipeline_type"
)

// StorageOptions 获取入库单某个下拉字段的选项
//
// 管道类型来自字典接口 {dataList: [{dictLabel, dictValue}]}，
// 其余字段是 [{id, name}] 列表。
func (c *BackendClient) StorageOptions(ctx context.Context, field staging.StorageField) ([]staging.Option, error) {
	req, err := c.authorized()
	if err != nil {
		return nil, err
	}

	op := "fetch " + string(field)
	var path string
	switch field {
	case staging.FieldPipeType:
		path = pathPipeTypes
		req.SetQueryParam("dictType", pipeTypeDict)
	case staging.FieldManufacturer:
		path = pathManufacturers
	case staging.FieldProduct:
		path = pathProducts
	case staging.FieldSupplier:
		path = pathSuppliers
	default:
		return nil, fmt.Errorf("unknown storage field %q", field)
	}

	data, err := c.call(ctx, op, req, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var opts []staging.Option
	if field == staging.FieldPipeType {
		opts, err = parseDictOptions(data)
	} else {
		opts, err = parseNamedOptions(data)
	}
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	c.logger.Debug("Fetched storage options",
		zap.String("field", string(field)),
		zap.Int("count", len(opts)),
	)
	return opts, nil
}

// ChipInfo 查询单个芯片的登记信息
//
// 业务码非成功表示后台没有该芯片，返回 nil, nil。
func (c *BackendClient) ChipInfo(ctx context.Context, chipID string) (*staging.ChipInfo, error) {
	req, err := c.authorized()
	if err != nil {
		return nil, err
	}
	req.SetQueryParam("chipId", chipID)

	data, err := c.call(ctx, "chip info", req, http.MethodGet, pathChipInfo)
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) {
			return nil, nil
		}
		return nil, err
	}

	info, err := parseChipInfo(data)
	if err != nil {
		return nil, &NetworkError{Op: "chip info", Err: err}
	}
	return info, nil
}

// BatchStorage 批量入库
func (c *BackendClient) BatchStorage(ctx context.Context, items []staging.StorageItem) error {
	req, err := c.authorized()
	if err != nil {
		return err
	}
	req.SetHeader("Content-Type", "application/json").SetBody(items)

	if _, err := c.call(ctx, "batch storage", req, http.MethodPost, pathBatchStorage); err != nil {
		return err
	}

	c.logger.Info("Stored chip batch", zap.Int("count", len(items)))
	return nil
}

func rawID(raw json.RawMessage) string {
	id := strings.Trim(string(raw), `"`)
	if id == "null" {
		return ""
	}
	return id
}

func parseDictOptions(data json.RawMessage) ([]staging.Option, error) {
	var page struct {
		DataList []struct {
			DictLabel string          `json:"dictLabel"`
			DictValue json.RawMessage `json:"dictValue"`
		} `json:"dataList"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("malformed dict data: %w", err)
	}

	out := make([]staging.Option, 0, len(page.DataList))
	for _, it := range page.DataList {
		value := rawID(it.DictValue)
		if it.DictLabel == "" || value == "" {
			continue
		}
		out = append(out, staging.Option{ID: value, Name: it.DictLabel})
	}
	return out, nil
}

func parseNamedOptions(data json.RawMessage) ([]staging.Option, error) {
	var items []struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("malformed option data: %w", err)
	}

	out := make([]staging.Option, 0, len(items))
	for _, it := range items {
		out = append(out, staging.Option{ID: rawID(it.ID), Name: it.Name})
	}
	return out, nil
}

func parseChipInfo(data json.RawMessage) (*staging.ChipInfo, error) {
	var raw struct {
		MaterialName string          `json:"materialName"`
		DiameterSize json.RawMessage `json:"diameterSize"`
	}
	if len(data) == 0 || string(data) == "null" {
		return &staging.ChipInfo{}, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed chip info: %w", err)
	}

	info := &staging.ChipInfo{MaterialName: strings.TrimSpace(raw.MaterialName)}
	if s := strings.Trim(string(raw.DiameterSize), `" `); s != "" && s != "null" {
		if size, err := strconv.ParseFloat(s, 64); err == nil {
			info.DiameterSize = &size
		}
	}
	return info, nil
}
