package staging

import (
	"errors"
	"fmt"
)

// Reason 校验失败原因
type Reason string

const (
	NothingSelected       Reason = "nothing_selected"
	MissingClassification Reason = "missing_classification"
	MissingLocation       Reason = "missing_location"
	MissingAddress        Reason = "missing_address"
	EmptyLedger           Reason = "empty_ledger"
	MissingStorageFields  Reason = "missing_storage_fields"
	NoChipSelected        Reason = "no_chip_selected"
)

// ErrUnknownOption 下拉选项序号不存在
var ErrUnknownOption = errors.New("unknown option")

var reasonMessages = map[Reason]string{
	NothingSelected:       "请先选择要上传的数据",
	MissingClassification: "请先选择管道参数",
	MissingLocation:       "请先填写经纬度",
	MissingAddress:        "请先填写项目地址",
	EmptyLedger:           "没有扫描数据可供导出",
	MissingStorageFields:  "请填写所有必填项（标记*的字段）",
	NoChipSelected:        "请选择要入库的芯片",
}

// ValidationError 批量操作前的输入校验错误，修正输入后可重试
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Message 面向用户的提示
func (e *ValidationError) Message() string {
	if m, ok := reasonMessages[e.Reason]; ok {
		return m
	}
	return string(e.Reason)
}

// Is 按原因比较，便于 errors.Is(err, &ValidationError{Reason: ...})
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

func invalid(r Reason) error {
	return &ValidationError{Reason: r}
}
