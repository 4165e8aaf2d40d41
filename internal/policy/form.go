package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFieldDisabled 当前模式下该字段不可编辑
var ErrFieldDisabled = errors.New("field is disabled in current mode")

// Category 管道参数（来自远端目录）
type Category struct {
	ID           string  `json:"id"`
	MaterialName string  `json:"materialName"`
	DiameterSize float64 `json:"diameterSize"`
}

// Key 展示/选择用的组合键，如 "PE 110"
func (c Category) Key() string {
	size := ""
	if c.DiameterSize != 0 {
		size = fmt.Sprintf("%g", c.DiameterSize)
	}
	return strings.TrimSpace(strings.TrimSpace(c.MaterialName) + " " + size)
}

// AuxiliaryFields 与单个标签无关、由模式决定的输入
type AuxiliaryFields struct {
	Classification *Category
	Longitude      *float64
	Latitude       *float64
	Address        string
}

// Empty 所有字段都为空
func (a AuxiliaryFields) Empty() bool {
	return a.Classification == nil && a.Longitude == nil && a.Latitude == nil && a.Address == ""
}

// Form 当前模式及其字段
type Form struct {
	mode    Mode
	enabled FieldSet
	aux     AuxiliaryFields
}

// NewForm 以指定模式创建
func NewForm(mode Mode) *Form {
	f := &Form{}
	f.SetMode(mode)
	return f
}

// SetMode 切换模式：先清空所有字段，再按新模式设置启用状态
func (f *Form) SetMode(mode Mode) {
	f.aux = AuxiliaryFields{}
	f.mode = mode
	f.enabled = FieldsEnabledFor(mode)
}

// Mode 当前模式
func (f *Form) Mode() Mode { return f.mode }

// Enabled 当前启用的字段
func (f *Form) Enabled() FieldSet { return f.enabled }

// Fields 当前字段值
func (f *Form) Fields() AuxiliaryFields { return f.aux }

// SetClassification 选择管道参数
func (f *Form) SetClassification(c Category) error {
	if !f.enabled.Classification {
		return fmt.Errorf("classification: %w", ErrFieldDisabled)
	}
	f.aux.Classification = &c
	return nil
}

// SetCoordinates 设置经纬度
func (f *Form) SetCoordinates(longitude, latitude float64) error {
	if !f.enabled.Geolocation {
		return fmt.Errorf("geolocation: %w", ErrFieldDisabled)
	}
	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return fmt.Errorf("coordinates out of range: %f,%f", longitude, latitude)
	}
	f.aux.Longitude = &longitude
	f.aux.Latitude = &latitude
	return nil
}

// SetAddress 设置项目地址
func (f *Form) SetAddress(address string) error {
	if !f.enabled.Address {
		return fmt.Errorf("address: %w", ErrFieldDisabled)
	}
	f.aux.Address = strings.TrimSpace(address)
	return nil
}
