package staging

import (
	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"
)

// UploadItem batchAdd 接口的单条数据
type UploadItem struct {
	ChipID             string   `json:"chipId"`
	PipelineCategoryID string   `json:"pipelineCategoryId,omitempty"`
	MaterialName       string   `json:"materialName,omitempty"`
	DiameterSize       *float64 `json:"diameterSize,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Address            string   `json:"address,omitempty"`
}

// Payload 一次上传的数据
type Payload struct {
	Mode  policy.Mode
	Items []UploadItem
}

// BuildPayload 过滤已选记录并按模式附加字段
//
// 先检查是否有选中记录，再检查模式要求的字段。
func BuildPayload(mode policy.Mode, records []ledger.TagRecord, aux policy.AuxiliaryFields) (Payload, error) {
	var selected []ledger.TagRecord
	for _, r := range records {
		if r.Selected {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return Payload{}, invalid(NothingSelected)
	}

	template := UploadItem{}
	switch mode {
	case policy.ModeRegistration:
		c := aux.Classification
		if c == nil || c.ID == "" || c.MaterialName == "" {
			return Payload{}, invalid(MissingClassification)
		}
		size := c.DiameterSize
		template.PipelineCategoryID = c.ID
		template.MaterialName = c.MaterialName
		template.DiameterSize = &size
	case policy.ModeInstallation:
		if aux.Longitude == nil || aux.Latitude == nil {
			return Payload{}, invalid(MissingLocation)
		}
		lon, lat := *aux.Longitude, *aux.Latitude
		template.Longitude = &lon
		template.Latitude = &lat
	case policy.ModeOutbound:
		if aux.Address == "" {
			return Payload{}, invalid(MissingAddress)
		}
		template.Address = aux.Address
	}

	items := make([]UploadItem, 0, len(selected))
	for _, r := range selected {
		item := template
		item.ChipID = r.TID
		items = append(items, item)
	}
	return Payload{Mode: mode, Items: items}, nil
}
