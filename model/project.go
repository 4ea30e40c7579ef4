package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MeasureList 自定义类型用于 GORM JSON 字段的自动扫描
type MeasureList []Measure

// Scan 实现 sql.Scanner 接口
func (l *MeasureList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value 实现 driver.Valuer 接口
func (l MeasureList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

// MarkerList 标记列表 JSON 字段
type MarkerList []Marker

// Scan 实现 sql.Scanner 接口
func (l *MarkerList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value 实现 driver.Valuer 接口
func (l MarkerList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

// GridColumn 网格配置 JSON 字段
type GridColumn GridConfig

// Scan 实现 sql.Scanner 接口
func (g *GridColumn) Scan(value interface{}) error {
	return scanJSON(value, g)
}

// Value 实现 driver.Valuer 接口
func (g GridColumn) Value() (driver.Value, error) {
	data, err := json.Marshal(g)
	return string(data), err
}

// ParamsColumn 播放参数 JSON 字段
type ParamsColumn Params

// Scan 实现 sql.Scanner 接口
func (p *ParamsColumn) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// Value 实现 driver.Valuer 接口
func (p ParamsColumn) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	return string(data), err
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

// Project 持久化的项目（一段音频 + 其转写数据）
type Project struct {
	ID         string       `json:"id" gorm:"primaryKey;size:36"`
	Name       string       `json:"name" gorm:"size:255;not null"`
	FileName   string       `json:"fileName" gorm:"size:255"`
	AudioKey   string       `json:"-" gorm:"size:512"` // MinIO 对象名，空表示尚未上传音频
	Measures   MeasureList  `json:"measures" gorm:"type:json"`
	GridConfig GridColumn   `json:"gridConfig" gorm:"type:json"`
	Markers    MarkerList   `json:"markers" gorm:"type:json"`
	Params     ParamsColumn `json:"params" gorm:"type:json"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt" gorm:"index"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// Meta 返回项目摘要
func (p *Project) Meta() ProjectMeta {
	return ProjectMeta{
		ID:        p.ID,
		Name:      p.Name,
		FileName:  p.FileName,
		HasAudio:  p.AudioKey != "",
		UpdatedAt: p.UpdatedAt,
	}
}

// State 返回项目的转写数据
func (p *Project) State() ProjectState {
	return ProjectState{
		Measures:   CloneMeasures(p.Measures),
		GridConfig: GridConfig(p.GridConfig),
		Markers:    CloneMarkers(p.Markers),
		Params:     Params(p.Params),
	}
}

// ========== 非持久化结构 ==========

// ProjectMeta 项目列表项
type ProjectMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FileName  string    `json:"fileName"`
	HasAudio  bool      `json:"hasAudio"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectState 会话可交换的状态包
type ProjectState struct {
	Measures   []Measure  `json:"measures"`
	GridConfig GridConfig `json:"gridConfig"`
	Markers    []Marker   `json:"markers"`
	Params     Params     `json:"params"`
}

// ProjectFile 项目 JSON 导出格式
type ProjectFile struct {
	FileName   string      `json:"fileName"`
	GridConfig *GridConfig `json:"gridConfig"`
	Measures   []Measure   `json:"measures"`
	Markers    []Marker    `json:"markers"`
	Params     *Params     `json:"params,omitempty"`
}
