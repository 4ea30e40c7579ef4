package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/midiexport"
	"github.com/pbrusco/musicians-helper/core/musicxml"
	"github.com/pbrusco/musicians-helper/model"
)

// EncodeProjectFile 序列化项目 JSON
func EncodeProjectFile(fileName string, state model.ProjectState) ([]byte, error) {
	cfg := state.GridConfig
	params := state.Params
	file := model.ProjectFile{
		FileName:   fileName,
		GridConfig: &cfg,
		Measures:   state.Measures,
		Markers:    state.Markers,
		Params:     &params,
	}
	if file.Measures == nil {
		file.Measures = []model.Measure{}
	}
	if file.Markers == nil {
		file.Markers = []model.Marker{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化项目失败: %w", err)
	}
	return data, nil
}

// DecodeProjectFile 解析项目 JSON
// gridConfig 和 measures 为必需字段；缺失或格式错误时返回 ErrValidation，不做部分应用。
func DecodeProjectFile(data []byte) (string, model.ProjectState, error) {
	var file model.ProjectFile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&file); err != nil {
		return "", model.ProjectState{}, fmt.Errorf("解析项目文件: %v: %w", err, model.ErrValidation)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", model.ProjectState{}, fmt.Errorf("项目文件末尾有多余内容: %w", model.ErrValidation)
	}
	if file.GridConfig == nil {
		return "", model.ProjectState{}, fmt.Errorf("缺少 gridConfig: %w", model.ErrValidation)
	}
	if file.Measures == nil {
		return "", model.ProjectState{}, fmt.Errorf("缺少 measures: %w", model.ErrValidation)
	}

	state := model.ProjectState{
		Measures:   editing.Renumber(file.Measures),
		GridConfig: grid.Sanitize(*file.GridConfig),
		Markers:    model.CloneMarkers(file.Markers),
		Params:     model.DefaultParams(),
	}
	if file.Params != nil {
		state.Params = *file.Params
	}
	for i := range state.Markers {
		if state.Markers[i].ID == "" {
			state.Markers[i].ID = uuid.New().String()
		}
	}
	return file.FileName, state, nil
}

// ========== 会话导出/导入 ==========

// ExportJSON 导出当前会话为项目 JSON
func (s *Session) ExportJSON() ([]byte, error) {
	s.mu.Lock()
	state := s.stateLocked()
	fileName := s.audio.FileName
	s.mu.Unlock()
	return EncodeProjectFile(fileName, state)
}

// ExportMusicXML 导出 MusicXML 乐谱
func (s *Session) ExportMusicXML() ([]byte, error) {
	s.mu.Lock()
	measures, cfg, title := model.CloneMeasures(s.measures), s.grid, s.name
	s.mu.Unlock()
	return musicxml.Export(measures, cfg, title)
}

// ExportMIDI 导出标准 MIDI 文件
func (s *Session) ExportMIDI(w io.Writer) error {
	s.mu.Lock()
	measures, cfg := model.CloneMeasures(s.measures), s.grid
	s.mu.Unlock()
	return midiexport.Export(w, measures, cfg)
}

// ImportMusicXML 用 MusicXML 的小节和网格替换当前内容（保留偏移），作为一步提交
func (s *Session) ImportMusicXML(data []byte) error {
	measures, cfg, err := musicxml.Import(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.Offset = s.grid.Offset
	s.measures = editing.Renumber(measures)
	if len(s.measures) == 0 {
		s.measures = editing.AddBlock(nil, editing.DefaultBlockSize)
	}
	s.grid = grid.Sanitize(cfg)
	s.selection = nil
	s.transport.ClearRegion()
	s.gridChangedLocked()
	s.commitLocked()
	return nil
}
