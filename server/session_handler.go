package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pbrusco/musicians-helper/core/editing"
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/core/utils"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

// ========== 视图 ==========

// ViewHandler 当前会话的完整视图
func (s *Server) ViewHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// LayoutHandler 当前小节布局
func (s *Server) LayoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Layout())
}

// ========== 音频与导入导出 ==========

// UploadAudioHandler 上传音频：multipart 的 file 字段，或原始请求体加 ?name=
func (s *Server) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxAudioSize)

	var (
		data     []byte
		fileName string
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, validationf("missing file field: %v", ferr))
			return
		}
		defer file.Close()
		fileName = header.Filename
		data, err = io.ReadAll(file)
	} else {
		fileName = r.URL.Query().Get("name")
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, validationf("read audio: %v", err))
		return
	}
	if fileName == "" {
		fileName = "audio.wav"
	}
	fileName = filepath.Base(fileName)

	logger.Info("[API] 上传音频",
		logger.ProjectID(sess.ID()),
		logger.String("file", fileName),
		logger.Int("bytes", len(data)))

	if err := sess.LoadAudio(r.Context(), data, fileName); err != nil {
		if !errors.Is(err, model.ErrDecode) {
			err = fmt.Errorf("%v: %w", err, model.ErrPersistence)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// ExportMusicXMLHandler 下载 MusicXML
func (s *Server) ExportMusicXMLHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	data, err := sess.ExportMusicXML()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.recordare.musicxml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.musicxml"`, sess.ID()))
	w.Write(data)
}

// ImportMusicXMLHandler 用 MusicXML 替换当前小节
func (s *Server) ImportMusicXMLHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, validationf("read body: %v", err))
		return
	}
	if err := sess.ImportMusicXML(data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// ExportMIDIHandler 下载标准 MIDI 文件
func (s *Server) ExportMIDIHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := sess.ExportMIDI(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mid"`, sess.ID()))
	w.Write(buf.Bytes())
}

// ========== 传输控制 ==========

// TogglePlayHandler 播放/暂停
func (s *Server) TogglePlayHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	sess.TogglePlay()
	writeJSON(w, http.StatusOK, sess.Status())
}

// StopHandler 停止并回到起点
func (s *Server) StopHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	sess.Stop()
	writeJSON(w, http.StatusOK, sess.Status())
}

// SeekRequest 跳转请求，三个字段取其一
type SeekRequest struct {
	Time    *float64 `json:"time,omitempty"`
	Measure *int     `json:"measure,omitempty"`
	Delta   *int     `json:"delta,omitempty"` // 相对当前小节
}

// SeekHandler 跳转到时间或小节
func (s *Server) SeekHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req SeekRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch {
	case req.Time != nil:
		sess.Seek(*req.Time)
	case req.Measure != nil:
		if !sess.SeekMeasure(*req.Measure) {
			writeError(w, fmt.Errorf("measure %d: %w", *req.Measure, model.ErrNotFound))
			return
		}
	case req.Delta != nil:
		sess.SeekRelative(*req.Delta)
	default:
		writeError(w, validationf("one of time, measure or delta is required"))
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// PlayRegionHandler 播放 [start, start+duration) 后停止
func (s *Server) PlayRegionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Start    float64 `json:"start"`
		Duration float64 `json:"duration"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Duration <= 0 || req.Start < 0 {
		writeError(w, validationf("invalid region %.3f+%.3f", req.Start, req.Duration))
		return
	}
	sess.PlayRegion(req.Start, req.Duration)
	writeJSON(w, http.StatusOK, sess.Status())
}

// LoopHandler 设置循环起止点、开关或清除
func (s *Server) LoopHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Action session.LoopAction `json:"action"`
		At     *float64           `json:"at,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.SetLoop(req.Action, req.At); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// ParamsHandler 修改速度、移调、音量和节拍器
func (s *Server) ParamsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var patch session.ParamsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.SetParams(patch))
}

// ========== 选区 ==========

type selectionResponse struct {
	Selection []int `json:"selection"`
}

// SelectHandler 设置选区
func (s *Server) SelectHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Indices []int `json:"indices"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selection: nonNil(sess.SelectMeasures(req.Indices))})
}

// PlaySelectionHandler 播放选区
func (s *Server) PlaySelectionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	if !sess.PlaySelection() {
		writeError(w, validationf("selection is empty"))
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// LoopSelectionHandler 循环选区
func (s *Server) LoopSelectionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	if !sess.LoopSelection() {
		writeError(w, validationf("selection is empty"))
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// DuplicateHandler 复制选区到其后
func (s *Server) DuplicateHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selection: nonNil(sess.DuplicateSelection())})
}

// ========== 小节编辑 ==========

// InsertMeasureHandler 在目标小节前/后插入空白小节
func (s *Server) InsertMeasureHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Target    int    `json:"target"`
		Placement string `json:"placement"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	var at editing.Placement
	switch req.Placement {
	case "before":
		at = editing.Before
	case "", "after":
		at = editing.After
	default:
		writeError(w, validationf("unknown placement %q", req.Placement))
		return
	}
	sess.InsertMeasure(req.Target, at)
	writeJSON(w, http.StatusOK, sess.View())
}

// AddMeasuresHandler 在末尾追加小节
func (s *Server) AddMeasuresHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	req := struct {
		Count int `json:"count"`
	}{Count: editing.DefaultBlockSize}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Count <= 0 {
		writeError(w, validationf("count must be positive"))
		return
	}
	if n := len(sess.State().Measures); req.Count > grid.MaxMeasures-n {
		writeError(w, validationf("count %d exceeds the limit of %d measures (have %d)", req.Count, grid.MaxMeasures, n))
		return
	}
	sess.AddMeasures(req.Count)
	writeJSON(w, http.StatusOK, sess.View())
}

// MeasurePatch 小节的部分更新
// 和弦与歌词是实时编辑，需要调用 /session/commit 合入历史；时长立即提交。
type MeasurePatch struct {
	Chords        *string  `json:"chords,omitempty"`
	Lyrics        *string  `json:"lyrics,omitempty"`
	Duration      *float64 `json:"duration,omitempty"`
	ClearDuration bool     `json:"clearDuration,omitempty"`
}

// UpdateMeasureHandler 修改小节文本或时长
func (s *Server) UpdateMeasureHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	var patch MeasurePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if patch.Duration != nil && *patch.Duration < grid.MinMeasureDuration {
		writeError(w, validationf("duration must be at least %.2fs", grid.MinMeasureDuration))
		return
	}

	found := true
	if patch.Chords != nil {
		found = sess.UpdateMeasureField(index, editing.FieldChords, *patch.Chords) && found
	}
	if patch.Lyrics != nil {
		found = sess.UpdateMeasureField(index, editing.FieldLyrics, *patch.Lyrics) && found
	}
	switch {
	case patch.ClearDuration:
		found = sess.SetMeasureDuration(index, nil) && found
	case patch.Duration != nil:
		found = sess.SetMeasureDuration(index, patch.Duration) && found
	}
	if !found {
		writeError(w, fmt.Errorf("measure %d: %w", index, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// DeleteMeasureHandler 删除小节
func (s *Server) DeleteMeasureHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	sess.DeleteMeasure(index)
	writeJSON(w, http.StatusOK, sess.View())
}

// DragHandler 拖动小节右边界到 time（实时编辑，松手后调用 commit）
func (s *Server) DragHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	var req struct {
		Time float64 `json:"time"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !sess.DragBoundary(index, req.Time) {
		writeError(w, fmt.Errorf("measure %d: %w", index, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, sess.Layout())
}

// ClearRubatoHandler 清除自由速度，未指定时使用选区或全部小节
func (s *Server) ClearRubatoHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Indices []int `json:"indices"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	sess.ClearRubato(req.Indices)
	writeJSON(w, http.StatusOK, sess.View())
}

// ========== 历史 ==========

// CommitHandler 把实时编辑合入历史
func (s *Server) CommitHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	sess.Commit()
	writeJSON(w, http.StatusOK, sess.View())
}

// UndoHandler 撤销
func (s *Server) UndoHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	sess.Undo()
	writeJSON(w, http.StatusOK, sess.View())
}

// RedoHandler 重做
func (s *Server) RedoHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	sess.Redo()
	writeJSON(w, http.StatusOK, sess.View())
}

// TransposeHandler 移调和弦和调号
func (s *Server) TransposeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Semitones int `json:"semitones"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess.Transpose(req.Semitones)
	writeJSON(w, http.StatusOK, sess.View())
}

// GridHandler 修改网格配置
func (s *Server) GridHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var patch model.GridPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	sess.SetGridConfig(patch)
	writeJSON(w, http.StatusOK, sess.View())
}

// ========== 标记 ==========

// AddMarkerHandler 添加标记
func (s *Server) AddMarkerHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	var req struct {
		Time  *float64 `json:"time"`
		Label string   `json:"label"`
		Color string   `json:"color"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := sess.CurrentTime()
	if req.Time != nil {
		t = *req.Time
	}
	if t < 0 {
		writeError(w, validationf("marker time must not be negative"))
		return
	}
	writeJSON(w, http.StatusCreated, sess.AddMarker(t, req.Label, req.Color))
}

// UpdateMarkerHandler 修改标记
func (s *Server) UpdateMarkerHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	var patch session.MarkerPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if !sess.UpdateMarker(id, patch) {
		writeError(w, fmt.Errorf("marker %s: %w", id, model.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMarkerHandler 删除标记
func (s *Server) RemoveMarkerHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if !sess.RemoveMarker(id) {
		writeError(w, fmt.Errorf("marker %s: %w", id, model.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
