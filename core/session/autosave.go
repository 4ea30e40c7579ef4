package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"
)

const saveTimeout = 10 * time.Second

// markDirtyLocked 标记未保存并重新开始防抖计时
func (s *Session) markDirtyLocked() {
	s.dirty = true
	if s.closed {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveGen++
	gen := s.saveGen
	s.saveTimer = time.AfterFunc(s.opts.AutosaveDelay, func() {
		s.mu.Lock()
		stale := s.closed || gen != s.saveGen
		s.mu.Unlock()
		if stale {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		_ = s.Save(ctx)
	})
}

func (s *Session) stopAutosaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveGen++
}

// Save 立即保存：先写草稿，再写数据库
// 数据库写入成功后删除草稿；失败时保留 Dirty 并记录 SaveError。
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	state := s.stateLocked()
	gen := s.saveGen
	s.mu.Unlock()

	if s.store.Drafts != nil {
		if err := s.store.Drafts.SaveDraft(ctx, s.id, state); err != nil {
			logger.Warn("保存草稿失败",
				logger.ProjectID(s.id),
				logger.ErrorField(err))
		}
	}
	if s.store.Projects == nil {
		return nil
	}

	err := s.store.Projects.SaveState(ctx, s.id, state)
	if err != nil {
		err = fmt.Errorf("保存项目 %s: %v: %w", s.id, err, model.ErrPersistence)
		logger.Error("自动保存失败",
			logger.ProjectID(s.id),
			logger.ErrorField(err))
	} else if s.store.Drafts != nil {
		if derr := s.store.Drafts.DeleteDraft(ctx, s.id); derr != nil {
			logger.Warn("删除草稿失败", logger.ProjectID(s.id), logger.ErrorField(derr))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.saveErr = err.Error()
	} else {
		s.saveErr = ""
		// 保存期间又有修改时保持 dirty，等待下一次防抖
		if gen == s.saveGen {
			s.dirty = false
		}
	}
	s.publishLocked(UpdateSave)
	return err
}
