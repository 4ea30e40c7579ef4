package model

import "errors"

// 错误分类，边界处通过 %w 包装，调用方使用 errors.Is 判断
var (
	ErrDecode      = errors.New("audio decode error")
	ErrPersistence = errors.New("persistence error")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrNotLoaded   = errors.New("audio not loaded")
)
