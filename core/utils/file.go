package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pbrusco/musicians-helper/model"
)

// MaxAudioSize 音频文件大小上限
const MaxAudioSize = 512 << 20

// IsRemote 是否为 http(s) 地址
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SourceName 返回本地路径或 URL 的文件名
func SourceName(src string) string {
	if IsRemote(src) {
		u, _ := url.Parse(src)
		name := path.Base(u.Path)
		if name == "/" || name == "." {
			return u.Host
		}
		return name
	}
	return filepath.Base(src)
}

// ReadAudio 读取本地文件或下载远程音频
func ReadAudio(ctx context.Context, src string) ([]byte, error) {
	if !IsRemote(src) {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("读取音频失败: %w", err)
		}
		if info.Size() > MaxAudioSize {
			return nil, fmt.Errorf("音频文件过大: %d 字节: %w", info.Size(), model.ErrValidation)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("读取音频失败: %w", err)
		}
		return data, nil
	}
	return DownloadFile(ctx, src)
}

// DownloadFile 下载文件内容
func DownloadFile(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("下载文件失败: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("保存文件失败: %w", err)
	}
	if len(data) > MaxAudioSize {
		return nil, fmt.Errorf("音频文件过大: %w", model.ErrValidation)
	}
	return data, nil
}

// TrimExt 去掉文件扩展名
func TrimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
