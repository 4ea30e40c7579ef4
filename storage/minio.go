package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pbrusco/musicians-helper/config"
	"github.com/pbrusco/musicians-helper/logger"
	"github.com/pbrusco/musicians-helper/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const audioPrefix = "audio"

// AudioStore 基于 MinIO 的音频文件存储，按项目ID分目录
type AudioStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewAudioStore 创建 MinIO 客户端
func NewAudioStore(cfg *config.Config) (*AudioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return &AudioStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}, nil
}

// EnsureBucket 检查存储桶，不存在则创建
func (s *AudioStore) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", s.bucket))
	return nil
}

// AudioKey 项目音频的对象名
func AudioKey(projectID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "audio.wav"
	}
	return path.Join(audioPrefix, projectID, name)
}

// PutAudio 上传项目音频，返回对象名
func (s *AudioStore) PutAudio(ctx context.Context, projectID, fileName string, data []byte) (string, error) {
	key := AudioKey(projectID, fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(fileName),
	})
	if err != nil {
		return "", fmt.Errorf("上传音频失败: %v: %w", err, model.ErrPersistence)
	}
	return key, nil
}

// GetAudio 下载音频
func (s *AudioStore) GetAudio(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取音频失败: %v: %w", err, model.ErrPersistence)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("音频 %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("读取音频失败: %v: %w", err, model.ErrPersistence)
	}
	return data, nil
}

// ProjectPrefix 项目目录前缀，projectID 为空时是所有项目
func ProjectPrefix(projectID string) string {
	if projectID == "" {
		return audioPrefix + "/"
	}
	return path.Join(audioPrefix, projectID) + "/"
}

// DeleteProject 删除项目目录下的所有对象
func (s *AudioStore) DeleteProject(ctx context.Context, projectID string) error {
	prefix := ProjectPrefix(projectID)
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除对象 %s 失败: %w", object.Key, err)
		}
	}
	return nil
}

func contentType(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".wav", ".wave":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
