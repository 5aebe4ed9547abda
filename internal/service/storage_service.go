package service

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"ai_support_backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 定义通用存储接口，用于归档知识文档原始文件
type StorageProvider interface {
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
	GetURL(objectKey string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, objectKey)
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err = io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(objectKey), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, objectKey string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, objectKey))
}

func (p *LocalStorageProvider) GetURL(objectKey string) string {
	return "/uploads/" + objectKey
}

// MinioStorageProvider MinIO 存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(objectKey), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, objectKey string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, objectKey, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(objectKey string) string {
	return "/" + p.Config.MinioBucket + "/" + objectKey
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == "minio" {
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	}
	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}
	return &StorageService{Provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, objectKey, reader, size, contentType)
}

func (s *StorageService) Delete(ctx context.Context, objectKey string) error {
	return s.Provider.Delete(ctx, objectKey)
}

func (s *StorageService) GetURL(objectKey string) string {
	return s.Provider.GetURL(objectKey)
}
