// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"sql-smart-go/internal/config"
	"sql-smart-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Exporter 把查询结果文件上传到对象存储并返回可下载的地址。
type Exporter interface {
	Export(ctx context.Context, objectName string, data []byte) (string, error)
}

type minioExporter struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewExporter 初始化 MinIO 客户端并确保存储桶存在；未配置 endpoint 时返回 nil。
func NewExporter(ctx context.Context, cfg config.MinIOConfig) (Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	// 1. 初始化 MinIO 客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	// 2. 检查存储桶是否存在，如果不存在则创建
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket: %s", cfg.BucketName)

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &minioExporter{client: client, bucket: cfg.BucketName, expiry: expiry}, nil
}

// Export 上传 CSV 并生成预签名下载地址。
func (e *minioExporter) Export(ctx context.Context, objectName string, data []byte) (string, error) {
	_, err := e.client.PutObject(ctx, e.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	u, err := e.client.PresignedGetObject(ctx, e.bucket, objectName, e.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return u.String(), nil
}
