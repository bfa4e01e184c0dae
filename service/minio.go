package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fakesociety/RentGuard360/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ContractObjectKey is where an uploaded contract PDF is stored
func ContractObjectKey(userID, contractID string) string {
	return fmt.Sprintf("uploads/%s/contract-%s.pdf", userID, contractID)
}

// EditedObjectKey is where the edited text of a contract stored at
// objectKey is kept
func EditedObjectKey(objectKey string) string {
	return strings.TrimSuffix(objectKey, ".pdf") + "_edited.txt"
}

// ReportObjectKey is where a finished analysis report is archived
func ReportObjectKey(userID, contractID string) string {
	return fmt.Sprintf("results/%s/%s.json", userID, contractID)
}

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadFile stores an object under objectName
func (s *MinioService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// ArchiveReport stores v as a JSON document under objectName
func (s *MinioService) ArchiveReport(ctx context.Context, objectName string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return s.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), "application/json")
}

// GetPresignedURL generates a presigned URL for the object with expiration
func (s *MinioService) GetPresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// DeleteFile deletes a file from MINIO
func (s *MinioService) DeleteFile(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
