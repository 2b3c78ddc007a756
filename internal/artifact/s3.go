package artifact

import (
	"bytes"
	"context"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/palikaprofile/chartcache/internal/config"
	"github.com/sirupsen/logrus"
)

// MirroredStore wraps a local Store and copies writes and deletes to an S3
// bucket so a CDN can front the generated charts. The local store stays
// authoritative: mirror failures are logged and never surfaced to callers.
type MirroredStore struct {
	Store
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	log      *logrus.Entry
}

func NewMirroredStore(logger *logrus.Logger, local Store, cfg *config.Config) *MirroredStore {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.S3Region),
		Credentials:      credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}

	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
	}

	sess := session.Must(session.NewSession(awsConfig))

	return &MirroredStore{
		Store:    local,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.S3Bucket,
		log:      logger.WithField("component", "artifact_mirror"),
	}
}

func (s *MirroredStore) Write(ctx context.Context, relPath string, content []byte) error {
	if err := s.Store.Write(ctx, relPath, content); err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(filepath.ToSlash(relPath)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"path": relPath, "error": err}).Warn("Mirror upload failed")
	}
	return nil
}

func (s *MirroredStore) Delete(ctx context.Context, relPath string) error {
	if err := s.Store.Delete(ctx, relPath); err != nil {
		return err
	}
	if relPath == "" {
		return nil
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filepath.ToSlash(relPath)),
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"path": relPath, "error": err}).Warn("Mirror delete failed")
	}
	return nil
}
