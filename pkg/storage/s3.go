package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageSize is the maximum allowed size for avatar and cover uploads (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderAvatars is the S3 prefix for profile avatars.
	FolderAvatars = "avatars"
	// FolderCovers is the S3 prefix for event cover images.
	FolderCovers = "covers"
)

// AllowedImageTypes maps accepted image MIME types to their canonical extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AvatarsBucket        string
	EventImagesBucket    string
	PresignExpireMinutes int
}

// PresignedUpload is what a client needs to PUT an object directly and reference it afterwards.
type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// S3 provides presigned uploads and object management for user-supplied images.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	logger  *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// ImageExtension returns the extension for an allowed image content type, or "" if not allowed.
func ImageExtension(contentType string) string {
	return AllowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// AvatarKey returns the S3 object key for a new avatar: avatars/{user_id}/{random}{ext}.
func AvatarKey(userID uuid.UUID, ext string) string {
	return path.Join(FolderAvatars, userID.String(), uuid.NewString()+ext)
}

// CoverKey returns the S3 object key for a new event cover: covers/{event_id}/{random}{ext}.
func CoverKey(eventID uuid.UUID, ext string) string {
	return path.Join(FolderCovers, eventID.String(), uuid.NewString()+ext)
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// AvatarsBucket returns the avatars bucket name.
func (s *S3) AvatarsBucket() string { return s.cfg.AvatarsBucket }

// EventImagesBucket returns the event images bucket name.
func (s *S3) EventImagesBucket() string { return s.cfg.EventImagesBucket }

// PublicObjectURL returns the public URL for an object (no signing; buckets serve reads publicly).
func (s *S3) PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}

// PresignUpload returns a presigned PUT URL limited to contentType, plus the object's eventual public URL.
func (s *S3) PresignUpload(ctx context.Context, bucket, key, contentType string) (*PresignedUpload, error) {
	expires := s.PresignExpire()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &PresignedUpload{
		UploadURL: req.URL,
		PublicURL: s.PublicObjectURL(bucket, key),
		Key:       key,
		ExpiresAt: time.Now().Add(expires).UTC(),
	}, nil
}

// DeleteObject removes an object from S3.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// KeyFromPublicURL extracts the object key from a URL produced by PublicObjectURL for bucket.
// Returns "" when the URL does not belong to the bucket.
func (s *S3) KeyFromPublicURL(bucket, url string) string {
	prefix := s.PublicObjectURL(bucket, "")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
