// Package storage archives audit notes as immutable objects in an
// S3-compatible bucket.
package storage

import (
	"alcyxob/equipment-app/internal/config"
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repository.AuditRepository = (*AuditArchive)(nil)

// ObjectClient is the part of *s3.Client the archive needs.
type ObjectClient interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// AuditArchive implements repository.AuditRepository on top of a bucket.
// One object per note under <prefix>/<equipmentID>/<recordedAt>-<noteID>.json.
type AuditArchive struct {
	client     ObjectClient
	bucketName string
	prefix     string
}

// NewAuditArchive wraps an existing client.
func NewAuditArchive(client ObjectClient, bucketName, prefix string) *AuditArchive {
	return &AuditArchive{
		client:     client,
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}
}

// NewS3AuditArchive builds the S3 client from config and wraps it.
func NewS3AuditArchive(ctx context.Context, cfg config.S3Config) (*AuditArchive, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: S3 audit archive initialized for endpoint: %s, bucket: %s", cfg.Endpoint, cfg.BucketName)
	return NewAuditArchive(client, cfg.BucketName, cfg.Prefix), nil
}

// NewS3Client creates a client for AWS or any S3-compatible endpoint (MinIO, Spaces).
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for S3: %v", err)
		return nil, err
	}

	endpoint := EndpointURL(cfg)
	return s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // S3-compatible stores expect path-style addressing
		}
	}), nil
}

// EndpointURL adds a scheme to a bare host:port endpoint according to UseSSL.
func EndpointURL(cfg config.S3Config) string {
	if cfg.Endpoint == "" || strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

// equipmentPrefix ends with a slash so one item's listing never picks up another's.
func (a *AuditArchive) equipmentPrefix(equipmentID primitive.ObjectID) string {
	return path.Join(a.prefix, equipmentID.Hex()) + "/"
}

// ObjectKey is where a note lives. Keys sort by recording time.
func (a *AuditArchive) ObjectKey(note *domain.AuditNote) string {
	stamp := note.RecordedAt.UTC().Format("20060102T150405.000000000Z")
	return a.equipmentPrefix(note.EquipmentID) + stamp + "-" + note.ID + ".json"
}

// Append writes the note once. An existing object with the same key is never replaced.
func (a *AuditArchive) Append(ctx context.Context, note *domain.AuditNote) error {
	if note.ID == "" {
		return fmt.Errorf("audit note has no id")
	}
	body, err := json.Marshal(note)
	if err != nil {
		return err
	}
	key := a.ObjectKey(note)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		log.Printf("ERROR: Failed to archive audit note '%s' to bucket '%s': %v", key, a.bucketName, err)
		return err
	}
	return nil
}

// ListByEquipment reads every archived note for the item, newest first.
func (a *AuditArchive) ListByEquipment(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucketName),
		Prefix: aws.String(a.equipmentPrefix(equipmentID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	notes := make([]domain.AuditNote, 0, len(keys))
	for _, key := range keys {
		note, err := a.get(ctx, key)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (a *AuditArchive) get(ctx context.Context, key string) (domain.AuditNote, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.AuditNote{}, err
	}
	defer out.Body.Close()

	var note domain.AuditNote
	if err := json.NewDecoder(out.Body).Decode(&note); err != nil {
		return domain.AuditNote{}, fmt.Errorf("decoding audit note %s: %w", key, err)
	}
	return note, nil
}
