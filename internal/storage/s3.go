package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3Client builds a path-style S3 client from the AWS_* environment
// variables.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnvString("AWS_REGION", "us-east-1")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3GraphStore writes every graph as a JSON object named after its content
// ID, so identical graphs share one object. A small ref object per document
// holds the content ID of its latest graph.
type S3GraphStore struct {
	client s3API
	bucket string
	prefix string
}

func NewS3GraphStore(client s3API, bucket, prefix string) *S3GraphStore {
	return &S3GraphStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3GraphStore) key(contentID string) string {
	return path.Join(s.prefix, "graphs", contentID+".json")
}

func (s *S3GraphStore) refPrefix() string {
	return path.Join(s.prefix, "documents") + "/"
}

func (s *S3GraphStore) refKey(documentID string) string {
	return s.refPrefix() + url.PathEscape(documentID)
}

func (s *S3GraphStore) Store(ctx context.Context, kg *common.KnowledgeGraph) (string, error) {
	payload, contentID, err := store.Encode(kg)
	if err != nil {
		return "", util.Permanent(err)
	}
	key := s.key(contentID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"document-id": kg.DocumentID,
			"graph-id":    kg.GraphID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload graph to S3: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.refKey(kg.DocumentID)),
		Body:        strings.NewReader(contentID),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document ref to S3: %w", err)
	}
	logger.Debug("[Store][S3] Stored graph", "document_id", kg.DocumentID, "key", key)
	return contentID, nil
}

func (s *S3GraphStore) Load(ctx context.Context, contentID string) (*common.KnowledgeGraph, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(contentID)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get graph from S3: %w", err)
	}
	defer result.Body.Close()

	payload, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph contents: %w", err)
	}
	return store.Decode(payload, contentID)
}

func (s *S3GraphStore) Latest(ctx context.Context) ([]string, error) {
	type ref struct{ documentID, contentID string }
	var refs []ref

	prefix := s.refPrefix()
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list document refs: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			documentID, err := url.PathUnescape(strings.TrimPrefix(key, prefix))
			if err != nil {
				logger.Warn("[Store][S3] Skipping malformed document ref", "key", key)
				continue
			}
			contentID, err := s.readRef(ctx, key)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref{documentID: documentID, contentID: contentID})
		}
	}

	slices.SortFunc(refs, func(a, b ref) int { return strings.Compare(a.documentID, b.documentID) })
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.contentID
	}
	return ids, nil
}

func (s *S3GraphStore) readRef(ctx context.Context, key string) (string, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get document ref %s: %w", key, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read document ref %s: %w", key, err)
	}
	return strings.TrimSpace(string(body)), nil
}
