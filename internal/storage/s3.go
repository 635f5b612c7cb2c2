package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	appconfig "github.com/Haole1945/drl-platform-sub001/internal/config"
)

type Client struct {
	s3     *s3.Client
	bucket string
}

func New(ctx context.Context, c appconfig.MinIO) (*Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpointURL(c.Endpoint),
			HostnameImmutable: true}, nil
	})
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey,
			c.SecretKey,
			"")),
		config.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading s3 config")
	}
	return &Client{s3: s3.NewFromConfig(cfg), bucket: c.Bucket}, nil
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return fmt.Sprintf("http://%s", endpoint)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.bucket}); err == nil {
		return nil
	}
	if _, err := c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &c.bucket}); err != nil {
		return errors.Wrapf(err, "creating bucket %s", c.bucket)
	}
	log.Println("created bucket", c.bucket)
	return nil
}

// EvidenceKey is the object key of an uploaded evidence file.
func EvidenceKey(name string) string {
	return fmt.Sprintf("evidence/%s/%s", uuid.New().String(), path.Base(name))
}

// PutEvidence stores an evidence file and returns its s3:// reference.
func (c *Client) PutEvidence(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	key := EvidenceKey(name)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &c.bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "putting %s", key)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}

func parseS3Ref(ref string) (string, string, error) {
	const p = "s3://"
	if !strings.HasPrefix(ref, p) {
		return "", "", fmt.Errorf("bad s3 ref (missing s3://): %q", ref)
	}
	s := strings.TrimPrefix(ref, p)
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return "", "", fmt.Errorf("bad s3 ref (need bucket/key): %q", ref)
	}
	return s[:slash], s[slash+1:], nil
}

// Open streams the object behind ref. The caller closes the body.
func (c *Client) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return nil, "", err
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		log.Printf("failed to get s3 object %s: %v", ref, err)
		return nil, "", errors.Wrapf(err, "getting %s", ref)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

// Read loads a whole object, refusing anything larger than limit bytes.
func (c *Client) Read(ctx context.Context, ref string, limit int64) ([]byte, string, error) {
	body, ct, err := c.Open(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()
	b, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading %s", ref)
	}
	if int64(len(b)) > limit {
		return nil, "", errors.Errorf("object %s is larger than %d bytes", ref, limit)
	}
	return b, ct, nil
}
