package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner issues short-lived upload URLs for a single bucket.
type Presigner struct {
	client *s3.PresignClient
	bucket string
}

func NewPresigner(cfg sdkaws.Config, bucket string) *Presigner {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// LocalStack does not resolve virtual-hosted bucket names.
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return &Presigner{client: s3.NewPresignClient(client), bucket: bucket}
}

// PresignPut returns a PUT URL for key plus the headers the caller must send with it.
func (p *Presigner) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error) {
	if p.bucket == "" {
		return "", nil, fmt.Errorf("s3 bucket not configured")
	}

	input := &s3.PutObjectInput{
		Bucket: sdkaws.String(p.bucket),
		Key:    sdkaws.String(key),
	}
	if contentType != "" {
		input.ContentType = sdkaws.String(contentType)
	}

	presigned, err := p.client.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string, len(presigned.SignedHeader))
	for k, v := range presigned.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return presigned.URL, headers, nil
}
