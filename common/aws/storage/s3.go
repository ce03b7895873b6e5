package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ceramicnetwork/go-pulse/common"
	"github.com/ceramicnetwork/go-pulse/models"
)

var _ models.KeyValueRepository = &S3Store{}

// S3Store archives completed polls as JSON objects.
type S3Store struct {
	client *s3.Client
	logger models.Logger
	bucket string
}

func NewS3Store(logger models.Logger, s3Client *s3.Client, bucket string) *S3Store {
	return &S3Store{s3Client, logger, bucket}
}

func (s *S3Store) Store(ctx context.Context, key string, value interface{}) error {
	if jsonBytes, err := json.Marshal(value); err != nil {
		return err
	} else {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		defer httpCancel()

		putObjectIn := s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(ArchiveObjectKey(key)),
			Body:        bytes.NewReader(jsonBytes),
			ContentType: aws.String("application/json"),
		}
		if _, err = s.client.PutObject(httpCtx, &putObjectIn); err != nil {
			return fmt.Errorf("s3: archiving %s: %w", key, err)
		} else {
			s.logger.Debugf("s3: archived key: %s", key)
		}
	}
	return nil
}

// ArchiveObjectKey maps a poll key onto its object key under the archive folder.
func ArchiveObjectKey(key string) string {
	return "archive/" + key + ".json"
}
