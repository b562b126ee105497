package mcpserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage handles S3 uploads for source documents and generated quizzes.
type Storage struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string // e.g. "https://quizzes.text2quiz.dev"
}

// NewStorage creates an S3 storage handler.
func NewStorage(client *s3.Client, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: cdnBaseURL}
}

// UploadSource uploads the raw source document and returns the S3 key
// and public URL. The key keeps the original extension so the document
// can be re-downloaded.
func (s *Storage) UploadSource(ctx context.Context, quizID, ext, contentType string, data []byte) (key, url string, err error) {
	key = "sources/" + quizID + ext
	if err := s.put(ctx, key, contentType, data); err != nil {
		return "", "", fmt.Errorf("upload source to s3: %w", err)
	}
	return key, s.cdnBaseURL + "/" + key, nil
}

// UploadQuiz uploads the generated quiz JSON and returns the S3 key and
// public URL.
func (s *Storage) UploadQuiz(ctx context.Context, quizID string, quizJSON []byte) (key, url string, err error) {
	key = "quizzes/" + quizID + ".json"
	if err := s.put(ctx, key, "application/json", quizJSON); err != nil {
		return "", "", fmt.Errorf("upload quiz to s3: %w", err)
	}
	return key, s.cdnBaseURL + "/" + key, nil
}

func (s *Storage) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}
