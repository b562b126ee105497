package mcpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// JobStatus represents the state of a quiz generation job.
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusExtracting JobStatus = "extracting"
	JobStatusAnalyzing  JobStatus = "analyzing"
	JobStatusGenerating JobStatus = "generating"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// QuizItem is the DynamoDB record for a quiz job.
type QuizItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	GSI1PK          string  `dynamodbav:"GSI1PK"`
	GSI1SK          string  `dynamodbav:"GSI1SK"`
	QuizID          string  `dynamodbav:"quizId"`
	Title           string  `dynamodbav:"title,omitempty"`
	Owner           string  `dynamodbav:"owner"`
	SourceFilename  string  `dynamodbav:"sourceFilename,omitempty"`
	SourceKey       string  `dynamodbav:"sourceKey,omitempty"`
	SourceURL       string  `dynamodbav:"sourceUrl,omitempty"`
	QuizKey         string  `dynamodbav:"quizKey,omitempty"`
	QuizURL         string  `dynamodbav:"quizUrl,omitempty"`
	Difficulty      string  `dynamodbav:"difficulty,omitempty"`
	Language        string  `dynamodbav:"language,omitempty"`
	QuestionCount   int     `dynamodbav:"questionCount,omitempty"`
	WordCount       int     `dynamodbav:"wordCount,omitempty"`
	PageCount       int     `dynamodbav:"pageCount,omitempty"`
	Status          string  `dynamodbav:"status"`
	ProgressPercent float64 `dynamodbav:"progressPercent,omitempty"`
	StageMessage    string  `dynamodbav:"stageMessage,omitempty"`
	ErrorMessage    string  `dynamodbav:"errorMessage,omitempty"`
	Model           string  `dynamodbav:"model,omitempty"`
	QuizJSON        string  `dynamodbav:"quizJson,omitempty"`
	CreatedAt       string  `dynamodbav:"createdAt"`

	// Usage tracking fields (set after pipeline completion)
	UserID         string `dynamodbav:"userId,omitempty"`
	InputCharCount int    `dynamodbav:"inputCharCount,omitempty"`
}

// Store handles DynamoDB operations for quiz jobs.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// NewStore creates a DynamoDB store.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// NewQuizID generates a ULID for a new quiz.
func NewQuizID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// CreateJob inserts a new quiz job with status=submitted.
func (s *Store) CreateJob(ctx context.Context, id, owner, sourceFilename, model, language string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	item := QuizItem{
		PK:             "QUIZ#" + id,
		SK:             "METADATA",
		GSI1PK:         "QUIZZES",
		GSI1SK:         now + "#" + id,
		QuizID:         id,
		Owner:          owner,
		SourceFilename: sourceFilename,
		Status:         string(JobStatusSubmitted),
		Model:          model,
		Language:       language,
		CreatedAt:      now,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal job item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put job item: %w", err)
	}
	return nil
}

// UpdateProgress updates the job's status, progress percent, and stage message.
func (s *Store) UpdateProgress(ctx context.Context, id string, status JobStatus, percent float64, message string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "QUIZ#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String("SET #status = :status, progressPercent = :pct, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":pct":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", percent)},
			":msg":    &types.AttributeValueMemberS{Value: message},
		},
	})
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompletionInfo holds the final metadata written when a job finishes.
type CompletionInfo struct {
	Title         string
	Difficulty    string
	QuestionCount int
	WordCount     int
	PageCount     int
	QuizJSON      string
	QuizKey       string
	QuizURL       string
	SourceKey     string
	SourceURL     string
}

// CompleteJob marks the job as complete with final metadata.
func (s *Store) CompleteJob(ctx context.Context, id string, info CompletionInfo) error {
	updateExpr := "SET #status = :status, progressPercent = :pct, stageMessage = :msg, title = :title, difficulty = :diff, questionCount = :qc, wordCount = :wc, pageCount = :pc, quizJson = :qj"
	exprValues := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(JobStatusComplete)},
		":pct":    &types.AttributeValueMemberN{Value: "1.00"},
		":msg":    &types.AttributeValueMemberS{Value: "Complete"},
		":title":  &types.AttributeValueMemberS{Value: info.Title},
		":diff":   &types.AttributeValueMemberS{Value: info.Difficulty},
		":qc":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", info.QuestionCount)},
		":wc":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", info.WordCount)},
		":pc":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", info.PageCount)},
		":qj":     &types.AttributeValueMemberS{Value: info.QuizJSON},
	}

	if info.QuizKey != "" {
		updateExpr += ", quizKey = :qkey"
		exprValues[":qkey"] = &types.AttributeValueMemberS{Value: info.QuizKey}
	}
	if info.QuizURL != "" {
		updateExpr += ", quizUrl = :qurl"
		exprValues[":qurl"] = &types.AttributeValueMemberS{Value: info.QuizURL}
	}
	if info.SourceKey != "" {
		updateExpr += ", sourceKey = :skey"
		exprValues[":skey"] = &types.AttributeValueMemberS{Value: info.SourceKey}
	}
	if info.SourceURL != "" {
		updateExpr += ", sourceUrl = :surl"
		exprValues[":surl"] = &types.AttributeValueMemberS{Value: info.SourceURL}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "QUIZ#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String(updateExpr),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks the job as failed with an error message.
func (s *Store) FailJob(ctx context.Context, id, errMsg string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "QUIZ#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String("SET #status = :status, errorMessage = :err, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":err":    &types.AttributeValueMemberS{Value: errMsg},
			":msg":    &types.AttributeValueMemberS{Value: "Failed: " + errMsg},
		},
	})
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetQuiz retrieves a single quiz job by ID.
func (s *Store) GetQuiz(ctx context.Context, id string) (*QuizItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "QUIZ#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item QuizItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return &item, nil
}

// ListQuizzes returns quiz jobs ordered by creation time (newest first) via GSI1.
func (s *Store) ListQuizzes(ctx context.Context, limit int, cursor string) ([]QuizItem, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "QUIZZES"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		// cursor is the full GSI1SK value ({timestamp}#{id})
		parts := strings.SplitN(cursor, "#", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		quizID := parts[1]
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "QUIZ#" + quizID},
			"SK":     &types.AttributeValueMemberS{Value: "METADATA"},
			"GSI1PK": &types.AttributeValueMemberS{Value: "QUIZZES"},
			"GSI1SK": &types.AttributeValueMemberS{Value: cursor},
		}
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list quizzes: %w", err)
	}

	var items []QuizItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal quiz list: %w", err)
	}

	var nextCursor string
	if result.LastEvaluatedKey != nil {
		if gsi1sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			nextCursor = gsi1sk.Value
		}
	}

	return items, nextCursor, nil
}
