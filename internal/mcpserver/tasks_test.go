package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/text2quiz/text2quiz/internal/progress"
)

func TestMapStage(t *testing.T) {
	assert.Equal(t, JobStatusExtracting, mapStage(progress.StageExtract))
	assert.Equal(t, JobStatusExtracting, mapStage(progress.StageOCR))
	assert.Equal(t, JobStatusAnalyzing, mapStage(progress.StageAnalyze))
	assert.Equal(t, JobStatusGenerating, mapStage(progress.StageGenerate))
	assert.Equal(t, JobStatusUploading, mapStage(progress.StageUpload))
	assert.Equal(t, JobStatusComplete, mapStage(progress.StageComplete))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "https://example.com/a", sourceName(GenerateRequest{InputURL: "https://example.com/a", Filename: "doc.pdf"}))
	assert.Equal(t, "doc.pdf", sourceName(GenerateRequest{Filename: "doc.pdf"}))
	assert.Equal(t, "inline text", sourceName(GenerateRequest{InputText: "hola"}))
}

func TestAuthContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	// Absent: unauthenticated zero value
	assert.False(t, AuthFromContext(ctx).Authenticated)

	ctx = WithAuthResult(ctx, AuthResult{Authenticated: true, UserID: "u1", Role: "admin"})
	got := AuthFromContext(ctx)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "admin", got.Role)
}

func TestNewQuizID(t *testing.T) {
	a, err := NewQuizID()
	require.NoError(t, err)
	b, err := NewQuizID()
	require.NoError(t, err)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestImageContentTypes(t *testing.T) {
	assert.Equal(t, "image/png", imageContentTypes[".png"])
	assert.Equal(t, "image/jpeg", imageContentTypes[".jpg"])
	_, ok := imageContentTypes[".pdf"]
	assert.False(t, ok)
}
