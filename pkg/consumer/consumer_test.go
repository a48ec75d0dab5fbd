package consumer

import (
	"context"
	"errors"
	"testing"

	"go-phishguard/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnalyzer struct {
	got []models.AnalysisRequest
	err error
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisVerdict, error) {
	r.got = append(r.got, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.AnalysisVerdict{IsLoginAttempt: true, RiskLevel: models.RiskMedium, Action: models.ActionWarned}, nil
}

func TestHandleMessage(t *testing.T) {
	a := &recordingAnalyzer{}
	c := &Consumer{analyzer: a}

	v := c.handleMessage(context.Background(),
		[]byte(`{"url":"http://192.168.1.1/login","method":"POST","body":{"username":"u","password":"p"}}`))
	require.NotNil(t, v)
	assert.Equal(t, models.ActionWarned, v.Action)

	require.Len(t, a.got, 1)
	assert.Equal(t, "POST", a.got[0].Method)
	assert.False(t, a.got[0].Timestamp.IsZero())
	assert.Equal(t, "p", a.got[0].Body["password"])
}

func TestHandleMessageDefaultsMethod(t *testing.T) {
	a := &recordingAnalyzer{}
	c := &Consumer{analyzer: a}

	c.handleMessage(context.Background(), []byte(`{"url":"https://example.com"}`))
	require.Len(t, a.got, 1)
	assert.Equal(t, "GET", a.got[0].Method)
}

func TestHandleMessageSkipsMalformed(t *testing.T) {
	a := &recordingAnalyzer{}
	c := &Consumer{analyzer: a}

	assert.Nil(t, c.handleMessage(context.Background(), []byte(`not json`)))
	assert.Nil(t, c.handleMessage(context.Background(), []byte(`{"method":"POST"}`)))
	assert.Empty(t, a.got)
}

func TestHandleMessageAnalyzeError(t *testing.T) {
	a := &recordingAnalyzer{err: errors.New("boom")}
	c := &Consumer{analyzer: a}

	assert.Nil(t, c.handleMessage(context.Background(), []byte(`{"url":"https://example.com","method":"POST"}`)))
	assert.Len(t, a.got, 1)
}
