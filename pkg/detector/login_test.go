package detector

import (
	"testing"

	"go-phishguard/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		req  models.AnalysisRequest
		want bool
	}{
		{
			name: "post with credentials",
			req: models.AnalysisRequest{
				URL:    "https://example.com/api",
				Method: "POST",
				Body:   map[string]any{"username": "bob", "password": "secret"},
			},
			want: true,
		},
		{
			name: "post to login endpoint",
			req: models.AnalysisRequest{
				URL:    "https://example.com/login",
				Method: "post",
				Body:   map[string]any{"foo": "bar"},
			},
			want: true,
		},
		{
			name: "bare post to unrelated path",
			req: models.AnalysisRequest{
				URL:    "https://example.com/api/items",
				Method: "POST",
				Body:   map[string]any{"foo": "bar"},
			},
			want: false,
		},
		{
			name: "get login page",
			req: models.AnalysisRequest{
				URL:    "https://example.com/login",
				Method: "GET",
			},
			want: false,
		},
		{
			name: "get with auth header to oauth endpoint",
			req: models.AnalysisRequest{
				URL:     "https://example.com/oauth/token",
				Method:  "GET",
				Headers: map[string]string{"authorization": "Bearer abc"},
			},
			want: true,
		},
		{
			name: "password without identity field",
			req: models.AnalysisRequest{
				URL:    "https://example.com/api",
				Method: "POST",
				Body:   map[string]any{"pwd": "x"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.req))
		})
	}
}

func TestDetailsMatchesDetect(t *testing.T) {
	req := models.AnalysisRequest{
		URL:     "https://EXAMPLE.com/Sign-In?next=/home",
		Method:  "GET",
		Headers: map[string]string{"AUTHORIZATION": "Basic Zm9vOmJhcg=="},
		Body:    map[string]any{"Email": "a@b.c", "Passwd": "x"},
	}

	got := Details(req)
	assert.False(t, got.IsPost)
	assert.True(t, got.HasCredentials)
	assert.True(t, got.IsAuthEndpoint)
	assert.True(t, got.HasAuthHeader)
	assert.True(t, got.IsLoginAttempt)
	assert.Equal(t, got.IsLoginAttempt, Detect(req))
}

func TestEmptyBodyHasNoCredentials(t *testing.T) {
	assert.False(t, hasCredentialFields(models.AnalysisRequest{}))
	assert.False(t, hasCredentialFields(models.AnalysisRequest{Body: map[string]any{}}))
}
