package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evalo-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Great lecture", payload["text"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tone": "positive", "confidence": 0.97}`))
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "test-key", 5*time.Second)
	tone, err := classifier.Classify(context.Background(), "Great lecture")
	require.NoError(t, err)
	assert.Equal(t, models.TonePositive, tone)
}

func TestClassify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "", 5*time.Second)
	_, err := classifier.Classify(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify_UnrecognizedTone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tone": "confused"}`))
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "", 5*time.Second)
	_, err := classifier.Classify(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "", 5*time.Second)
	_, err := classifier.Classify(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "", time.Second)
	_, err := classifier.Classify(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassify_NoURLConfigured(t *testing.T) {
	classifier := NewHTTPClassifier("", "", time.Second)
	_, err := classifier.Classify(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyRaw_PassesDetailedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["detailed"])

		w.Write([]byte(`{"tone": "negative", "scores": {"negative": 0.8, "neutral": 0.15, "positive": 0.05}}`))
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL, "", 5*time.Second)
	body, err := classifier.ClassifyRaw(context.Background(), "Too fast", true)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"scores"`)
}
