package payments

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(ClientOptions{
		BaseURL:    baseURL,
		APIKey:     "key_test",
		SuccessURL: "http://localhost:3000/payment/success",
		CancelURL:  "http://localhost:3000/payment/cancel",
		Currency:   "USD",
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth, gotIdempotency string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "sess_1", "url": "https://gw.test/c/sess_1"}`))
	}))
	defer server.Close()

	session, err := testClient(server.URL).CreateCheckoutSession(59.99, CheckoutMetadata{
		UserID:      7,
		CourseID:    3,
		CourseTitle: "Go Fundamentals",
	})
	require.NoError(t, err)

	assert.Equal(t, "sess_1", session.ID)
	assert.Equal(t, "https://gw.test/c/sess_1", session.URL)
	assert.Equal(t, "Bearer key_test", gotAuth)
	assert.NotEmpty(t, gotIdempotency)
	assert.Equal(t, 59.99, gotBody["amount"])

	meta, ok := gotBody["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "7", meta["user_id"])
	assert.Equal(t, "3", meta["course_id"])
	assert.Equal(t, "Go Fundamentals", meta["course_title"])
}

func TestCreateCheckoutSessionGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateCheckoutSession(10, CheckoutMetadata{UserID: 1, CourseID: 1})
	assert.Error(t, err)
}

func TestCreateCheckoutSessionIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": ""}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateCheckoutSession(10, CheckoutMetadata{UserID: 1, CourseID: 1})
	assert.Error(t, err)
}

func TestCreateCheckoutSessionUnconfigured(t *testing.T) {
	client := NewClient(ClientOptions{})
	assert.False(t, client.Configured())

	_, err := client.CreateCheckoutSession(10, CheckoutMetadata{UserID: 1, CourseID: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
