package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func BenchmarkClient_Do(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Remaining", "60")
		w.Header().Set("X-Ratelimit-Reset", "3600")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"123","username":"bench"}`))
	}))
	defer server.Close()

	client, _ := NewClient(http.DefaultClient, server.URL+"/api/v1/", "bench/1.0", &RateLimitConfig{RequestsPerMinute: 1e9, Burst: 1 << 20})
	ctx := context.Background()
	req := &Request{Method: http.MethodGet, Path: "identity", Token: "test-token"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.Do(ctx, req)
	}
}

func BenchmarkCaller_Call(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[],"next_exists":false}`))
	}))
	defer server.Close()

	client, _ := NewClient(http.DefaultClient, server.URL+"/api/v1/", "bench/1.0", &RateLimitConfig{RequestsPerMinute: 1e9, Burst: 1 << 20})
	store := NewCredentialStore("id", "secret", "")
	caller := NewCaller(client, store, NewConnectionManager(), nil, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		caller.Get(ctx, "all/listing", nil)
	}
}
