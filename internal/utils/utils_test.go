package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type valueResponse struct {
	Value int `json:"value"`
}

func TestDoPostSync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"value":42}`)
	}))
	defer server.Close()

	_, result, err := DoPostSync[valueResponse](context.Background(), server.Client(), server.URL, "test-key", map[string]string{"q": "test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result == nil || result.Value != 42 {
		t.Errorf("result = %+v", result)
	}
}

func TestDoPostSync_Non2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer server.Close()

	_, _, err := DoPostSync[valueResponse](context.Background(), nil, server.URL, "", nil)
	if err == nil {
		t.Fatal("expected error for 429")
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("StatusCode(err) = %d", StatusCode(err))
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("error should carry the body, got %v", err)
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("StatusCode of a plain error should be 0")
	}
}

func TestDoPostSync_UnmarshalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer server.Close()

	_, _, err := DoPostSync[valueResponse](context.Background(), server.Client(), server.URL, "", nil)
	if err == nil || !strings.Contains(err.Error(), "Response preview: not json") {
		t.Errorf("error = %v", err)
	}
}

func TestDoPostSync_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DoPostSync[valueResponse](ctx, server.Client(), server.URL, "", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 1200), 300},
		{"€€€€€€€€", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 5); got != "hello" {
		t.Errorf("exact length changed: %q", got)
	}
	got := TruncateString("hello world", 5)
	if !strings.HasPrefix(got, "hello... (truncated, total: 11 chars)") {
		t.Errorf("TruncateString = %q", got)
	}
	long := strings.Repeat("b", DefaultMaxStringLength+1)
	if got := TruncateString(long, -1); !strings.Contains(got, "truncated") {
		t.Error("negative maxLen should fall back to the default")
	}
}

func TestPtrAndTimer(t *testing.T) {
	if p := Ptr(0.2); *p != 0.2 {
		t.Errorf("Ptr = %v", *p)
	}

	timer := NewTimer()
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()
	if elapsed <= 0 || timer.GetDuration() != elapsed {
		t.Errorf("timer elapsed = %v, GetDuration = %v", elapsed, timer.GetDuration())
	}
}
