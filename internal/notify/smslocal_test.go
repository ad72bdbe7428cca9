package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewSMSLocalClient_Defaults(t *testing.T) {
	client := NewSMSLocalClient("api-key", "", "")
	if client.APIKey != "api-key" {
		t.Errorf("APIKey = %q, want %q", client.APIKey, "api-key")
	}
	if client.BaseURL != "https://www.smslocal.com/dev/bulkV2" {
		t.Errorf("BaseURL = %q, want default", client.BaseURL)
	}
	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should be set")
	}
	if client.HTTPClient.Timeout != defaultTimeout {
		t.Errorf("HTTPClient.Timeout = %v, want %v", client.HTTPClient.Timeout, defaultTimeout)
	}
}

func TestSend_MFACodeRoute(t *testing.T) {
	var receivedBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q, want test-api-key", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&receivedBody); err != nil {
			t.Fatalf("Decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("test-api-key", server.URL, "")
	err := client.Send(context.Background(), KindMFACode, "1234567890", map[string]string{"code": "123456"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receivedBody["route"] != "otp" {
		t.Errorf("route = %v, want otp", receivedBody["route"])
	}
	if receivedBody["numbers"] != "1234567890" {
		t.Errorf("numbers = %v, want 1234567890", receivedBody["numbers"])
	}
	if receivedBody["variables"] != "123456" {
		t.Errorf("variables = %v, want 123456", receivedBody["variables"])
	}
}

func TestSend_PlainMessageRoute(t *testing.T) {
	var receivedBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("api-key", server.URL, "APFLOW")
	err := client.Send(context.Background(), KindAccountLocked, "9876543210",
		map[string]string{"message": "account locked for 30 minutes"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receivedBody["route"] != "q" {
		t.Errorf("route = %v, want q", receivedBody["route"])
	}
	if receivedBody["message"] != "account locked for 30 minutes" {
		t.Errorf("message = %v", receivedBody["message"])
	}
	if receivedBody["sender_id"] != "APFLOW" {
		t.Errorf("sender_id = %v, want APFLOW", receivedBody["sender_id"])
	}
}

func TestSend_MissingAPIKey(t *testing.T) {
	client := NewSMSLocalClient("", "", "")
	err := client.Send(context.Background(), KindMFACode, "1234567890", map[string]string{"code": "123456"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "API key not configured") {
		t.Errorf("error message = %q, want to contain 'API key not configured'", err.Error())
	}
}

func TestSend_Non200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	client := NewSMSLocalClient("api-key", server.URL, "")
	err := client.Send(context.Background(), KindMFACode, "1234567890", map[string]string{"code": "123456"})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Errorf("error message = %q, want to contain 'status=400'", err.Error())
	}
}
