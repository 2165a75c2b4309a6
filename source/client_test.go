// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, SessionToken: "tok-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "://bad"}); err == nil {
		t.Fatal("expected error for invalid BaseURL")
	}
}

func TestListNormalizesWireShapes(t *testing.T) {
	shapes := map[string]string{
		"records": `{"records":[{"id":"n1","title":"a","createdAt":"2026-03-01T09:00:00Z"}],"total":1}`,
		"list":    `{"list":[{"id":"n1","title":"a","createdAt":"2026-03-01T09:00:00Z"}],"total":1}`,
		"rows":    `{"rows":[{"id":"n1","title":"a","createdAt":"2026-03-01T09:00:00Z"}],"total":1}`,
	}

	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
				if request.URL.Path != "/api/notifications" {
					t.Errorf("unexpected path %s", request.URL.Path)
				}
				if got := request.URL.Query().Get("pageSize"); got != "50" {
					t.Errorf("pageSize = %s, want 50", got)
				}
				if got := request.Header.Get("Authorization"); got != "Bearer tok-1" {
					t.Errorf("Authorization = %q", got)
				}
				writer.Header().Set("Content-Type", "application/json")
				writer.Write([]byte(body))
			})

			response, err := client.List(context.Background(), "u1", 1, 50)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(response.Records) != 1 || response.Records[0].ID != "n1" {
				t.Fatalf("records = %+v", response.Records)
			}
			if response.Total != 1 {
				t.Fatalf("total = %d", response.Total)
			}
		})
	}
}

func TestListDropsMalformedRecords(t *testing.T) {
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		// Second record has no id and must be dropped, not fatal.
		writer.Write([]byte(`{"records":[{"id":"n1","createdAt":"2026-03-01T09:00:00Z"},{"title":"no id"}],"total":2}`))
	})

	response, err := client.List(context.Background(), "u1", 1, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(response.Records) != 1 {
		t.Fatalf("records = %+v, want only n1", response.Records)
	}
}

func TestUnreadCount(t *testing.T) {
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/notifications/unread-count" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		json.NewEncoder(writer).Encode(map[string]int{"unreadCount": 4})
	})

	count, err := client.UnreadCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
}

func TestMutationEndpoints(t *testing.T) {
	var gotMethod, gotPath string
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		gotMethod, gotPath = request.Method, request.URL.Path
		writer.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	if err := client.MarkRead(ctx, "n 1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/notifications/n%201/read" {
		t.Fatalf("MarkRead sent %s %s", gotMethod, gotPath)
	}

	if err := client.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if gotPath != "/api/notifications/read-all" {
		t.Fatalf("MarkAllRead path %s", gotPath)
	}

	if err := client.Delete(ctx, "n1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/notifications/n1" {
		t.Fatalf("Delete sent %s %s", gotMethod, gotPath)
	}

	if err := client.DeleteAll(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/notifications" {
		t.Fatalf("DeleteAll sent %s %s", gotMethod, gotPath)
	}
}

func TestAPIErrorExtraction(t *testing.T) {
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(`{"code":"NOT_FOUND","message":"no such notification"}`))
	})

	err := client.MarkRead(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not *APIError", err)
	}
	if apiErr.Code != CodeNotFound || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if !IsAPIError(err, CodeNotFound) {
		t.Fatal("IsAPIError(NOT_FOUND) = false")
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	client := testClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("upstream unavailable"))
	})

	err := client.DeleteAll(context.Background(), "u1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not *APIError", err)
	}
	if apiErr.Code != CodeUnknown || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}
