// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/config"
	"github.com/vanvanhasnophi/a-final-work-sub000/engine"
	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
	"github.com/vanvanhasnophi/a-final-work-sub000/transport"
)

func defaultTestConfig(server string) config.Config {
	cfg := config.Default()
	cfg.Server = server
	return cfg
}

func TestStartValidation(t *testing.T) {
	cfg := defaultTestConfig("https://roomx.example.com")
	ctx := context.Background()

	if _, err := Start(ctx, Params{Config: cfg, Token: "tok"}); err == nil {
		t.Fatal("expected error for missing UserID")
	}
	if _, err := Start(ctx, Params{Config: cfg, UserID: "u1"}); err == nil {
		t.Fatal("expected error for missing Token")
	}

	cfg.Server = ""
	if _, err := Start(ctx, Params{Config: cfg, UserID: "u1", Token: "tok"}); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestSessionLifecycle(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/api/notifications":
			writer.Write([]byte(`{"records":[{"id":"n1","title":"Room approved","type":"room","createdAt":"2026-03-01T09:00:00Z"}],"total":1}`))
		case "/api/notifications/unread-count":
			writer.Write([]byte(`{"unreadCount":1}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(api.Close)

	// Minimal push gateway: accept the connection, consume frames.
	dialer := transport.DialerFunc(func(ctx context.Context, token string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			reader := bufio.NewReader(server)
			for {
				if _, err := reader.ReadString('\n'); err != nil {
					return
				}
			}
		}()
		return client, nil
	})

	sets := make(chan []notification.Notification, 16)
	states := make(chan bool, 4)

	cfg := defaultTestConfig(api.URL)
	session, err := Start(context.Background(), Params{
		Config:       cfg,
		UserID:       "u1",
		Token:        "tok-1",
		Clock:        clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Dialer:       dialer,
		WeakPassword: true,
		Subscribe: func(events *engine.Events) {
			events.SetChanged.Subscribe(func(records []notification.Notification) {
				sets <- records
			})
			events.TransportState.Subscribe(func(connected bool) {
				states <- connected
			})
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	select {
	case connected := <-states:
		if !connected {
			t.Fatal("first transport state = disconnected")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport state")
	}

	// The reconciled set eventually holds both the server record and
	// the synthesized weak password warning.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case records := <-sets:
			var haveServer, haveLocal bool
			for _, record := range records {
				if record.ID == "n1" {
					haveServer = true
				}
				if notification.IsLocal(record.ID) && record.Type == notification.TypeSecurity {
					haveLocal = true
				}
			}
			if haveServer && haveLocal {
				if err := session.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the reconciled set")
		}
	}
}
