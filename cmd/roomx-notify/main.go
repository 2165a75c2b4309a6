// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Roomx-notify runs the notification stack for one user session and
// prints everything it produces: the reconciled list on changes, unread
// badge updates, authorized banners, and push channel state. It is the
// headless equivalent of the notification surface in the RoomX UI,
// useful for watching delivery behavior against a real backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanvanhasnophi/a-final-work-sub000/config"
	"github.com/vanvanhasnophi/a-final-work-sub000/engine"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
	"github.com/vanvanhasnophi/a-final-work-sub000/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "roomx-notify: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		userID       string
		weakPassword bool
	)
	flag.StringVar(&configPath, "config", "", "path to the client configuration YAML (required)")
	flag.StringVar(&userID, "user", "", "user ID to poll notifications for (required)")
	flag.BoolVar(&weakPassword, "weak-password", false, "synthesize the weak password warning at startup")
	flag.Parse()

	if configPath == "" || userID == "" {
		flag.Usage()
		return fmt.Errorf("-config and -user are required")
	}
	token := os.Getenv("ROOMX_TOKEN")
	if token == "" {
		return fmt.Errorf("ROOMX_TOKEN must hold the session token")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := session.Start(context.Background(), session.Params{
		Config:       cfg,
		UserID:       userID,
		Token:        token,
		Logger:       logger,
		WeakPassword: weakPassword,
		Subscribe: func(events *engine.Events) {
			events.SetChanged.Subscribe(func(records []notification.Notification) {
				logger.Info("set changed", "size", len(records))
				for _, record := range records {
					marker := " "
					if !record.Read {
						marker = "*"
					}
					fmt.Printf("%s %-10s %-8s %s  %s\n",
						marker, record.Type, record.Priority,
						record.CreatedAt.Format("2006-01-02 15:04"), record.Title)
				}
			})
			events.UnreadChanged.Subscribe(func(count int) {
				logger.Info("unread count", "count", count)
			})
			events.Banner.Subscribe(func(record notification.Notification) {
				fmt.Printf("BANNER [%s] %s: %s\n", record.Priority, record.Title, record.Content)
			})
			events.TransportState.Subscribe(func(connected bool) {
				logger.Info("push channel", "connected", connected)
			})
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logger.Info("shutting down")
	return nil
}
