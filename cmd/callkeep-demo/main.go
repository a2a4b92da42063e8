// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

// Demo drives one incoming and one outgoing call through the coordinator
// with logging facades, useful for eyeballing the event flow.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/webtrit/callkeep"
)

type logNotifier struct {
	callkeep.NopNotificationAudio
	log *slog.Logger
}

func (n logNotifier) ShowIncoming(s *callkeep.CallSession) {
	n.log.Info("NOTIFY incoming", "call_id", s.ID, "from", s.DisplayName())
}

func (n logNotifier) ShowActive(sessions []*callkeep.CallSession) {
	n.log.Info("NOTIFY active", "count", len(sessions))
}

func (n logNotifier) ShowMissed(s *callkeep.CallSession) {
	n.log.Info("NOTIFY missed", "call_id", s.ID)
}

func main() {
	// Optional .env for local runs
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Skipping .env", "error", err)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		lvl = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))

	conf, err := callkeep.LoadConfig()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	worker := callkeep.WorkerFunc(func(ctx context.Context, ev callkeep.Event) error {
		log.Info("BACKGROUND got event", "call_id", ev.CallID())
		return nil
	})

	reg := callkeep.NewSessionRegistry()
	coord := callkeep.NewCoordinator(reg,
		callkeep.WithLogger(log),
		callkeep.WithConfig(conf),
		callkeep.WithNotifications(logNotifier{log: log}),
		callkeep.WithMessenger(callkeep.NewMessenger(worker, conf.StartTimeout, conf.AckTimeout)),
		callkeep.WithEmergencyChecker(func(handle string) bool { return handle == "911" }),
	)

	// Incoming call answered and hung up
	if _, err := coord.ReportIncomingCall(ctx, "demo-in", callkeep.CallMeta{
		Handle:      "100",
		DisplayName: "Alice",
	}); err != nil {
		log.Error("Incoming failed", "error", err)
		os.Exit(1)
	}
	time.Sleep(200 * time.Millisecond)
	if err := coord.Answer(ctx, "demo-in"); err != nil {
		log.Error("Answer failed", "error", err)
	}
	if err := coord.HangUp(ctx, "demo-in"); err != nil {
		log.Error("Hangup failed", "error", err)
	}

	// Outgoing call to emergency number is refused before dial
	if _, err := coord.StartOutgoingCall(ctx, "", callkeep.CallMeta{Handle: "911"}); err != nil {
		log.Info("Outgoing refused as expected", "reason", err)
	}

	coord.EndAllCalls(ctx)
	log.Info("Done", "live_sessions", len(coord.GetActiveSessions()))
}
