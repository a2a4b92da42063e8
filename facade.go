// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import "context"

// Telephony is native call management facility the session state is mirrored
// into. Attach and control operations go out through here, asynchronous
// native callbacks come back through Coordinator.OnAnswered and friends.
type Telephony interface {
	AttachIncoming(ctx context.Context, s *CallSession) error
	AttachOutgoing(ctx context.Context, s *CallSession) error
	Detach(ctx context.Context, id string) error

	SetMuted(ctx context.Context, id string, muted bool) error
	SetHeld(ctx context.Context, id string, held bool) error
	SetSpeaker(ctx context.Context, id string, on bool) error
	SendDTMF(ctx context.Context, id string, tone string) error
}

// NotificationAudio renders user visible call surfaces and ringtone playback
type NotificationAudio interface {
	ShowIncoming(s *CallSession)
	ShowActive(sessions []*CallSession)
	ShowMissed(s *CallSession)
	CancelAll(id string)
	StartRingtone(path string)
	StopRingtone()
}

// Signaling reports call state back to remote signaling side
type Signaling interface {
	NotifyAnswered(s *CallSession)
	NotifyDeclined(s *CallSession)
	NotifyMuted(s *CallSession)
	NotifyHeld(s *CallSession)
	NotifyDTMF(s *CallSession)
	NotifyOutgoingFailure(f FailureMeta)
}

// NopTelephony accepts everything. Default until real facade is injected.
type NopTelephony struct{}

func (NopTelephony) AttachIncoming(context.Context, *CallSession) error { return nil }
func (NopTelephony) AttachOutgoing(context.Context, *CallSession) error { return nil }
func (NopTelephony) Detach(context.Context, string) error { return nil }
func (NopTelephony) SetMuted(context.Context, string, bool) error { return nil }
func (NopTelephony) SetHeld(context.Context, string, bool) error { return nil }
func (NopTelephony) SetSpeaker(context.Context, string, bool) error { return nil }
func (NopTelephony) SendDTMF(ctx context.Context, id, tone string) error { return nil }

type NopNotificationAudio struct{}

func (NopNotificationAudio) ShowIncoming(*CallSession) {}
func (NopNotificationAudio) ShowActive([]*CallSession) {}
func (NopNotificationAudio) ShowMissed(*CallSession) {}
func (NopNotificationAudio) CancelAll(string) {}
func (NopNotificationAudio) StartRingtone(string) {}
func (NopNotificationAudio) StopRingtone() {}

type NopSignaling struct{}

func (NopSignaling) NotifyAnswered(*CallSession) {}
func (NopSignaling) NotifyDeclined(*CallSession) {}
func (NopSignaling) NotifyMuted(*CallSession) {}
func (NopSignaling) NotifyHeld(*CallSession) {}
func (NopSignaling) NotifyDTMF(*CallSession) {}
func (NopSignaling) NotifyOutgoingFailure(FailureMeta) {}
