// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Coordinator is the call lifecycle state machine driver. It consumes events
// from all producers through Handle, validates them against SessionRegistry,
// drives CallSession transitions and emits outbound notifications to
// collaborator facades.
//
// When the background execution context is authoritative for an event the
// coordinator hands it to Messenger first. Delivery timeout or failure is
// never fatal: local fallback always wins and the native action proceeds.
type Coordinator struct {
	reg       *SessionRegistry
	telephony Telephony
	notifier  NotificationAudio
	signaling Signaling
	selector  *ContextSelector
	messenger *Messenger
	proximity *ProximityController

	conf Config
	log  *slog.Logger

	// isEmergency flags protected destinations that must never be dialed
	isEmergency func(handle string) bool

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

type Option func(c *Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithConfig(conf Config) Option {
	return func(c *Coordinator) { c.conf = conf }
}

func WithTelephony(t Telephony) Option {
	return func(c *Coordinator) { c.telephony = t }
}

func WithNotifications(n NotificationAudio) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithSignaling(s Signaling) Option {
	return func(c *Coordinator) { c.signaling = s }
}

func WithSelector(s *ContextSelector) Option {
	return func(c *Coordinator) { c.selector = s }
}

// WithMessenger enables background context delivery. Without it every event
// is handled in process.
func WithMessenger(m *Messenger) Option {
	return func(c *Coordinator) { c.messenger = m }
}

func WithProximity(p *ProximityController) Option {
	return func(c *Coordinator) { c.proximity = p }
}

func WithEmergencyChecker(f func(handle string) bool) Option {
	return func(c *Coordinator) { c.isEmergency = f }
}

func NewCoordinator(reg *SessionRegistry, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:       reg,
		telephony: NopTelephony{},
		notifier:  NopNotificationAudio{},
		signaling: NopSignaling{},
		selector:  NewContextSelector(),
		proximity: NewProximityController(nil),
		conf:      DefaultConfig(),
		log:       slog.Default(),
		timers:    map[string]*time.Timer{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) Registry() *SessionRegistry { return c.reg }

func (c *Coordinator) Selector() *ContextSelector { return c.selector }

func (c *Coordinator) Proximity() *ProximityController { return c.proximity }

// Handle is single entry point for the event union. Per id transitions are
// ordered by state machine guards that re-read current state before acting.
func (c *Coordinator) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case IncomingOffer:
		_, err := c.handleIncoming(ctx, e.ID, e.Meta)
		return err
	case OutgoingRequest:
		_, err := c.handleOutgoing(ctx, e.ID, e.Meta)
		return err
	case AnswerCall:
		return c.handleAnswer(ctx, e.ID)
	case RejectCall:
		cause := causeDeclined
		if e.Missed {
			cause = causeMissed
		}
		return c.handleTerminate(ctx, e.ID, e, cause)
	case HangupCall:
		return c.handleTerminate(ctx, e.ID, e, causeHangup)
	case EstablishCall:
		return c.handleEstablish(ctx, e.ID)
	case HoldCall:
		return c.handleHold(ctx, e.ID, true)
	case UnholdCall:
		return c.handleHold(ctx, e.ID, false)
	case SetMute:
		return c.handleSetMute(ctx, e.ID, e.Muted)
	case SetSpeaker:
		return c.handleSetSpeaker(ctx, e.ID, e.On)
	case SendDTMF:
		return c.handleSendDTMF(ctx, e.ID, e.Tone)
	case UpdateCall:
		return c.handleUpdate(ctx, e.ID, e.Meta)
	case AttachFailed:
		return c.handleAttachFailed(ctx, e.ID, e.Reason)
	case MissedTimeout:
		return c.handleMissedTimeout(ctx, e.ID)
	case AudioStateChanged:
		return c.handleAudioState(ctx, e.ID, e.Muted, e.Speaker)
	}
	return fmt.Errorf("unhandled event type %T", ev)
}

// Exposed operations for presentation and entry layer

// ReportIncomingCall admits incoming offer and starts ringing
func (c *Coordinator) ReportIncomingCall(ctx context.Context, id string, meta CallMeta) (*CallSession, error) {
	return c.handleIncoming(ctx, id, meta)
}

// StartOutgoingCall admits outgoing request and dials. Empty id gets
// generated one, returned session carries it.
func (c *Coordinator) StartOutgoingCall(ctx context.Context, id string, meta CallMeta) (*CallSession, error) {
	if id == "" {
		id = uuid.NewString()
	}
	return c.handleOutgoing(ctx, id, meta)
}

func (c *Coordinator) Answer(ctx context.Context, id string) error {
	return c.handleAnswer(ctx, id)
}

func (c *Coordinator) HangUp(ctx context.Context, id string) error {
	return c.handleTerminate(ctx, id, HangupCall{ID: id}, causeHangup)
}

// Decline rejects not yet answered call on user request
func (c *Coordinator) Decline(ctx context.Context, id string) error {
	return c.handleTerminate(ctx, id, RejectCall{ID: id}, causeDeclined)
}

func (c *Coordinator) SetMuted(ctx context.Context, id string, muted bool) error {
	return c.handleSetMute(ctx, id, muted)
}

func (c *Coordinator) SetHeld(ctx context.Context, id string, held bool) error {
	return c.handleHold(ctx, id, held)
}

func (c *Coordinator) SetSpeaker(ctx context.Context, id string, on bool) error {
	return c.handleSetSpeaker(ctx, id, on)
}

func (c *Coordinator) SendTone(ctx context.Context, id string, tone string) error {
	return c.handleSendDTMF(ctx, id, tone)
}

func (c *Coordinator) UpdateMetadata(ctx context.Context, id string, meta CallMeta) error {
	return c.handleUpdate(ctx, id, meta)
}

// GetActiveSessions returns snapshot of live sessions
func (c *Coordinator) GetActiveSessions() []*CallSession {
	return c.reg.Sessions()
}

// EndAllCalls forcibly terminates every live session. Each one is driven
// through regular disconnect so collaborators are notified, teardown never
// skips side effects.
func (c *Coordinator) EndAllCalls(ctx context.Context) {
	for _, s := range c.reg.Sessions() {
		if err := c.terminate(ctx, s, causeHangup, nil); err != nil {
			c.log.Error("Teardown of session failed", "call_id", s.ID, "error", err)
		}
	}
	c.notifier.StopRingtone()
}

// Native telephony callbacks

func (c *Coordinator) OnAnswered(ctx context.Context, id string) error {
	if s, ok := c.reg.Get(id); ok && s.Direction == DirectionOutgoing {
		return c.Handle(ctx, EstablishCall{ID: id})
	}
	return c.Handle(ctx, AnswerCall{ID: id})
}

func (c *Coordinator) OnRejected(ctx context.Context, id string) error {
	return c.Handle(ctx, RejectCall{ID: id})
}

func (c *Coordinator) OnHeld(ctx context.Context, id string) error {
	return c.Handle(ctx, HoldCall{ID: id})
}

func (c *Coordinator) OnUnheld(ctx context.Context, id string) error {
	return c.Handle(ctx, UnholdCall{ID: id})
}

func (c *Coordinator) OnAudioStateChanged(ctx context.Context, id string, muted, speaker bool) error {
	return c.Handle(ctx, AudioStateChanged{ID: id, Muted: muted, Speaker: speaker})
}

// OnDTMF records tone played by native layer and reports it to signaling
func (c *Coordinator) OnDTMF(ctx context.Context, id string, tone string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("DTMF for unknown session", "call_id", id)
		return nil
	}
	s.setDTMF(tone)
	c.signaling.NotifyDTMF(s)
	return nil
}

func (c *Coordinator) OnAttachFailed(ctx context.Context, id string, reason string) error {
	return c.Handle(ctx, AttachFailed{ID: id, Reason: reason})
}

// State machine internals

type terminateCause int

const (
	causeHangup terminateCause = iota
	causeDeclined
	causeMissed
	causeFailure
)

func (c *Coordinator) handleIncoming(ctx context.Context, id string, meta CallMeta) (*CallSession, error) {
	s, err := c.reg.TryAdmit(id, DirectionIncoming, meta)
	if err != nil {
		c.log.Warn("Incoming offer rejected", "call_id", id, "reason", err)
		return nil, err
	}
	c.log.Info("Incoming call admitted", "call_id", id, "handle", s.Handle())

	if err := c.telephony.AttachIncoming(ctx, s); err != nil {
		c.failSession(ctx, s, FailureMeta{CallID: id, Type: FailureAttach, Message: err.Error()})
		return nil, fmt.Errorf("incoming attach failed: %w", err)
	}

	c.proximity.SetShouldListen(s.ProximityEnabled())
	c.armTimer(id, c.conf.RingTimeout, func() {
		if err := c.Handle(context.Background(), MissedTimeout{ID: id}); err != nil {
			c.log.Error("Missed timeout handling failed", "call_id", id, "error", err)
		}
	})

	c.notifier.ShowIncoming(s)
	c.notifier.StartRingtone(s.RingtonePath())

	c.forwardBackground(ctx, IncomingOffer{ID: id, Meta: meta})
	return s, nil
}

func (c *Coordinator) handleOutgoing(ctx context.Context, id string, meta CallMeta) (*CallSession, error) {
	if c.isEmergency != nil && c.isEmergency(meta.Handle) {
		c.log.Warn("Refusing to dial emergency destination", "call_id", id, "handle", meta.Handle)
		c.signaling.NotifyOutgoingFailure(FailureMeta{
			CallID:  id,
			Type:    FailureEmergencyNumber,
			Message: "failed to establish outgoing connection: emergency number",
		})
		return nil, ErrEmergencyNumber
	}

	// Only one non held call may be active at a time. Previous active call
	// is hung up before the new dial proceeds.
	if prev := c.reg.ActiveSession(); prev != nil {
		c.log.Info("Hanging up previous call before new dial", "call_id", prev.ID)
		if err := c.terminate(ctx, prev, causeHangup, nil); err != nil {
			return nil, err
		}
	}

	s, err := c.reg.TryAdmit(id, DirectionOutgoing, meta)
	if err != nil {
		c.log.Warn("Outgoing request rejected", "call_id", id, "reason", err)
		return nil, err
	}
	c.log.Info("Outgoing call admitted", "call_id", id, "handle", s.Handle())

	if err := c.telephony.AttachOutgoing(ctx, s); err != nil {
		c.failSession(ctx, s, FailureMeta{CallID: id, Type: FailureAttach, Message: err.Error()})
		return nil, fmt.Errorf("outgoing attach failed: %w", err)
	}

	c.proximity.SetShouldListen(s.ProximityEnabled())
	c.armTimer(id, c.conf.DialTimeout, func() { c.dialTimeout(id) })
	return s, nil
}

func (c *Coordinator) handleAnswer(ctx context.Context, id string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		if c.reg.Terminated(id) {
			return ErrAlreadyTerminated
		}
		return ErrSessionNotFound
	}
	if s.Terminated() {
		return ErrAlreadyTerminated
	}

	c.forwardBackground(ctx, AnswerCall{ID: id})

	// RINGING is the only state from which answer is legal
	if !s.tryTransition(StateActive, StateRinging) {
		if s.Terminated() || s.State() == StateTerminated {
			return ErrAlreadyTerminated
		}
		// Double answer is no-op
		return nil
	}

	c.cancelTimer(id)
	s.markAnswered(time.Now())

	c.notifier.StopRingtone()
	c.notifier.CancelAll(id)
	c.notifier.ShowActive(c.reg.Sessions())
	c.proximity.SetShouldListen(s.ProximityEnabled())
	c.signaling.NotifyAnswered(s)

	c.log.Info("Call answered", "call_id", id)
	return nil
}

func (c *Coordinator) handleEstablish(ctx context.Context, id string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Establish for unknown session", "call_id", id)
		return nil
	}
	if !s.tryTransition(StateActive, StateDialing) {
		return nil
	}

	c.cancelTimer(id)
	s.markAnswered(time.Now())

	c.notifier.ShowActive(c.reg.Sessions())
	c.proximity.SetShouldListen(s.ProximityEnabled())
	c.signaling.NotifyAnswered(s)

	c.log.Info("Outgoing call established", "call_id", id)
	return nil
}

func (c *Coordinator) handleTerminate(ctx context.Context, id string, ev Event, cause terminateCause) error {
	s, ok := c.reg.Get(id)
	if !ok {
		// Second hangup on terminated id is no-op, not an error. Same for
		// a race where the call ended just before the request arrived.
		if !c.reg.Terminated(id) {
			c.log.Debug("Terminate for unknown session", "call_id", id)
		}
		return nil
	}

	c.forwardBackground(ctx, ev)
	return c.terminate(ctx, s, cause, nil)
}

// terminate runs terminal teardown exactly once per session. Any further
// call for the same session is no-op.
func (c *Coordinator) terminate(ctx context.Context, s *CallSession, cause terminateCause, failure *FailureMeta) error {
	if !s.beginTerminate() {
		return nil
	}

	c.cancelTimer(s.ID)
	wasRinging := s.State() == StateRinging
	s.setState(StateTerminated)

	if err := c.telephony.Detach(ctx, s.ID); err != nil {
		c.log.Error("Native detach failed", "call_id", s.ID, "error", err)
	}

	if wasRinging || s.Direction == DirectionIncoming {
		c.notifier.StopRingtone()
	}
	c.notifier.CancelAll(s.ID)
	if cause == causeMissed {
		c.notifier.ShowMissed(s)
	}

	if cause == causeFailure && failure != nil {
		c.signaling.NotifyOutgoingFailure(*failure)
	} else {
		c.signaling.NotifyDeclined(s)
	}

	c.reg.Remove(s.ID)
	if c.reg.ActiveCount() == 0 {
		c.proximity.SetShouldListen(false)
	}

	c.log.Info("Call terminated", "call_id", s.ID, "cause", causeString(cause))
	return nil
}

// failSession force terminates session on environment failure, surfacing the
// structured failure exactly once. Never retried, retry is a new call with
// a new id.
func (c *Coordinator) failSession(ctx context.Context, s *CallSession, f FailureMeta) {
	if err := c.terminate(ctx, s, causeFailure, &f); err != nil {
		c.log.Error("Failure teardown failed", "call_id", s.ID, "error", err)
	}
}

func (c *Coordinator) handleAttachFailed(ctx context.Context, id string, reason string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Attach failure for unknown session", "call_id", id)
		return nil
	}
	c.log.Error("Native attach failed", "call_id", id, "reason", reason)
	c.failSession(ctx, s, FailureMeta{CallID: id, Type: FailureAttach, Message: reason})
	return nil
}

func (c *Coordinator) handleMissedTimeout(ctx context.Context, id string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		return nil
	}
	// Timer only counts while still ringing, answer disarms it
	if s.State() != StateRinging {
		return nil
	}
	c.log.Info("Ring timeout reached, marking call missed", "call_id", id)
	return c.terminate(ctx, s, causeMissed, nil)
}

func (c *Coordinator) handleHold(ctx context.Context, id string, hold bool) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Hold change for unknown session", "call_id", id)
		return nil
	}

	if hold {
		if !s.tryTransition(StateOnHold, StateActive) {
			return nil
		}
	} else {
		if !s.tryTransition(StateActive, StateOnHold) {
			return nil
		}
	}

	if err := c.telephony.SetHeld(ctx, id, hold); err != nil {
		c.log.Error("Native hold change failed", "call_id", id, "error", err)
	}
	s.setHold(hold)
	c.signaling.NotifyHeld(s)
	return nil
}

func (c *Coordinator) handleSetMute(ctx context.Context, id string, muted bool) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Mute change for unknown session", "call_id", id)
		return nil
	}
	if st := s.State(); st != StateActive && st != StateOnHold {
		c.log.Debug("Mute change in wrong state", "call_id", id, "state", st.String())
		return nil
	}

	if err := c.telephony.SetMuted(ctx, id, muted); err != nil {
		c.log.Error("Native mute change failed", "call_id", id, "error", err)
	}
	s.setMute(muted)
	c.signaling.NotifyMuted(s)
	return nil
}

func (c *Coordinator) handleSetSpeaker(ctx context.Context, id string, on bool) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Speaker change for unknown session", "call_id", id)
		return nil
	}
	if st := s.State(); st != StateActive && st != StateOnHold {
		return nil
	}

	if err := c.telephony.SetSpeaker(ctx, id, on); err != nil {
		c.log.Error("Native speaker change failed", "call_id", id, "error", err)
	}
	s.setSpeaker(on)
	return nil
}

func (c *Coordinator) handleSendDTMF(ctx context.Context, id string, tone string) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("DTMF for unknown session", "call_id", id)
		return nil
	}
	if st := s.State(); st != StateActive && st != StateOnHold {
		return nil
	}

	if err := c.telephony.SendDTMF(ctx, id, tone); err != nil {
		c.log.Error("Native DTMF send failed", "call_id", id, "error", err)
	}
	s.setDTMF(tone)
	c.signaling.NotifyDTMF(s)
	return nil
}

func (c *Coordinator) handleUpdate(ctx context.Context, id string, meta CallMeta) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Update for unknown session", "call_id", id)
		return nil
	}
	if s.State() == StateTerminated {
		return nil
	}

	s.applyMeta(meta)
	if meta.ProximityEnabled != nil {
		c.proximity.SetShouldListen(*meta.ProximityEnabled)
	}
	return nil
}

func (c *Coordinator) handleAudioState(ctx context.Context, id string, muted, speaker bool) error {
	s, ok := c.reg.Get(id)
	if !ok {
		c.log.Debug("Audio state for unknown session", "call_id", id)
		return nil
	}
	s.setMute(muted)
	s.setSpeaker(speaker)
	c.signaling.NotifyMuted(s)
	return nil
}

// forwardBackground hands event to background context when it is
// authoritative. Timeout and failure stay local: caller proceeds with the
// native action instead of leaving the call in limbo.
func (c *Coordinator) forwardBackground(ctx context.Context, ev Event) {
	if c.messenger == nil {
		return
	}
	if c.selector.Context() != ContextBackground {
		return
	}
	if err := c.messenger.Deliver(ctx, ev); err != nil {
		c.log.Warn("Background context unreachable, applying local fallback",
			"call_id", ev.CallID(), "error", err)
	}
}

func (c *Coordinator) armTimer(id string, d time.Duration, f func()) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	c.timers[id] = time.AfterFunc(d, f)
}

func (c *Coordinator) cancelTimer(id string) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
}

// dialTimeout fires when no ongoing confirmation arrived for outgoing call.
// Guard re-checks state, terminal events cancel the watchdog so a stale
// callback never fires after the call already ended.
func (c *Coordinator) dialTimeout(id string) {
	s, ok := c.reg.Get(id)
	if !ok {
		return
	}
	if s.State() != StateDialing {
		return
	}
	c.log.Info("No confirmation for outgoing call, terminating", "call_id", id)
	c.failSession(context.Background(), s, FailureMeta{
		CallID:  id,
		Type:    FailureTimeout,
		Message: "no ongoing confirmation before dial timeout",
	})
}

func causeString(cause terminateCause) string {
	switch cause {
	case causeHangup:
		return "hangup"
	case causeDeclined:
		return "declined"
	case causeMissed:
		return "missed"
	case causeFailure:
		return "failure"
	}
	return "unknown"
}
