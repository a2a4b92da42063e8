// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

// Event is closed union of call lifecycle events consumed by Coordinator.Handle.
// Producers are independent: native telephony callbacks, notification taps,
// signaling pushes, lifecycle observers and timers.
type Event interface {
	CallID() string
	isEvent()
}

type IncomingOffer struct {
	ID   string
	Meta CallMeta
}

type OutgoingRequest struct {
	ID   string
	Meta CallMeta
}

type AnswerCall struct {
	ID string
}

// RejectCall terminates a not yet answered call. Missed distinguishes ring
// timer expiry from user decline and drives missed call notification.
type RejectCall struct {
	ID     string
	Missed bool
}

type HangupCall struct {
	ID string
}

// EstablishCall confirms outgoing call, DIALING to ACTIVE
type EstablishCall struct {
	ID string
}

type HoldCall struct {
	ID string
}

type UnholdCall struct {
	ID string
}

type SetMute struct {
	ID    string
	Muted bool
}

type SetSpeaker struct {
	ID string
	On bool
}

type SendDTMF struct {
	ID   string
	Tone string
}

type UpdateCall struct {
	ID   string
	Meta CallMeta
}

// AttachFailed is native subsystem rejecting attach, terminal for the session
type AttachFailed struct {
	ID     string
	Reason string
}

// MissedTimeout fires when bounded ring timer expires while still RINGING
type MissedTimeout struct {
	ID string
}

// AudioStateChanged echoes native audio state back into the session
type AudioStateChanged struct {
	ID      string
	Muted   bool
	Speaker bool
}

func (e IncomingOffer) CallID() string     { return e.ID }
func (e OutgoingRequest) CallID() string   { return e.ID }
func (e AnswerCall) CallID() string        { return e.ID }
func (e RejectCall) CallID() string        { return e.ID }
func (e HangupCall) CallID() string        { return e.ID }
func (e EstablishCall) CallID() string     { return e.ID }
func (e HoldCall) CallID() string          { return e.ID }
func (e UnholdCall) CallID() string        { return e.ID }
func (e SetMute) CallID() string           { return e.ID }
func (e SetSpeaker) CallID() string        { return e.ID }
func (e SendDTMF) CallID() string          { return e.ID }
func (e UpdateCall) CallID() string        { return e.ID }
func (e AttachFailed) CallID() string      { return e.ID }
func (e MissedTimeout) CallID() string     { return e.ID }
func (e AudioStateChanged) CallID() string { return e.ID }

func (IncomingOffer) isEvent()     {}
func (OutgoingRequest) isEvent()   {}
func (AnswerCall) isEvent()        {}
func (RejectCall) isEvent()        {}
func (HangupCall) isEvent()        {}
func (EstablishCall) isEvent()     {}
func (HoldCall) isEvent()          {}
func (UnholdCall) isEvent()        {}
func (SetMute) isEvent()           {}
func (SetSpeaker) isEvent()        {}
func (SendDTMF) isEvent()          {}
func (UpdateCall) isEvent()        {}
func (AttachFailed) isEvent()      {}
func (MissedTimeout) isEvent()     {}
func (AudioStateChanged) isEvent() {}
