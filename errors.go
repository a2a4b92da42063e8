// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import "errors"

// Admission and guard errors. All are recoverable and returned as typed
// results to the caller, never panics.
var (
	ErrSessionNotFound = errors.New("call session does not exist")

	// ErrAlreadyExists is admission conflict with live unanswered session
	ErrAlreadyExists = errors.New("call id already exists")
	// ErrAlreadyExistsAnswered is admission conflict with live answered session
	ErrAlreadyExistsAnswered = errors.New("call id already exists and was answered")
	// ErrAlreadyTerminated rejects replay of terminated call id
	ErrAlreadyTerminated = errors.New("call id was already terminated")
	// ErrBusy rejects second incoming offer while one is already ringing
	ErrBusy = errors.New("another incoming call is pending")

	// ErrEmergencyNumber short-circuits outgoing dial before native attach
	ErrEmergencyNumber = errors.New("emergency destination is not allowed")

	// ErrDeliveryTimeout means background context did not acknowledge in time.
	// Caller applies local fallback instead of propagating it to user.
	ErrDeliveryTimeout = errors.New("background delivery not acknowledged")
	// ErrWorkerNotReady means background context cold start did not finish in time
	ErrWorkerNotReady = errors.New("background worker failed to become ready")
)

type FailureType int

const (
	FailureGeneric FailureType = iota
	FailureEmergencyNumber
	FailureAttach
	FailureTimeout
)

func (t FailureType) String() string {
	switch t {
	case FailureEmergencyNumber:
		return "emergency_number"
	case FailureAttach:
		return "attach_failed"
	case FailureTimeout:
		return "timeout"
	}
	return "generic"
}

// FailureMeta is structured failure surfaced once to signaling collaborator
// when a session is force terminated by environment failure.
type FailureMeta struct {
	CallID  string
	Type    FailureType
	Message string
}
