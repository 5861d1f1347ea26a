// Package ota wires over the air updates of the tracker: the four update
// hooks, their default debug output and an updater that receives bundles
// over HTTP and hands them to the installer.
package ota

import (
	"errors"
	"fmt"
)

// ErrorKind mirrors the error codes reported to the error hook
type ErrorKind int

const (
	AuthError ErrorKind = iota
	BeginError
	ConnectError
	ReceiveError
	EndError
)

// Message returns the text printed by the default error hook
func (k ErrorKind) Message() string {
	switch k {
	case AuthError:
		return "OTA Auth Failed"
	case BeginError:
		return "OTA Begin Failed"
	case ConnectError:
		return "OTA Connect Failed"
	case ReceiveError:
		return "OTA Receive Failed"
	case EndError:
		return "OTA End Failed"
	}

	return fmt.Sprintf("OTA Unknown Error %d", int(k))
}

// Error makes the kinds usable as errors.Is targets
func (k ErrorKind) Error() string {
	return k.Message()
}

var ErrBusy = errors.New("an update is already in progress")

// Error is the error passed to the error hook and returned by the updater
type Error struct {
	Kind ErrorKind
	Err  error
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return e.Kind.Message() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorKind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

type Phase int

const (
	PhaseReceive Phase = iota
	PhaseInstall
)

func (p Phase) String() string {
	if p == PhaseInstall {
		return "install"
	}
	return "receive"
}

// Progress is reported while a bundle is received and while it is installed.
// Total is zero or negative when the size is unknown.
type Progress struct {
	Phase Phase
	Done  int64
	Total int64
}

// Percent returns Done relative to Total clamped to 0..100, 0 when unknown
func (p Progress) Percent() int {
	if p.Total <= 0 || p.Done <= 0 {
		return 0
	}
	if p.Done >= p.Total {
		return 100
	}

	return int(p.Done * 100 / p.Total)
}
