package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindTransport: the request never produced an HTTP response.
	KindTransport ErrorKind = "transport"
	// KindStatus: the backend answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindApplication: a 2xx body reported success=false.
	KindApplication ErrorKind = "application"
	// KindDecode: the body could not be decoded into the expected shape.
	KindDecode ErrorKind = "decode"
)

var (
	ErrTransport   = errors.New("gateway transport error")
	ErrStatus      = errors.New("gateway status error")
	ErrApplication = errors.New("gateway application error")
	ErrDecode      = errors.New("gateway decode error")
	ErrNotFound    = errors.New("gateway: not found")
)

type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrStatus:
		return e.Kind == KindStatus
	case ErrApplication:
		return e.Kind == KindApplication
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrNotFound:
		return e.Kind == KindStatus && e.StatusCode == 404
	}
	return false
}
