// Package errs defines the error taxonomy shared by every subsystem.
package errs

import "errors"

// Sentinel categories. Components build errors with the constructors below
// (Protocol, Auth, ...) so callers can still errors.Is against the category.
var (
	ErrProtocol = errors.New("protocol error")
	ErrAuth     = errors.New("authentication error")
	ErrCrypto   = errors.New("crypto error")
	ErrTransport = errors.New("transport error")
	ErrTimeout  = errors.New("timeout error")
	ErrStore    = errors.New("store error")
	ErrConfig   = errors.New("config error")
)

// Protocol wraps err as a ProtocolError.
func Protocol(format string, err error) error {
	return wrap(ErrProtocol, format, err)
}

// Auth wraps err as an AuthError.
func Auth(format string, err error) error {
	return wrap(ErrAuth, format, err)
}

// Crypto wraps err as a CryptoError.
func Crypto(format string, err error) error {
	return wrap(ErrCrypto, format, err)
}

// Transport wraps err as a TransportError.
func Transport(format string, err error) error {
	return wrap(ErrTransport, format, err)
}

// Timeout wraps err as a TimeoutError.
func Timeout(format string, err error) error {
	return wrap(ErrTimeout, format, err)
}

// Store wraps err as a StoreError.
func Store(format string, err error) error {
	return wrap(ErrStore, format, err)
}

// Config wraps err as a ConfigError.
func Config(format string, err error) error {
	return wrap(ErrConfig, format, err)
}

func wrap(sentinel error, msg string, err error) error {
	if err == nil {
		return &taxonomyErr{sentinel: sentinel, msg: msg}
	}
	return &taxonomyErr{sentinel: sentinel, msg: msg, err: err}
}

type taxonomyErr struct {
	sentinel error
	msg      string
	err      error
}

func (e *taxonomyErr) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *taxonomyErr) Unwrap() error {
	if e.err == nil {
		return e.sentinel
	}
	return e.err
}

// Is lets errors.Is(err, errs.ErrProtocol) succeed even though the
// immediate Unwrap() target is the wrapped cause, not the sentinel.
func (e *taxonomyErr) Is(target error) bool {
	return target == e.sentinel
}
