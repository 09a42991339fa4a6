package directory

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Skryldev/messenger-directory/db"
)

// Kind classifies a directory failure.
type Kind int

const (
	// KindStoreFailure: the store was unreachable or rejected the statement.
	KindStoreFailure Kind = iota
	// KindNotFound: the named account does not exist.
	KindNotFound
	// KindConflict: the username is already registered.
	KindConflict
	// KindInvalid: the input can never succeed as given.
	KindInvalid
	// KindInternal: the hasher failed or a stored digest is unusable.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindStoreFailure:
		return "store failure"
	case KindNotFound:
		return "account not found"
	case KindConflict:
		return "username already registered"
	case KindInvalid:
		return "invalid input"
	case KindInternal:
		return "internal error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is; every *Error matches the one for its Kind.
var (
	ErrStoreFailure = errors.New("directory: store failure")
	ErrNotFound     = errors.New("directory: account not found")
	ErrConflict     = errors.New("directory: username already registered")
	ErrInvalid      = errors.New("directory: invalid input")
	ErrInternal     = errors.New("directory: internal error")
)

var kindSentinel = map[Kind]error{
	KindStoreFailure: ErrStoreFailure,
	KindNotFound:     ErrNotFound,
	KindConflict:     ErrConflict,
	KindInvalid:      ErrInvalid,
	KindInternal:     ErrInternal,
}

// Error is returned by every Directory operation that fails.
type Error struct {
	Kind     Kind
	Op       string // "register", "get", ...
	Username string // empty for ListAll
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := "directory: " + e.Op
	if e.Username != "" {
		msg += " " + e.Username
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

// HTTPStatus maps the failure onto the status an HTTP front end would send.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindStoreFailure:
		if db.IsUnavailable(e.Err) {
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// HTTPStatus returns the status for any error a Directory produced:
// 200 for nil, the *Error mapping otherwise, 500 for anything else.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *Error
	if errors.As(err, &de) {
		return de.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// KindOf returns the Kind of err and whether err is a directory error.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
