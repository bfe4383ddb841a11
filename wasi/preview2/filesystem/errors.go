package filesystem

import (
	"errors"
	"os"
	"syscall"
)

// Error is a filesystem error-code result.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	return "filesystem error: " + e.Code.String()
}

// ErrorCode mirrors the filesystem error-code variant. The order is part of
// the interface and must not change.
type ErrorCode uint8

const (
	ErrorAccess ErrorCode = iota
	ErrorWouldBlock
	ErrorAlready
	ErrorBadDescriptor
	ErrorBusy
	ErrorDeadlock
	ErrorQuota
	ErrorExist
	ErrorFileTooLarge
	ErrorIllegalByteSequence
	ErrorInProgress
	ErrorInterrupted
	ErrorInvalid
	ErrorIo
	ErrorIsDirectory
	ErrorLoop
	ErrorTooManyLinks
	ErrorMessageSize
	ErrorNameTooLong
	ErrorNoDevice
	ErrorNoEntry
	ErrorNoLock
	ErrorInsufficientMemory
	ErrorInsufficientSpace
	ErrorNotDirectory
	ErrorNotEmpty
	ErrorNotRecoverable
	ErrorUnsupported
	ErrorNoTty
	ErrorNoSuchDevice
	ErrorOverflow
	ErrorNotPermitted
	ErrorPipe
	ErrorReadOnly
	ErrorInvalidSeek
	ErrorTextFileBusy
	ErrorCrossDevice
)

var errorCodeNames = [...]string{
	"access", "would-block", "already", "bad-descriptor", "busy", "deadlock",
	"quota", "exist", "file-too-large", "illegal-byte-sequence", "in-progress",
	"interrupted", "invalid", "io", "is-directory", "loop", "too-many-links",
	"message-size", "name-too-long", "no-device", "no-entry", "no-lock",
	"insufficient-memory", "insufficient-space", "not-directory", "not-empty",
	"not-recoverable", "unsupported", "no-tty", "no-such-device", "overflow",
	"not-permitted", "pipe", "read-only", "invalid-seek", "text-file-busy",
	"cross-device",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return "unknown"
}

func errCode(code ErrorCode) *Error {
	return &Error{Code: code}
}

// mapOSError converts an error from the os package into an error code.
// Errno values are translated one to one; anything else is io.
func mapOSError(err error) *Error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errCode(mapErrno(errno))
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errCode(ErrorNoEntry)
	case errors.Is(err, os.ErrExist):
		return errCode(ErrorExist)
	case errors.Is(err, os.ErrPermission):
		return errCode(ErrorNotPermitted)
	}
	return errCode(ErrorIo)
}
