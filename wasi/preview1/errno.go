package preview1

import (
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

// Errno is a flat-interface result code. Zero is success.
type Errno uint16

const (
	ErrnoSuccess Errno = iota
	Errno2big
	ErrnoAcces
	ErrnoAddrinuse
	ErrnoAddrnotavail
	ErrnoAfnosupport
	ErrnoAgain
	ErrnoAlready
	ErrnoBadf
	ErrnoBadmsg
	ErrnoBusy
	ErrnoCanceled
	ErrnoChild
	ErrnoConnaborted
	ErrnoConnrefused
	ErrnoConnreset
	ErrnoDeadlk
	ErrnoDestaddrreq
	ErrnoDom
	ErrnoDquot
	ErrnoExist
	ErrnoFault
	ErrnoFbig
	ErrnoHostunreach
	ErrnoIdrm
	ErrnoIlseq
	ErrnoInprogress
	ErrnoIntr
	ErrnoInval
	ErrnoIo
	ErrnoIsconn
	ErrnoIsdir
	ErrnoLoop
	ErrnoMfile
	ErrnoMlink
	ErrnoMsgsize
	ErrnoMultihop
	ErrnoNametoolong
	ErrnoNetdown
	ErrnoNetreset
	ErrnoNetunreach
	ErrnoNfile
	ErrnoNobufs
	ErrnoNodev
	ErrnoNoent
	ErrnoNoexec
	ErrnoNolck
	ErrnoNolink
	ErrnoNomem
	ErrnoNomsg
	ErrnoNoprotoopt
	ErrnoNospc
	ErrnoNosys
	ErrnoNotconn
	ErrnoNotdir
	ErrnoNotempty
	ErrnoNotrecoverable
	ErrnoNotsock
	ErrnoNotsup
	ErrnoNotty
	ErrnoNxio
	ErrnoOverflow
	ErrnoOwnerdead
	ErrnoPerm
	ErrnoPipe
	ErrnoProto
	ErrnoProtonosupport
	ErrnoPrototype
	ErrnoRange
	ErrnoRofs
	ErrnoSpipe
	ErrnoSrch
	ErrnoStale
	ErrnoTimedout
	ErrnoTxtbsy
	ErrnoXdev
	ErrnoNotcapable
)

var errnoNames = [...]string{
	"ESUCCESS", "E2BIG", "EACCES", "EADDRINUSE", "EADDRNOTAVAIL", "EAFNOSUPPORT",
	"EAGAIN", "EALREADY", "EBADF", "EBADMSG", "EBUSY", "ECANCELED", "ECHILD",
	"ECONNABORTED", "ECONNREFUSED", "ECONNRESET", "EDEADLK", "EDESTADDRREQ",
	"EDOM", "EDQUOT", "EEXIST", "EFAULT", "EFBIG", "EHOSTUNREACH", "EIDRM",
	"EILSEQ", "EINPROGRESS", "EINTR", "EINVAL", "EIO", "EISCONN", "EISDIR",
	"ELOOP", "EMFILE", "EMLINK", "EMSGSIZE", "EMULTIHOP", "ENAMETOOLONG",
	"ENETDOWN", "ENETRESET", "ENETUNREACH", "ENFILE", "ENOBUFS", "ENODEV",
	"ENOENT", "ENOEXEC", "ENOLCK", "ENOLINK", "ENOMEM", "ENOMSG",
	"ENOPROTOOPT", "ENOSPC", "ENOSYS", "ENOTCONN", "ENOTDIR", "ENOTEMPTY",
	"ENOTRECOVERABLE", "ENOTSOCK", "ENOTSUP", "ENOTTY", "ENXIO", "EOVERFLOW",
	"EOWNERDEAD", "EPERM", "EPIPE", "EPROTO", "EPROTONOSUPPORT", "EPROTOTYPE",
	"ERANGE", "EROFS", "ESPIPE", "ESRCH", "ESTALE", "ETIMEDOUT", "ETXTBSY",
	"EXDEV", "ENOTCAPABLE",
}

func (e Errno) String() string {
	if int(e) < len(errnoNames) {
		return errnoNames[e]
	}
	return "EUNKNOWN"
}

// errnoTable translates every filesystem error code to exactly one errno,
// indexed by filesystem.ErrorCode.
var errnoTable = [...]Errno{
	filesystem.ErrorAccess:              ErrnoAcces,
	filesystem.ErrorWouldBlock:          ErrnoAgain,
	filesystem.ErrorAlready:             ErrnoAlready,
	filesystem.ErrorBadDescriptor:       ErrnoBadf,
	filesystem.ErrorBusy:                ErrnoBusy,
	filesystem.ErrorDeadlock:            ErrnoDeadlk,
	filesystem.ErrorQuota:               ErrnoDquot,
	filesystem.ErrorExist:               ErrnoExist,
	filesystem.ErrorFileTooLarge:        ErrnoFbig,
	filesystem.ErrorIllegalByteSequence: ErrnoIlseq,
	filesystem.ErrorInProgress:          ErrnoInprogress,
	filesystem.ErrorInterrupted:         ErrnoIntr,
	filesystem.ErrorInvalid:             ErrnoInval,
	filesystem.ErrorIo:                  ErrnoIo,
	filesystem.ErrorIsDirectory:         ErrnoIsdir,
	filesystem.ErrorLoop:                ErrnoLoop,
	filesystem.ErrorTooManyLinks:        ErrnoMlink,
	filesystem.ErrorMessageSize:         ErrnoMsgsize,
	filesystem.ErrorNameTooLong:         ErrnoNametoolong,
	filesystem.ErrorNoDevice:            ErrnoNodev,
	filesystem.ErrorNoEntry:             ErrnoNoent,
	filesystem.ErrorNoLock:              ErrnoNolck,
	filesystem.ErrorInsufficientMemory:  ErrnoNomem,
	filesystem.ErrorInsufficientSpace:   ErrnoNospc,
	filesystem.ErrorNotDirectory:        ErrnoNotdir,
	filesystem.ErrorNotEmpty:            ErrnoNotempty,
	filesystem.ErrorNotRecoverable:      ErrnoNotrecoverable,
	filesystem.ErrorUnsupported:         ErrnoNotsup,
	filesystem.ErrorNoTty:               ErrnoNotty,
	filesystem.ErrorNoSuchDevice:        ErrnoNxio,
	filesystem.ErrorOverflow:            ErrnoOverflow,
	filesystem.ErrorNotPermitted:        ErrnoPerm,
	filesystem.ErrorPipe:                ErrnoPipe,
	filesystem.ErrorReadOnly:            ErrnoRofs,
	filesystem.ErrorInvalidSeek:         ErrnoSpipe,
	filesystem.ErrorTextFileBusy:        ErrnoTxtbsy,
	filesystem.ErrorCrossDevice:         ErrnoXdev,
}

// ErrnoFromCode maps a filesystem error code to its errno. A code outside
// the filesystem enumeration is a broken capability host and halts the
// guest.
func ErrnoFromCode(code filesystem.ErrorCode) Errno {
	if int(code) >= len(errnoTable) {
		panic(fatal("unmapped filesystem error code %d", code))
	}
	return errnoTable[code]
}

func errnoOf(err *filesystem.Error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	return ErrnoFromCode(err.Code)
}
