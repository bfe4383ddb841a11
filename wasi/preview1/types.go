package preview1

import (
	"encoding/binary"

	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

type Filetype uint8

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

type Fdflags uint16

const (
	FdflagsAppend Fdflags = 1 << iota
	FdflagsDsync
	FdflagsNonblock
	FdflagsRsync
	FdflagsSync
)

type Rights uint64

const (
	RightsFdDatasync Rights = 1 << iota
	RightsFdRead
	RightsFdSeek
	RightsFdFdstatSetFlags
	RightsFdSync
	RightsFdTell
	RightsFdWrite
	RightsFdAdvise
	RightsFdAllocate
	RightsPathCreateDirectory
	RightsPathCreateFile
	RightsPathLinkSource
	RightsPathLinkTarget
	RightsPathOpen
	RightsFdReaddir
	RightsPathReadlink
	RightsPathRenameSource
	RightsPathRenameTarget
	RightsPathFilestatGet
	RightsPathFilestatSetSize
	RightsPathFilestatSetTimes
	RightsFdFilestatGet
	RightsFdFilestatSetSize
	RightsFdFilestatSetTimes
	RightsPathSymlink
	RightsPathRemoveDirectory
	RightsPathUnlinkFile
	RightsPollFdReadwrite
	RightsSockShutdown
	RightsSockAccept
)

// RightsAll is every rights bit, the base rights of a file descriptor
// before read and write are masked by its access mode.
const RightsAll = ^Rights(0)

type Oflags uint16

const (
	OflagsCreat Oflags = 1 << iota
	OflagsDirectory
	OflagsExcl
	OflagsTrunc
)

type Lookupflags uint32

const LookupflagsSymlinkFollow Lookupflags = 1

type Fstflags uint16

const (
	FstflagsAtim Fstflags = 1 << iota
	FstflagsAtimNow
	FstflagsMtim
	FstflagsMtimNow
)

type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

type Clockid uint32

const (
	ClockidRealtime Clockid = iota
	ClockidMonotonic
	ClockidProcessCputime
	ClockidThreadCputime
)

type Eventtype uint8

const (
	EventtypeClock Eventtype = iota
	EventtypeFdRead
	EventtypeFdWrite
)

const (
	SubclockflagsAbstime uint16 = 1
	EventrwflagsHangup   uint16 = 1
	PreopentypeDir       uint8  = 0
	DircookieStart       uint64 = 0
	AdviceNoreuse        uint8  = 5
)

// Wire sizes of the fixed-layout records.
const (
	DirentSize       = 24
	FilestatSize     = 64
	FdstatSize       = 24
	PrestatSize      = 8
	IovecSize        = 8
	SubscriptionSize = 48
	EventSize        = 32

	subscriptionUnionOffset = 16
)

var le = binary.LittleEndian

// Dirent is the fixed header written before each name by fd_readdir.
type Dirent struct {
	Next   uint64
	Ino    uint64
	Namlen uint32
	Type   Filetype
}

// Encode writes d in its 24 byte wire form.
func (d Dirent) Encode() [DirentSize]byte {
	var b [DirentSize]byte
	le.PutUint64(b[0:], d.Next)
	le.PutUint64(b[8:], d.Ino)
	le.PutUint32(b[16:], d.Namlen)
	b[20] = byte(d.Type)
	return b
}

type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

func (f Filestat) Encode() [FilestatSize]byte {
	var b [FilestatSize]byte
	le.PutUint64(b[0:], f.Dev)
	le.PutUint64(b[8:], f.Ino)
	b[16] = byte(f.Filetype)
	le.PutUint64(b[24:], f.Nlink)
	le.PutUint64(b[32:], f.Size)
	le.PutUint64(b[40:], f.Atim)
	le.PutUint64(b[48:], f.Mtim)
	le.PutUint64(b[56:], f.Ctim)
	return b
}

type Fdstat struct {
	Filetype         Filetype
	Flags            Fdflags
	RightsBase       Rights
	RightsInheriting Rights
}

func (f Fdstat) Encode() [FdstatSize]byte {
	var b [FdstatSize]byte
	b[0] = byte(f.Filetype)
	le.PutUint16(b[2:], uint16(f.Flags))
	le.PutUint64(b[8:], uint64(f.RightsBase))
	le.PutUint64(b[16:], uint64(f.RightsInheriting))
	return b
}

// Prestat describes a preopened directory: tag 0 and the name length.
type Prestat struct {
	Tag     uint8
	NameLen uint32
}

func (p Prestat) Encode() [PrestatSize]byte {
	var b [PrestatSize]byte
	b[0] = p.Tag
	le.PutUint32(b[4:], p.NameLen)
	return b
}

// Subscription is a decoded poll_oneoff input record. Clock fields are
// only meaningful for EventtypeClock, Fd only for the fd event types.
type Subscription struct {
	Userdata  uint64
	Type      Eventtype
	ClockID   Clockid
	Timeout   uint64
	Precision uint64
	Flags     uint16
	Fd        uint32
}

func decodeSubscription(b []byte) Subscription {
	s := Subscription{
		Userdata: le.Uint64(b[0:]),
		Type:     Eventtype(b[8]),
	}
	u := b[subscriptionUnionOffset:]
	switch s.Type {
	case EventtypeClock:
		s.ClockID = Clockid(le.Uint32(u[0:]))
		s.Timeout = le.Uint64(u[8:])
		s.Precision = le.Uint64(u[16:])
		s.Flags = le.Uint16(u[24:])
	default:
		s.Fd = le.Uint32(u[0:])
	}
	return s
}

type Event struct {
	Userdata uint64
	Error    Errno
	Type     Eventtype
	Nbytes   uint64
	Flags    uint16
}

func (e Event) Encode() [EventSize]byte {
	var b [EventSize]byte
	le.PutUint64(b[0:], e.Userdata)
	le.PutUint16(b[8:], uint16(e.Error))
	b[10] = byte(e.Type)
	le.PutUint64(b[16:], e.Nbytes)
	le.PutUint16(b[24:], e.Flags)
	return b
}

func filetypeOf(t filesystem.DescriptorType) Filetype {
	switch t {
	case filesystem.DescriptorTypeRegularFile:
		return FiletypeRegularFile
	case filesystem.DescriptorTypeDirectory:
		return FiletypeDirectory
	case filesystem.DescriptorTypeBlockDevice:
		return FiletypeBlockDevice
	case filesystem.DescriptorTypeCharacterDevice:
		return FiletypeCharacterDevice
	case filesystem.DescriptorTypeSymbolicLink:
		return FiletypeSymbolicLink
	case filesystem.DescriptorTypeSocket:
		// No way to tell stream from datagram sockets here.
		return FiletypeSocketStream
	}
	// Fifo has no flat-interface file type.
	return FiletypeUnknown
}

// timestampOf converts a datetime to nanoseconds, saturating on overflow.
func timestampOf(d clocks.Datetime) uint64 {
	ns, ok := d.Nanos()
	if !ok {
		return ^uint64(0)
	}
	return ns
}

func filestatOf(stat *filesystem.DescriptorStat) Filestat {
	return Filestat{
		Dev:      stat.Device,
		Ino:      stat.Inode,
		Filetype: filetypeOf(stat.Type),
		Nlink:    stat.LinkCount,
		Size:     stat.Size,
		Atim:     timestampOf(stat.DataAccessTimestamp),
		Mtim:     timestampOf(stat.DataModificationTimestamp),
		Ctim:     timestampOf(stat.StatusChangeTimestamp),
	}
}

func pathFlagsOf(flags Lookupflags) filesystem.PathFlags {
	if flags&LookupflagsSymlinkFollow != 0 {
		return filesystem.PathFlagSymlinkFollow
	}
	return 0
}

func openFlagsOf(oflags Oflags) filesystem.OpenFlags {
	var f filesystem.OpenFlags
	if oflags&OflagsCreat != 0 {
		f |= filesystem.OpenFlagCreate
	}
	if oflags&OflagsDirectory != 0 {
		f |= filesystem.OpenFlagDirectory
	}
	if oflags&OflagsExcl != 0 {
		f |= filesystem.OpenFlagExclusive
	}
	if oflags&OflagsTrunc != 0 {
		f |= filesystem.OpenFlagTruncate
	}
	return f
}

// syncFlagsOf maps the sync and nonblock fdflags onto descriptor flags.
func syncFlagsOf(fdflags Fdflags) filesystem.DescriptorFlags {
	var f filesystem.DescriptorFlags
	if fdflags&FdflagsSync != 0 {
		f |= filesystem.DescriptorFlagFileIntegritySync
	}
	if fdflags&FdflagsDsync != 0 {
		f |= filesystem.DescriptorFlagDataIntegritySync
	}
	if fdflags&FdflagsRsync != 0 {
		f |= filesystem.DescriptorFlagRequestedWriteSync
	}
	if fdflags&FdflagsNonblock != 0 {
		f |= filesystem.DescriptorFlagNonBlocking
	}
	return f
}

func descriptorFlagsOf(rights Rights, fdflags Fdflags) filesystem.DescriptorFlags {
	f := syncFlagsOf(fdflags)
	if rights&RightsFdRead != 0 {
		f |= filesystem.DescriptorFlagRead
	}
	if rights&RightsFdWrite != 0 {
		f |= filesystem.DescriptorFlagWrite
	}
	return f
}

// newTimestampOf decodes one half of a set-times request. set and now are
// the flag bits for this timestamp; both at once is invalid.
func newTimestampOf(ts uint64, flags, set, now Fstflags) (filesystem.NewTimestamp, Errno) {
	switch {
	case flags&set != 0 && flags&now != 0:
		return filesystem.NewTimestamp{}, ErrnoInval
	case flags&now != 0:
		return filesystem.NewTimestamp{Kind: filesystem.TimestampNow}, ErrnoSuccess
	case flags&set != 0:
		return filesystem.NewTimestamp{
			Kind: filesystem.TimestampSet,
			Time: clocks.Datetime{Seconds: ts / 1e9, Nanoseconds: uint32(ts % 1e9)},
		}, ErrnoSuccess
	}
	return filesystem.NewTimestamp{Kind: filesystem.TimestampNoChange}, ErrnoSuccess
}

func timestampsOf(atim, mtim uint64, flags Fstflags) (atime, mtime filesystem.NewTimestamp, errno Errno) {
	if atime, errno = newTimestampOf(atim, flags, FstflagsAtim, FstflagsAtimNow); errno != ErrnoSuccess {
		return
	}
	mtime, errno = newTimestampOf(mtim, flags, FstflagsMtim, FstflagsMtimNow)
	return
}
