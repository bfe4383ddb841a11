package preview1

import (
	"context"

	wasiadapter "github.com/wippyai/wasi-adapter"
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

func (a *Adapter) FdAdvise(ctx context.Context, fd uint32, offset, length uint64, advice uint8) Errno {
	return a.with(ctx, "fd_advise", func(s *State) Errno {
		if advice > AdviceNoreuse {
			return ErrnoInval
		}
		st, errno := s.getSeekableFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorAdvise(ctx, st.File.Handle, offset, length, filesystem.Advice(advice)))
	})
}

func (a *Adapter) FdClose(ctx context.Context, fd uint32) Errno {
	return a.withMut(ctx, "fd_close", func(s *State) Errno {
		return s.closeDesc(ctx, fd)
	})
}

func (a *Adapter) FdDatasync(ctx context.Context, fd uint32) Errno {
	return a.with(ctx, "fd_datasync", func(s *State) Errno {
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSyncData(ctx, st.File.Handle))
	})
}

func (a *Adapter) FdSync(ctx context.Context, fd uint32) Errno {
	return a.with(ctx, "fd_sync", func(s *State) Errno {
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSync(ctx, st.File.Handle))
	})
}

func (a *Adapter) FdFdstatGet(ctx context.Context, mem wasiadapter.Memory, fd, statPtr uint32) Errno {
	return a.with(ctx, "fd_fdstat_get", func(s *State) Errno {
		stat, errno := s.fdstat(ctx, fd)
		if errno != ErrnoSuccess {
			return errno
		}
		b := stat.Encode()
		return store(mem, statPtr, b[:])
	})
}

func (s *State) fdstat(ctx context.Context, fd uint32) (Fdstat, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return Fdstat{}, errno
	}
	switch d.Kind {
	case DescriptorClosed:
		return Fdstat{}, ErrnoBadf
	case DescriptorStderr:
		rights := RightsAll &^ RightsFdRead
		return Fdstat{Filetype: FiletypeUnknown, RightsBase: rights, RightsInheriting: rights}, ErrnoSuccess
	}

	st := d.Streams
	switch st.Kind {
	case StreamFile:
		h := st.File.Handle
		flags, err := s.caps.Filesystem.MethodDescriptorGetFlags(ctx, h)
		if err != nil {
			return Fdstat{}, errnoOf(err)
		}
		typ, err := s.caps.Filesystem.MethodDescriptorGetType(ctx, h)
		if err != nil {
			return Fdstat{}, errnoOf(err)
		}
		var fdflags Fdflags
		if st.File.Append {
			fdflags |= FdflagsAppend
		}
		if flags&filesystem.DescriptorFlagDataIntegritySync != 0 {
			fdflags |= FdflagsDsync
		}
		if flags&filesystem.DescriptorFlagNonBlocking != 0 {
			fdflags |= FdflagsNonblock
		}
		if flags&filesystem.DescriptorFlagRequestedWriteSync != 0 {
			fdflags |= FdflagsRsync
		}
		if flags&filesystem.DescriptorFlagFileIntegritySync != 0 {
			fdflags |= FdflagsSync
		}
		rights := RightsAll
		if flags&filesystem.DescriptorFlagRead == 0 {
			rights &^= RightsFdRead
		}
		if flags&filesystem.DescriptorFlagWrite == 0 {
			rights &^= RightsFdWrite
		}
		return Fdstat{Filetype: filetypeOf(typ), Flags: fdflags, RightsBase: rights, RightsInheriting: rights}, ErrnoSuccess
	case StreamEmptyInput:
		return Fdstat{Filetype: FiletypeUnknown, RightsBase: RightsFdRead}, ErrnoSuccess
	}

	var rights Rights
	if st.hasInput {
		rights |= RightsFdRead | RightsPollFdReadwrite
	}
	if st.hasOutput {
		rights |= RightsFdWrite | RightsPollFdReadwrite
	}
	filetype := FiletypeUnknown
	switch {
	case st.Kind == StreamSocket:
		filetype = FiletypeSocketStream
	case st.Terminal:
		filetype = FiletypeCharacterDevice
	}
	return Fdstat{Filetype: filetype, RightsBase: rights}, ErrnoSuccess
}

// FdFdstatSetFlags applies the sync and nonblock flags to the descriptor
// and switches its append mode.
func (a *Adapter) FdFdstatSetFlags(ctx context.Context, fd uint32, flags Fdflags) Errno {
	return a.withMut(ctx, "fd_fdstat_set_flags", func(s *State) Errno {
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		if err := s.caps.Filesystem.MethodDescriptorSetFlags(ctx, st.File.Handle, syncFlagsOf(flags)); err != nil {
			return errnoOf(err)
		}
		appendMode := flags&FdflagsAppend != 0
		if st.File.Append != appendMode {
			st.dropOutput(ctx, s.caps)
			st.File.Append = appendMode
		}
		return ErrnoSuccess
	})
}

func (a *Adapter) FdFilestatGet(ctx context.Context, mem wasiadapter.Memory, fd, statPtr uint32) Errno {
	return a.with(ctx, "fd_filestat_get", func(s *State) Errno {
		d, errno := s.get(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		var stat Filestat
		switch {
		case d.Kind == DescriptorClosed:
			return ErrnoBadf
		case d.Kind == DescriptorStreams && d.Streams.Kind == StreamFile:
			ds, err := s.caps.Filesystem.MethodDescriptorStat(ctx, d.Streams.File.Handle)
			if err != nil {
				return errnoOf(err)
			}
			stat = filestatOf(ds)
		case d.Kind == DescriptorStreams && d.Streams.Terminal:
			// Stdio has no backing file; only the type is known.
			stat.Filetype = FiletypeCharacterDevice
		}
		b := stat.Encode()
		return store(mem, statPtr, b[:])
	})
}

func (a *Adapter) FdFilestatSetSize(ctx context.Context, fd uint32, size uint64) Errno {
	return a.with(ctx, "fd_filestat_set_size", func(s *State) Errno {
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSetSize(ctx, st.File.Handle, size))
	})
}

func (a *Adapter) FdFilestatSetTimes(ctx context.Context, fd uint32, atim, mtim uint64, flags Fstflags) Errno {
	return a.with(ctx, "fd_filestat_set_times", func(s *State) Errno {
		atime, mtime, errno := timestampsOf(atim, mtim, flags)
		if errno != ErrnoSuccess {
			return errno
		}
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSetTimes(ctx, st.File.Handle, atime, mtime))
	})
}

func (a *Adapter) FdPread(ctx context.Context, mem wasiadapter.Memory, fd, iovs, iovsLen uint32, offset uint64, nreadPtr uint32) Errno {
	return a.with(ctx, "fd_pread", func(s *State) Errno {
		buf, errno := firstIovec(mem, iovs, iovsLen)
		if errno != ErrnoSuccess {
			return errno
		}
		if len(buf) == 0 {
			return storeU32(mem, nreadPtr, 0)
		}
		st, errno := s.getFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		var n int
		var eof bool
		errno = WithBuffer(&s.importAlloc, buf, func() Errno {
			data, end, err := s.caps.Filesystem.MethodDescriptorRead(ctx, st.File.Handle, uint64(len(buf)), offset)
			if err != nil {
				return errnoOf(err)
			}
			n, eof = len(importBytes(&s.importAlloc, data)), end
			return ErrnoSuccess
		})
		if errno != ErrnoSuccess {
			return errno
		}
		if n == 0 && !eof {
			return ErrnoIntr
		}
		return storeU32(mem, nreadPtr, uint32(n))
	})
}

func (a *Adapter) FdPwrite(ctx context.Context, mem wasiadapter.Memory, fd, iovs, iovsLen uint32, offset uint64, nwrittenPtr uint32) Errno {
	return a.with(ctx, "fd_pwrite", func(s *State) Errno {
		buf, errno := firstIovec(mem, iovs, iovsLen)
		if errno != ErrnoSuccess {
			return errno
		}
		if len(buf) == 0 {
			return storeU32(mem, nwrittenPtr, 0)
		}
		st, errno := s.getSeekableFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		n, err := s.caps.Filesystem.MethodDescriptorWrite(ctx, st.File.Handle, buf, offset)
		if err != nil {
			return errnoOf(err)
		}
		return storeU32(mem, nwrittenPtr, uint32(n))
	})
}

// FdRead reads into the first non-empty iovec only. A file's position
// moves by the number of bytes read.
func (a *Adapter) FdRead(ctx context.Context, mem wasiadapter.Memory, fd, iovs, iovsLen, nreadPtr uint32) Errno {
	return a.with(ctx, "fd_read", func(s *State) Errno {
		buf, errno := firstIovec(mem, iovs, iovsLen)
		if errno != ErrnoSuccess {
			return errno
		}
		var n uint32
		if len(buf) > 0 {
			if n, errno = s.read(ctx, fd, buf); errno != ErrnoSuccess {
				return errno
			}
		}
		return storeU32(mem, nreadPtr, n)
	})
}

func (s *State) read(ctx context.Context, fd uint32, buf []byte) (uint32, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return 0, errno
	}
	if d.Kind != DescriptorStreams {
		return 0, ErrnoBadf
	}
	st := d.Streams
	switch st.Kind {
	case StreamEmptyInput:
		return 0, ErrnoSuccess
	case StreamSocket:
		return 0, ErrnoNotsup
	}
	stream, errno := st.readStream(ctx, s.caps)
	if errno != ErrnoSuccess {
		return 0, errno
	}

	var n int
	var eof bool
	errno = WithBuffer(&s.importAlloc, buf, func() Errno {
		data, serr := s.caps.Streams.MethodInputStreamBlockingRead(ctx, stream, uint64(len(buf)))
		if serr != nil {
			if serr.Closed {
				eof = true
				return ErrnoSuccess
			}
			return ErrnoIo
		}
		n = len(importBytes(&s.importAlloc, data))
		return ErrnoSuccess
	})
	if errno != ErrnoSuccess {
		return 0, errno
	}
	if n == 0 && !eof {
		return 0, ErrnoIntr
	}
	if st.File != nil {
		st.File.Position += uint64(n)
	}
	return uint32(n), ErrnoSuccess
}

// FdWrite writes the first non-empty iovec. Unless the file is in append
// mode its position moves past the written bytes.
func (a *Adapter) FdWrite(ctx context.Context, mem wasiadapter.Memory, fd, iovs, iovsLen, nwrittenPtr uint32) Errno {
	return a.with(ctx, "fd_write", func(s *State) Errno {
		buf, errno := firstIovec(mem, iovs, iovsLen)
		if errno != ErrnoSuccess {
			return errno
		}
		var n uint32
		if len(buf) > 0 {
			if n, errno = s.write(ctx, fd, buf); errno != ErrnoSuccess {
				return errno
			}
		}
		return storeU32(mem, nwrittenPtr, n)
	})
}

func (s *State) write(ctx context.Context, fd uint32, buf []byte) (uint32, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return 0, errno
	}
	switch d.Kind {
	case DescriptorClosed:
		return 0, ErrnoBadf
	case DescriptorStderr:
		// The sink swallows errors and always takes everything.
		_ = s.caps.Streams.MethodOutputStreamBlockingWriteAndFlush(ctx, s.stderrHandle(ctx), buf)
		return uint32(len(buf)), ErrnoSuccess
	}
	st := d.Streams
	if st.Kind == StreamSocket {
		return 0, ErrnoNotsup
	}
	stream, errno := st.writeStream(ctx, s.caps)
	if errno != ErrnoSuccess {
		return 0, errno
	}
	if serr := s.caps.Streams.MethodOutputStreamBlockingWriteAndFlush(ctx, stream, buf); serr != nil {
		return 0, ErrnoIo
	}
	if st.File != nil && !st.File.Append {
		st.File.Position += uint64(len(buf))
	}
	return uint32(len(buf)), ErrnoSuccess
}

func (a *Adapter) FdPrestatGet(ctx context.Context, mem wasiadapter.Memory, fd, prestatPtr uint32) Errno {
	return a.with(ctx, "fd_prestat_get", func(s *State) Errno {
		p, ok := s.getPreopen(ctx, fd)
		if !ok {
			return ErrnoBadf
		}
		b := Prestat{Tag: PreopentypeDir, NameLen: uint32(len(p.path))}.Encode()
		return store(mem, prestatPtr, b[:])
	})
}

func (a *Adapter) FdPrestatDirName(ctx context.Context, mem wasiadapter.Memory, fd, pathPtr, pathLen uint32) Errno {
	return a.with(ctx, "fd_prestat_dir_name", func(s *State) Errno {
		p, ok := s.getPreopen(ctx, fd)
		if !ok {
			return ErrnoNotdir
		}
		if uint64(pathLen) < uint64(len(p.path)) {
			return ErrnoNametoolong
		}
		return store(mem, pathPtr, p.path)
	})
}

func (a *Adapter) FdRenumber(ctx context.Context, from, to uint32) Errno {
	return a.withMut(ctx, "fd_renumber", func(s *State) Errno {
		return s.renumber(ctx, from, to)
	})
}

// FdSeek repositions a file. Cached streams are bound to the old position
// and are dropped.
func (a *Adapter) FdSeek(ctx context.Context, mem wasiadapter.Memory, fd uint32, offset int64, whence Whence, newOffsetPtr uint32) Errno {
	return a.with(ctx, "fd_seek", func(s *State) Errno {
		st, errno := s.getSeekableStream(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		if st.Kind != StreamFile {
			return ErrnoSpipe
		}
		file := st.File
		var pos int64
		switch whence {
		case WhenceSet:
			pos = offset
		case WhenceCur:
			pos = int64(file.Position) + offset
		case WhenceEnd:
			stat, err := s.caps.Filesystem.MethodDescriptorStat(ctx, file.Handle)
			if err != nil {
				return errnoOf(err)
			}
			pos = int64(stat.Size) + offset
		default:
			return ErrnoInval
		}
		// Positions before the start of the file are rejected for every whence.
		if pos < 0 {
			return ErrnoInval
		}
		st.dropInput(ctx, s.caps)
		st.dropOutput(ctx, s.caps)
		file.Position = uint64(pos)
		return storeU64(mem, newOffsetPtr, uint64(pos))
	})
}

func (a *Adapter) FdTell(ctx context.Context, mem wasiadapter.Memory, fd, offsetPtr uint32) Errno {
	return a.with(ctx, "fd_tell", func(s *State) Errno {
		st, errno := s.getSeekableFile(fd)
		if errno != ErrnoSuccess {
			return errno
		}
		return storeU64(mem, offsetPtr, st.File.Position)
	})
}
