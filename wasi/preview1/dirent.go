package preview1

import (
	"context"

	wasiadapter "github.com/wippyai/wasi-adapter"
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

// direntIter yields a directory's entries with "." and ".." in front.
// cookie is the position of the next entry.
type direntIter struct {
	s      *State
	dir    uint32
	stream uint32
	cookie uint64
}

// next returns the next entry and its name, or false at the end. Names of
// real entries live in the state's path buffer until the following call.
func (it *direntIter) next(ctx context.Context) (Dirent, []byte, bool, Errno) {
	s := it.s
	cookie := it.cookie
	it.cookie++
	switch cookie {
	case 0:
		stat, err := s.caps.Filesystem.MethodDescriptorStat(ctx, it.dir)
		if err != nil {
			return Dirent{}, nil, false, errnoOf(err)
		}
		return Dirent{Next: it.cookie, Ino: stat.Inode, Namlen: 1, Type: FiletypeDirectory}, s.dotdot[:1], true, ErrnoSuccess
	case 1:
		return Dirent{Next: it.cookie, Namlen: 2, Type: FiletypeDirectory}, s.dotdot[:2], true, ErrnoSuccess
	}

	var d Dirent
	var name []byte
	var ok bool
	errno := WithBuffer(&s.importAlloc, s.pathBuf[:], func() Errno {
		entry, err := s.caps.Filesystem.MethodDirectoryEntryStreamReadDirectoryEntry(ctx, it.stream)
		if err != nil {
			return errnoOf(err)
		}
		if entry == nil {
			return ErrnoSuccess
		}
		name = importString(&s.importAlloc, entry.Name)
		d = Dirent{
			Next:   it.cookie,
			Ino:    entry.Inode,
			Namlen: uint32(len(name)),
			Type:   filetypeOf(filesystem.DescriptorType(entry.Type)),
		}
		ok = true
		return ErrnoSuccess
	})
	return d, name, ok, errno
}

// FdReaddir fills buf with entries starting at cookie. When an entry does
// not fit, the listing is parked in the dirent cache so a call resuming at
// that entry continues the same iterator.
func (a *Adapter) FdReaddir(ctx context.Context, mem wasiadapter.Memory, fd, bufPtr, bufLen uint32, cookie uint64, bufusedPtr uint32) Errno {
	return a.withMut(ctx, "fd_readdir", func(s *State) Errno {
		buf, errno := view(mem, bufPtr, bufLen)
		if errno != ErrnoSuccess {
			return errno
		}
		n, errno := s.readdir(ctx, fd, buf, cookie)
		if errno != ErrnoSuccess {
			return errno
		}
		return storeU32(mem, bufusedPtr, n)
	})
}

func (s *State) readdir(ctx context.Context, fd uint32, buf []byte, cookie uint64) (uint32, Errno) {
	resume := s.dirent.hasStream && s.dirent.fd == fd && s.dirent.cookie == cookie
	if !resume {
		s.dropDirentCache(ctx)
	}
	dir, errno := s.getDir(fd)
	if errno != ErrnoSuccess {
		return 0, errno
	}

	it := &direntIter{s: s, dir: dir.File.Handle}
	w := direntWriter{buf: buf}
	if resume {
		it.stream, it.cookie = s.dirent.stream, cookie+1
		s.dirent.hasStream = false
		d := s.dirent.dirent
		if !w.put(d, s.dirent.name[:d.Namlen]) {
			s.cacheDirent(it, fd, d, s.dirent.name[:d.Namlen])
			return w.n, ErrnoSuccess
		}
	} else {
		stream, err := s.caps.Filesystem.MethodDescriptorReadDirectory(ctx, it.dir)
		if err != nil {
			return 0, errnoOf(err)
		}
		it.stream = stream
		for it.cookie < cookie {
			_, _, ok, errno := it.next(ctx)
			if errno != ErrnoSuccess || !ok {
				s.caps.Filesystem.ResourceDropDirectoryEntryStream(ctx, it.stream)
				return 0, errno
			}
		}
	}

	for {
		d, name, ok, errno := it.next(ctx)
		if errno != ErrnoSuccess || !ok {
			s.caps.Filesystem.ResourceDropDirectoryEntryStream(ctx, it.stream)
			return w.n, errno
		}
		if !w.put(d, name) {
			if len(name) > DirentCacheSize {
				s.caps.Filesystem.ResourceDropDirectoryEntryStream(ctx, it.stream)
				return w.n, ErrnoSuccess
			}
			s.cacheDirent(it, fd, d, name)
			return w.n, ErrnoSuccess
		}
	}
}

// cacheDirent parks the iterator with d as the pending entry. d.Next is
// the cookie after d, so d itself resumes at d.Next-1.
func (s *State) cacheDirent(it *direntIter, fd uint32, d Dirent, name []byte) {
	s.dirent.stream, s.dirent.hasStream = it.stream, true
	s.dirent.fd = fd
	s.dirent.cookie = d.Next - 1
	s.dirent.dirent = d
	copy(s.dirent.name[:], name)
}

// direntWriter packs records into a guest buffer, truncating the last one.
type direntWriter struct {
	buf []byte
	n   uint32
}

// put writes d and name, reporting false once the buffer is full.
func (w *direntWriter) put(d Dirent, name []byte) bool {
	rec := d.Encode()
	k := copy(w.buf, rec[:])
	w.buf = w.buf[k:]
	k2 := copy(w.buf, name)
	w.buf = w.buf[k2:]
	w.n += uint32(k + k2)
	return len(w.buf) > 0
}
