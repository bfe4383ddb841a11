package preview1

import (
	"context"

	wasiadapter "github.com/wippyai/wasi-adapter"
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

// dirPath resolves the directory fd and reads the guest path relative to it.
func (s *State) dirPath(mem wasiadapter.Memory, fd, pathPtr, pathLen uint32) (uint32, string, Errno) {
	dir, errno := s.getDir(fd)
	if errno != ErrnoSuccess {
		return 0, "", errno
	}
	path, errno := viewString(mem, pathPtr, pathLen)
	if errno != ErrnoSuccess {
		return 0, "", errno
	}
	return dir.File.Handle, path, ErrnoSuccess
}

func (a *Adapter) PathCreateDirectory(ctx context.Context, mem wasiadapter.Memory, fd, pathPtr, pathLen uint32) Errno {
	return a.with(ctx, "path_create_directory", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorCreateDirectoryAt(ctx, dir, path))
	})
}

func (a *Adapter) PathFilestatGet(ctx context.Context, mem wasiadapter.Memory, fd uint32, flags Lookupflags, pathPtr, pathLen, statPtr uint32) Errno {
	return a.with(ctx, "path_filestat_get", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		stat, err := s.caps.Filesystem.MethodDescriptorStatAt(ctx, dir, pathFlagsOf(flags), path)
		if err != nil {
			return errnoOf(err)
		}
		b := filestatOf(stat).Encode()
		return store(mem, statPtr, b[:])
	})
}

func (a *Adapter) PathFilestatSetTimes(ctx context.Context, mem wasiadapter.Memory, fd uint32, flags Lookupflags, pathPtr, pathLen uint32, atim, mtim uint64, fstflags Fstflags) Errno {
	return a.with(ctx, "path_filestat_set_times", func(s *State) Errno {
		atime, mtime, errno := timestampsOf(atim, mtim, fstflags)
		if errno != ErrnoSuccess {
			return errno
		}
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSetTimesAt(ctx, dir, pathFlagsOf(flags), path, atime, mtime))
	})
}

func (a *Adapter) PathLink(ctx context.Context, mem wasiadapter.Memory, oldFd uint32, oldFlags Lookupflags, oldPathPtr, oldPathLen, newFd, newPathPtr, newPathLen uint32) Errno {
	return a.with(ctx, "path_link", func(s *State) Errno {
		oldDir, oldPath, errno := s.dirPath(mem, oldFd, oldPathPtr, oldPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		newDir, newPath, errno := s.dirPath(mem, newFd, newPathPtr, newPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorLinkAt(ctx, oldDir, pathFlagsOf(oldFlags), oldPath, newDir, newPath))
	})
}

// PathOpen opens a file relative to a directory and installs it as a new
// descriptor. Inheriting rights are ignored; the base rights only select
// read and write access.
func (a *Adapter) PathOpen(ctx context.Context, mem wasiadapter.Memory, fd uint32, dirflags Lookupflags, pathPtr, pathLen uint32,
	oflags Oflags, rightsBase, rightsInheriting Rights, fdflags Fdflags, fdPtr uint32) Errno {
	return a.withMut(ctx, "path_open", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		flags := descriptorFlagsOf(rightsBase, fdflags)
		parent, err := s.caps.Filesystem.MethodDescriptorGetFlags(ctx, dir)
		if err != nil {
			return errnoOf(err)
		}
		flags |= parent & filesystem.DescriptorFlagMutateDirectory

		h, err := s.caps.Filesystem.MethodDescriptorOpenAt(ctx, dir, pathFlagsOf(dirflags), path, openFlagsOf(oflags), flags)
		if err != nil {
			return errnoOf(err)
		}
		newFd, errno := s.allocDesc(streamsDescriptor(newFileStreams(h, fdflags&FdflagsAppend != 0)))
		if errno != ErrnoSuccess {
			s.caps.Filesystem.ResourceDropDescriptor(ctx, h)
			return errno
		}
		return storeU32(mem, fdPtr, newFd)
	})
}

// PathReadlink copies the link target into buf, truncated to bufLen.
func (a *Adapter) PathReadlink(ctx context.Context, mem wasiadapter.Memory, fd, pathPtr, pathLen, bufPtr, bufLen, bufusedPtr uint32) Errno {
	return a.with(ctx, "path_readlink", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		buf, errno := view(mem, bufPtr, bufLen)
		if errno != ErrnoSuccess {
			return errno
		}
		// A target may be up to PathMax long; read short buffers through
		// the scratch buffer so it always fits.
		dst := buf
		if bufLen < PathMax {
			dst = s.pathBuf[:]
		}
		var target []byte
		errno = WithBuffer(&s.importAlloc, dst, func() Errno {
			t, err := s.caps.Filesystem.MethodDescriptorReadlinkAt(ctx, dir, path)
			if err != nil {
				return errnoOf(err)
			}
			target = importString(&s.importAlloc, t)
			return ErrnoSuccess
		})
		if errno != ErrnoSuccess {
			return errno
		}
		n := copy(buf, target)
		return storeU32(mem, bufusedPtr, uint32(n))
	})
}

func (a *Adapter) PathRemoveDirectory(ctx context.Context, mem wasiadapter.Memory, fd, pathPtr, pathLen uint32) Errno {
	return a.with(ctx, "path_remove_directory", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorRemoveDirectoryAt(ctx, dir, path))
	})
}

func (a *Adapter) PathRename(ctx context.Context, mem wasiadapter.Memory, oldFd, oldPathPtr, oldPathLen, newFd, newPathPtr, newPathLen uint32) Errno {
	return a.with(ctx, "path_rename", func(s *State) Errno {
		oldDir, oldPath, errno := s.dirPath(mem, oldFd, oldPathPtr, oldPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		newDir, newPath, errno := s.dirPath(mem, newFd, newPathPtr, newPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorRenameAt(ctx, oldDir, oldPath, newDir, newPath))
	})
}

func (a *Adapter) PathSymlink(ctx context.Context, mem wasiadapter.Memory, oldPathPtr, oldPathLen, fd, newPathPtr, newPathLen uint32) Errno {
	return a.with(ctx, "path_symlink", func(s *State) Errno {
		target, errno := viewString(mem, oldPathPtr, oldPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		dir, path, errno := s.dirPath(mem, fd, newPathPtr, newPathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorSymlinkAt(ctx, dir, target, path))
	})
}

func (a *Adapter) PathUnlinkFile(ctx context.Context, mem wasiadapter.Memory, fd, pathPtr, pathLen uint32) Errno {
	return a.with(ctx, "path_unlink_file", func(s *State) Errno {
		dir, path, errno := s.dirPath(mem, fd, pathPtr, pathLen)
		if errno != ErrnoSuccess {
			return errno
		}
		return errnoOf(s.caps.Filesystem.MethodDescriptorUnlinkFileAt(ctx, dir, path))
	})
}
