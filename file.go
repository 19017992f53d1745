package e2ee

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/absfs/absfs"
)

// partialSuffix marks output that has not been completely written
const partialSuffix = ".partial"

// FileSystem is the subset of absfs.FileSystem used by EncryptFile and
// DecryptFile. Any absfs filesystem (memfs, osfs, ...) satisfies it.
type FileSystem interface {
	Open(name string) (absfs.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
}

// osFileSystem is a FileSystem backed by the os package
type osFileSystem struct{}

// OSFileSystem returns a FileSystem using the host filesystem
func OSFileSystem() FileSystem {
	return osFileSystem{}
}

func (osFileSystem) Open(name string) (absfs.File, error) {
	return os.Open(name)
}

func (osFileSystem) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (osFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (osFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// EncryptFile encrypts src into dst. Output goes to dst+".partial" and is
// renamed into place only once complete; on failure or cancellation the
// partial file is removed and dst is left untouched.
func (s *Service) EncryptFile(ctx context.Context, src, dst string, opts ...EncryptOption) (err error) {
	start := time.Now()
	method := s.config.DefaultMethod
	defer func() { s.metrics.record(ctx, opEncryptFile, method, start, err) }()

	return s.transformFile(src, dst, func(in absfs.File, out *bufio.Writer) error {
		var err error
		_, method, err = s.encryptStream(ctx, in, out, opts)
		return err
	})
}

// DecryptFile decrypts src, written by EncryptFile or EncryptStream, into
// dst with the same partial-file handling as EncryptFile. dst never holds
// unauthenticated plaintext.
func (s *Service) DecryptFile(ctx context.Context, src, dst string) (err error) {
	start := time.Now()
	var method Method
	defer func() { s.metrics.record(ctx, opDecryptFile, method, start, err) }()

	return s.transformFile(src, dst, func(in absfs.File, out *bufio.Writer) error {
		var err error
		_, method, err = s.decryptStream(ctx, in, out)
		return err
	})
}

func (s *Service) transformFile(src, dst string, fn func(in absfs.File, out *bufio.Writer) error) error {
	if err := ValidateFilePath(src); err != nil {
		return err
	}
	if err := ValidateFilePath(dst); err != nil {
		return err
	}
	fsys := s.config.FS

	in, err := fsys.Open(src)
	if err != nil {
		return NewIOError("open", src, err)
	}
	defer in.Close()

	partial := dst + partialSuffix
	out, err := fsys.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewIOError("create", partial, err)
	}

	fail := func(err error) error {
		out.Close()
		if rmErr := fsys.Remove(partial); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("failed to remove partial file",
				slog.String("path", partial),
				slog.Any("error", rmErr))
		}
		return err
	}

	bw := bufio.NewWriter(out)
	if err := fn(in, bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(NewIOError("write", partial, err))
	}
	if err := out.Close(); err != nil {
		fsys.Remove(partial)
		return NewIOError("close", partial, err)
	}
	if err := fsys.Rename(partial, dst); err != nil {
		fsys.Remove(partial)
		return NewIOError("rename", dst, err)
	}

	s.logger.Debug("wrote file", slog.String("path", dst))
	return nil
}
