// Package container provides crash-safe, lock-guarded storage for one
// signing key's on-disk state: the private key blob (written
// atomically, per the persist-then-release contract) and an
// mmap-backed aux-data cache file that survives process restarts. It
// is the filesystem analogue of the teacher's fsContainer, retargeted
// from a per-subtree cache keyed by XMSS^MT addresses to a single
// flat key blob plus a single flat aux blob, since the engine
// materializes its signing stack from a seed on every sign rather
// than keeping a subtree cache keyed by address.
package container

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/hashicorp/go-multierror"
	"github.com/nightlyone/lockfile"
)

// keyMagic distinguishes a key file written by this package from any
// other blob that might end up at the same path.
var keyMagic = [4]byte{'L', 'M', 'S', 'K'}

// auxMagic distinguishes an aux-cache file similarly.
var auxMagic = [4]byte{'L', 'M', 'S', 'A'}

// PrivateKeyContainer owns exclusive access to one signing key's
// persisted state across process restarts. ReferenceImplPrivateKey
// bytes are the only thing that must survive a crash mid-sign (see
// §4.7): the aux cache is a pure performance optimization and is
// allowed to be stale or absent without losing security.
type PrivateKeyContainer interface {
	// Reset initializes (or overwrites) the container with a freshly
	// generated key and an aux cache of the given byte budget.
	Reset(skBytes []byte, auxBudget int) error

	// GetPrivateKey returns the currently persisted key bytes.
	GetPrivateKey() ([]byte, error)

	// Persist durably overwrites the key bytes. Intended as the
	// persist callback passed to the signing entry point: Sign must
	// not release its signature until this returns nil.
	Persist(skBytes []byte) error

	// AuxBytes returns the current aux-cache region: the last wire
	// bytes stored, followed by zero padding up to the reserved size,
	// or nil if the container was opened with no aux budget.
	AuxBytes() ([]byte, error)

	// SetAuxBytes durably overwrites the aux-cache wire bytes. Grows
	// the backing file if buf is larger than the space reserved at
	// Reset.
	SetAuxBytes(buf []byte) error

	// Close releases the container's file handles and its exclusive
	// lock. The container must not be used afterwards.
	Close() error
}

// fsContainer is a PrivateKeyContainer backed by three files sharing
// one base path: path (the key blob), path+".lock" (an exclusive
// lockfile), and path+".aux" (an mmap'd aux-cache blob).
type fsContainer struct {
	path string
	lock lockfile.Lockfile

	auxPath string
	auxFile *os.File
	auxMmap mmap.MMap
}

// Open acquires an exclusive lock on path and returns a container
// ready for Reset (if new) or GetPrivateKey/Persist (if previously
// initialized). Only one Open of a path may be live at a time, in this
// process or any other; a second Open on the same path fails
// immediately rather than blocking, since two live signers sharing one
// counter would replay leaves.
func Open(path string) (PrivateKeyContainer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("container: resolve %s: %w", path, err)
	}
	lock, err := lockfile.New(abs + ".lock")
	if err != nil {
		return nil, fmt.Errorf("container: create lockfile for %s: %w", abs, err)
	}
	// TryLock succeeds again for the process that already owns the
	// lock, so a second Open from this process is refused here.
	if owner, oerr := lock.GetOwner(); oerr == nil && owner.Pid == os.Getpid() {
		return nil, fmt.Errorf("container: %s is already open in this process", abs)
	}
	if err := lock.TryLock(); err != nil {
		return nil, fmt.Errorf("container: lock %s: %w", abs, err)
	}
	return &fsContainer{path: abs, auxPath: abs + ".aux"}, nil
}

// Reset writes a fresh key file and allocates an aux-cache file of a
// 4-byte header plus auxBudget payload bytes. A zero auxBudget skips
// aux-cache allocation entirely.
func (c *fsContainer) Reset(skBytes []byte, auxBudget int) error {
	if err := writeFileAtomic(c.path, append(append([]byte{}, keyMagic[:]...), skBytes...)); err != nil {
		return fmt.Errorf("container: write key file: %w", err)
	}
	if c.auxFile != nil {
		if err := c.closeAux(); err != nil {
			return err
		}
	}
	if auxBudget <= 0 {
		os.Remove(c.auxPath)
		return nil
	}
	size := 4 + auxBudget
	buf := make([]byte, size)
	copy(buf, auxMagic[:])
	if err := writeFileAtomic(c.auxPath, buf); err != nil {
		return fmt.Errorf("container: write aux file: %w", err)
	}
	return c.openAux()
}

// GetPrivateKey reads and returns the currently persisted key bytes.
func (c *fsContainer) GetPrivateKey() ([]byte, error) {
	buf, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("container: read key file: %w", err)
	}
	if len(buf) < 4 || !bytes.Equal(buf[:4], keyMagic[:]) {
		return nil, fmt.Errorf("container: %s is not a key file", c.path)
	}
	return buf[4:], nil
}

// Persist durably overwrites the key file: write to a temp file in
// the same directory, fsync it, rename over the original, then fsync
// the parent directory so the rename itself survives a crash. A
// caller's signature must never be released before this returns nil,
// or a crash between sign and persist could let the next process
// resign the same leaf.
func (c *fsContainer) Persist(skBytes []byte) error {
	return writeFileAtomic(c.path, append(append([]byte{}, keyMagic[:]...), skBytes...))
}

func (c *fsContainer) openAux() error {
	f, err := os.OpenFile(c.auxPath, os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("container: open aux file: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("container: mmap aux file: %w", err)
	}
	if len(m) < 4 || !bytes.Equal(m[:4], auxMagic[:]) {
		m.Unmap()
		f.Close()
		return fmt.Errorf("container: %s is not an aux file", c.auxPath)
	}
	c.auxFile, c.auxMmap = f, m
	return nil
}

func (c *fsContainer) closeAux() error {
	var result *multierror.Error
	if c.auxMmap != nil {
		if err := c.auxMmap.Unmap(); err != nil {
			result = multierror.Append(result, err)
		}
		c.auxMmap = nil
	}
	if c.auxFile != nil {
		if err := c.auxFile.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		c.auxFile = nil
	}
	return result.ErrorOrNil()
}

// AuxBytes returns the payload currently mapped for the aux cache, or
// nil if this container has no aux file (yet, or ever).
func (c *fsContainer) AuxBytes() ([]byte, error) {
	if c.auxMmap == nil {
		if _, err := os.Stat(c.auxPath); err != nil {
			return nil, nil
		}
		if err := c.openAux(); err != nil {
			return nil, err
		}
	}
	return append([]byte{}, c.auxMmap[4:]...), nil
}

// SetAuxBytes overwrites the mapped aux payload in place when it
// fits, falling back to a full atomic rewrite (reopening the mapping
// afterwards) when buf has grown past the space reserved at Reset:
// the cache only grows when a wider SST quorum is finalized onto the
// same key.
func (c *fsContainer) SetAuxBytes(buf []byte) error {
	if c.auxMmap != nil && len(buf) <= len(c.auxMmap)-4 {
		copy(c.auxMmap[4:], buf)
		for i := 4 + len(buf); i < len(c.auxMmap); i++ {
			c.auxMmap[i] = 0
		}
		return c.auxMmap.Flush()
	}
	if err := c.closeAux(); err != nil {
		return err
	}
	out := make([]byte, 4+len(buf))
	copy(out, auxMagic[:])
	copy(out[4:], buf)
	if err := writeFileAtomic(c.auxPath, out); err != nil {
		return fmt.Errorf("container: grow aux file: %w", err)
	}
	return c.openAux()
}

// Close releases the aux mapping, the key file's lock, and removes
// the lockfile. The container must not be used afterwards.
func (c *fsContainer) Close() error {
	var result *multierror.Error
	if err := c.closeAux(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.lock.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// writeFileAtomic writes buf to a temp file alongside path, fsyncs
// it, renames it over path, then fsyncs the parent directory: a
// crash at any point before the final directory fsync leaves either
// the old or the new contents at path, never a half-written file.
func writeFileAtomic(path string, buf []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
