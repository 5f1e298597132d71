package fetcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mrpack-downloader/internal/utils"
)

// Destination is what a transport writes a mirror body into. S3 downloads
// use WriteAt, streamed HTTP bodies use Write.
type Destination interface {
	io.Writer
	io.WriterAt
}

// Staged is a pending file. Commit publishes it under its final name in one
// step; Abort discards it. Exactly one of the two must be called.
type Staged interface {
	Destination
	Commit() (string, error)
	Abort() error
}

type Sink interface {
	Stage(name string) (Staged, error)
}

// DiskSink stages files in a temporary directory inside Dir and renames them
// into Dir on commit, so a destination file is either absent or complete.
type DiskSink struct {
	Dir string
}

func NewDiskSink(dir string) *DiskSink {
	return &DiskSink{Dir: dir}
}

func (s *DiskSink) Stage(name string) (Staged, error) {
	tempDir := filepath.Join(s.Dir, utils.TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, &WriteError{Path: tempDir, Err: err}
	}
	tempPath := filepath.Join(tempDir, uuid.NewString()+".part")
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, &WriteError{Path: tempPath, Err: err}
	}
	return &diskFile{
		file:      f,
		tempPath:  tempPath,
		finalPath: filepath.Join(s.Dir, name),
	}, nil
}

type diskFile struct {
	file      *os.File
	tempPath  string
	finalPath string
}

func (d *diskFile) Write(p []byte) (int, error) {
	n, err := d.file.Write(p)
	if err != nil {
		return n, &WriteError{Path: d.tempPath, Err: err}
	}
	return n, nil
}

func (d *diskFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.file.WriteAt(p, off)
	if err != nil {
		return n, &WriteError{Path: d.tempPath, Err: err}
	}
	return n, nil
}

func (d *diskFile) Commit() (string, error) {
	if err := d.file.Sync(); err != nil {
		d.Abort()
		return "", &WriteError{Path: d.tempPath, Err: err}
	}
	if err := d.file.Close(); err != nil {
		os.Remove(d.tempPath)
		return "", &WriteError{Path: d.tempPath, Err: err}
	}
	if err := os.Rename(d.tempPath, d.finalPath); err != nil {
		os.Remove(d.tempPath)
		return "", &WriteError{Path: d.finalPath, Err: fmt.Errorf("error finalizing file: %w", err)}
	}
	log.Debug().Str("op", "fetcher/sink").Msgf("Committed %s", d.finalPath)
	return d.finalPath, nil
}

func (d *diskFile) Abort() error {
	d.file.Close()
	if err := os.Remove(d.tempPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
