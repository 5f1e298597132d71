package manifest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
)

// IndexName is the manifest file stored at the root of a .mrpack archive.
const IndexName = "modrinth.index.json"

var ErrNotFound = errors.New("manifest not found")

// ParseError is returned for documents that are not valid JSON or do not
// match the manifest schema.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid manifest: %v", e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads a manifest from path. The path may point at a raw index JSON
// document or at a .mrpack archive containing one.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	if isZip(data) {
		log.Debug().Str("op", "manifest/loader").Msgf("Reading %s from archive %s", IndexName, path)
		data, err = readIndex(data)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, IndexName, path)
			}
			return nil, &ParseError{Source: path, Err: err}
		}
	}
	m, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Source = path
		}
		return nil, err
	}
	log.Info().Str("op", "manifest/loader").Msgf("Loaded %s (%d files)", m.Name, len(m.Files))
	return m, nil
}

// document mirrors Manifest with pointers for the keys that must be present.
type document struct {
	FormatVersion int               `json:"formatVersion"`
	Game          string            `json:"game"`
	VersionID     string            `json:"versionId"`
	Name          string            `json:"name"`
	Files         *[]fileDocument   `json:"files"`
	Dependencies  map[string]string `json:"dependencies"`
}

type fileDocument struct {
	Path      *string      `json:"path"`
	Hashes    Hashes       `json:"hashes"`
	Env       *envDocument `json:"env"`
	Downloads []string     `json:"downloads"`
	FileSize  uint64       `json:"fileSize"`
}

type envDocument struct {
	Client *Requirement `json:"client"`
	Server *Requirement `json:"server"`
}

// Parse decodes a manifest document. The document must be an object with a
// files list; every file needs a path, a client and server requirement and
// at least one download.
func Parse(data []byte) (*Manifest, error) {
	var doc *document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Err: errors.New("document is null")}
	}
	if doc.Files == nil {
		return nil, &ParseError{Err: errors.New("missing files")}
	}
	m := &Manifest{
		FormatVersion: doc.FormatVersion,
		Game:          doc.Game,
		VersionID:     doc.VersionID,
		Name:          doc.Name,
		Files:         make([]File, 0, len(*doc.Files)),
		Dependencies:  doc.Dependencies,
	}
	for i, fd := range *doc.Files {
		f, err := fd.file()
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("file %d: %w", i, err)}
		}
		m.Files = append(m.Files, f)
	}
	return m, nil
}

func (fd fileDocument) file() (File, error) {
	if fd.Path == nil {
		return File{}, errors.New("missing path")
	}
	if fd.Env == nil {
		return File{}, fmt.Errorf("%s: missing env", *fd.Path)
	}
	if fd.Env.Client == nil || fd.Env.Server == nil {
		return File{}, fmt.Errorf("%s: env needs both client and server", *fd.Path)
	}
	if len(fd.Downloads) == 0 {
		return File{}, fmt.Errorf("%s: no downloads", *fd.Path)
	}
	return File{
		Path:      *fd.Path,
		Hashes:    fd.Hashes,
		Env:       Env{Client: *fd.Env.Client, Server: *fd.Env.Server},
		Downloads: fd.Downloads,
		FileSize:  fd.FileSize,
	}, nil
}

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func readIndex(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("error opening archive: %w", err)
	}
	f, err := zr.Open(IndexName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
