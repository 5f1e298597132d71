package manifest

import (
	"encoding/json"
	"fmt"
)

type Requirement string

const (
	Required    Requirement = "required"
	Unsupported Requirement = "unsupported"
)

func (r *Requirement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Requirement(s) {
	case Required, Unsupported:
		*r = Requirement(s)
		return nil
	}
	return fmt.Errorf("unknown requirement %q", s)
}

type Hashes struct {
	SHA1   string `json:"sha1"`
	SHA512 string `json:"sha512"`
}

type Env struct {
	Client Requirement `json:"client"`
	Server Requirement `json:"server"`
}

// File is one entry of the pack. Downloads are mirrors in priority order.
type File struct {
	Path      string   `json:"path"`
	Hashes    Hashes   `json:"hashes"`
	Env       Env      `json:"env"`
	Downloads []string `json:"downloads"`
	FileSize  uint64   `json:"fileSize"`
}

type Manifest struct {
	FormatVersion int               `json:"formatVersion"`
	Game          string            `json:"game"`
	VersionID     string            `json:"versionId"`
	Name          string            `json:"name"`
	Files         []File            `json:"files"`
	Dependencies  map[string]string `json:"dependencies"`
}

// ForSide returns the files that are not unsupported on the given side
// ("client" or "server"). An empty side keeps every file.
func (m *Manifest) ForSide(side string) ([]File, error) {
	var files []File
	for _, f := range m.Files {
		var req Requirement
		switch side {
		case "":
			files = append(files, f)
			continue
		case "client":
			req = f.Env.Client
		case "server":
			req = f.Env.Server
		default:
			return nil, fmt.Errorf("unknown side %q", side)
		}
		if req != Unsupported {
			files = append(files, f)
		}
	}
	return files, nil
}

// TotalSize sums the declared sizes of the given files.
func TotalSize(files []File) uint64 {
	var total uint64
	for _, f := range files {
		total += f.FileSize
	}
	return total
}
