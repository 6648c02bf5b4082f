package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

const (
	ListDirectoryErrorFormat  = "Failed listing staged files in %s"
	ContentReadingErrorFormat = "Failed to read content for %s"
	DecodeEnvelopeErrorFormat = "Failed decoding staged envelope %s"
)

var stagedNamePattern = regexp.MustCompile(`^(_latest|_[0-9A-Za-z]*)_([0-9]{8}T[0-9]{6}Z)\.json$`)

// StagedFile is a staged artifact as found on disk.
type StagedFile struct {
	Path       string
	Name       string
	DateSuffix string
	Timestamp  time.Time
}

type Reader struct {
	fs   afero.Fs
	root string
}

func NewReader(fs afero.Fs, root string) *Reader {
	return &Reader{fs: fs, root: root}
}

// List returns the staged files of d, oldest first. A dataset that was never
// staged has no files, which is not an error.
func (r *Reader) List(d registry.Descriptor) ([]StagedFile, error) {
	dir := filepath.Join(r.root, d.Directory)
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, ListDirectoryErrorFormat, dir)
	}

	var staged []StagedFile
	for _, info := range infos {
		if info.IsDir() || !strings.HasPrefix(info.Name(), d.FilePrefix) {
			continue
		}
		match := stagedNamePattern.FindStringSubmatch(strings.TrimPrefix(info.Name(), d.FilePrefix))
		if match == nil {
			continue
		}
		ts, err := provenance.ParseTimestamp(match[2])
		if err != nil {
			continue
		}
		staged = append(staged, StagedFile{
			Path:       filepath.Join(dir, info.Name()),
			Name:       info.Name(),
			DateSuffix: match[1],
			Timestamp:  ts,
		})
	}

	sort.SliceStable(staged, func(i, j int) bool {
		return staged[i].Timestamp.Before(staged[j].Timestamp)
	})
	return staged, nil
}

// Latest finds the newest staged file of d for targetDate ("" for the latest
// snapshot).
func (r *Reader) Latest(d registry.Descriptor, targetDate string) (StagedFile, bool, error) {
	staged, err := r.List(d)
	if err != nil {
		return StagedFile{}, false, err
	}

	suffix := DateSuffix(targetDate)
	for i := len(staged) - 1; i >= 0; i-- {
		if staged[i].DateSuffix == suffix {
			return staged[i], true, nil
		}
	}
	return StagedFile{}, false, nil
}

func (r *Reader) Read(path string) ([]byte, error) {
	contents, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, ContentReadingErrorFormat, path)
	}
	return contents, nil
}

func (r *Reader) Load(path string) (provenance.Envelope, error) {
	contents, err := r.Read(path)
	if err != nil {
		return provenance.Envelope{}, err
	}

	var env provenance.Envelope
	if err := json.Unmarshal(contents, &env); err != nil {
		return provenance.Envelope{}, errors.Wrapf(err, DecodeEnvelopeErrorFormat, path)
	}
	return env, nil
}
