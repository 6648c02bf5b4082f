package file

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

const (
	CreateDirectoryErrorFormat = "Failed creating directory %s"
	EncodeEnvelopeErrorFormat  = "Failed encoding envelope for %s"
	EncodeSummaryErrorFormat   = "Failed encoding lag summary for %s"
	TempNameErrorMessage       = "Failed generating temporary file name"
	ContentWritingErrorFormat  = "Failed to write file for %s"
	RenameErrorFormat          = "Failed moving staged file into place at %s"

	indent = "  "
)

// Writer persists envelopes under a staging root. Files appear complete or not
// at all: content goes to a hidden temp file in the target directory which is
// then renamed over the final path.
type Writer struct {
	fs   afero.Fs
	root string
}

func NewWriter(fs afero.Fs, root string) *Writer {
	return &Writer{fs: fs, root: root}
}

// Stage writes env for d and returns the final path.
func (w *Writer) Stage(d registry.Descriptor, env provenance.Envelope) (string, error) {
	target := OutputPath(w.root, d, env.Metadata.Target(), env.Metadata.FetchTimestamp)
	contents, err := json.MarshalIndent(env, "", indent)
	if err != nil {
		return "", errors.Wrapf(err, EncodeEnvelopeErrorFormat, d.Name)
	}
	if err := w.writeAtomic(d, target, contents); err != nil {
		return "", err
	}
	return target, nil
}

// WriteLagged writes a lag summary for d under the lagged directory and
// returns its path.
func (w *Writer) WriteLagged(d registry.Descriptor, lagMonths int, timestamp string, summary interface{}) (string, error) {
	target := LaggedPath(w.root, d, lagMonths, timestamp)
	contents, err := json.MarshalIndent(summary, "", indent)
	if err != nil {
		return "", errors.Wrapf(err, EncodeSummaryErrorFormat, d.Name)
	}
	if err := w.writeAtomic(d, target, contents); err != nil {
		return "", err
	}
	return target, nil
}

func (w *Writer) writeAtomic(d registry.Descriptor, target string, contents []byte) error {
	dir := filepath.Dir(target)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, CreateDirectoryErrorFormat, dir)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return errors.Wrap(err, TempNameErrorMessage)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(target), id))

	if err := afero.WriteFile(w.fs, tmp, contents, 0644); err != nil {
		w.fs.Remove(tmp)
		return errors.Wrapf(err, ContentWritingErrorFormat, d.Name)
	}
	if err := w.fs.Rename(tmp, target); err != nil {
		w.fs.Remove(tmp)
		return errors.Wrapf(err, RenameErrorFormat, target)
	}
	return nil
}
