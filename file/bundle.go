package file

import (
	"bytes"
	"io/ioutil"
	"os"
	"time"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	CreateBundleFailureFormat     = "Could not create bundle %s"
	WriteBundleEntryFailureFormat = "Could not write bundle entry %s"
	CloseWriterFailureMessage     = "Failed to close writer"
)

// BundleWriter writes a gzipped tarball of in-memory entries.
type BundleWriter struct {
	archive *archiver.TarGz
	out     afero.File
	modTime time.Time
}

func NewBundleWriter(fs afero.Fs, fileToCreate string, modTime time.Time) (*BundleWriter, error) {
	out, err := fs.Create(fileToCreate)
	if err != nil {
		return nil, errors.Wrapf(err, CreateBundleFailureFormat, fileToCreate)
	}

	archive := archiver.NewTarGz()
	if err := archive.Create(out); err != nil {
		out.Close()
		return nil, errors.Wrapf(err, CreateBundleFailureFormat, fileToCreate)
	}
	return &BundleWriter{archive: archive, out: out, modTime: modTime}, nil
}

func (bw *BundleWriter) AddFile(contents []byte, fileName string) error {
	err := bw.archive.Write(archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   entryInfo{name: fileName, size: int64(len(contents)), modTime: bw.modTime},
			CustomName: fileName,
		},
		ReadCloser: ioutil.NopCloser(bytes.NewReader(contents)),
	})
	if err != nil {
		return errors.Wrapf(err, WriteBundleEntryFailureFormat, fileName)
	}
	return nil
}

func (bw *BundleWriter) Close() error {
	if err := bw.archive.Close(); err != nil {
		return errors.Wrap(err, CloseWriterFailureMessage)
	}
	if err := bw.out.Close(); err != nil {
		return errors.Wrap(err, CloseWriterFailureMessage)
	}
	return nil
}

type entryInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (e entryInfo) Name() string       { return e.name }
func (e entryInfo) Size() int64        { return e.size }
func (e entryInfo) Mode() os.FileMode  { return 0644 }
func (e entryInfo) ModTime() time.Time { return e.modTime }
func (e entryInfo) IsDir() bool        { return false }
func (e entryInfo) Sys() interface{}   { return nil }
