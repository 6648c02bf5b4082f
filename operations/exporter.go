package operations

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"path"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

const (
	ManifestFileName = "manifest.json"

	ListStagedFailureFormat      = "Failed listing staged snapshots for %s"
	ContentReadingFailureMessage = "Failed to read content"
	DataWriteFailureMessage      = "Failed writing data"
	ManifestFailureMessage       = "Failed building manifest"
	NothingToExportMessage       = "No staged snapshots to export"
)

type bundleWriter interface {
	AddFile([]byte, string) error
	Close() error
}

type stagedSource interface {
	List(d registry.Descriptor) ([]file.StagedFile, error)
	Read(path string) ([]byte, error)
}

type Manifest struct {
	CollectionID string       `json:"collection_id"`
	ExportedAt   string       `json:"exported_at"`
	Files        []FileDigest `json:"files"`
}

type FileDigest struct {
	Name           string  `json:"name"`
	Dataset        string  `json:"dataset"`
	FetchTimestamp string  `json:"fetch_timestamp"`
	TargetDate     *string `json:"target_date"`
	RecordCount    int     `json:"record_count"`
	MD5Checksum    string  `json:"md5_checksum"`
}

// Exporter copies staged snapshots into a bundle for hand-off to consumers
// that do not read the staging tree directly.
type Exporter struct {
	registry descriptorSource
	staged   stagedSource
	clock    func() time.Time
}

func NewExporter(registry descriptorSource, staged stagedSource, clock func() time.Time) *Exporter {
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{registry: registry, staged: staged, clock: clock}
}

// Export writes every staged snapshot of datasets, then the manifest, to bw.
// Closing bw is left to the caller.
func (e *Exporter) Export(bw bundleWriter, datasets []string) (Manifest, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Manifest{}, errors.Wrap(err, ManifestFailureMessage)
	}
	manifest := Manifest{
		CollectionID: id.String(),
		ExportedAt:   e.clock().UTC().Format(time.RFC3339),
	}

	for _, name := range datasets {
		d, err := e.registry.Lookup(name)
		if err != nil {
			return Manifest{}, err
		}

		staged, err := e.staged.List(d)
		if err != nil {
			return Manifest{}, errors.Wrapf(err, ListStagedFailureFormat, d.Name)
		}
		for _, sf := range staged {
			if err := e.addSnapshot(bw, d, sf, &manifest); err != nil {
				return Manifest{}, err
			}
		}
	}

	if len(manifest.Files) == 0 {
		return Manifest{}, errors.New(NothingToExportMessage)
	}

	manifestContents, err := json.Marshal(manifest)
	if err != nil {
		return Manifest{}, errors.Wrap(err, ManifestFailureMessage)
	}
	if err := bw.AddFile(manifestContents, ManifestFileName); err != nil {
		return Manifest{}, errors.Wrap(err, DataWriteFailureMessage)
	}
	return manifest, nil
}

func (e *Exporter) addSnapshot(bw bundleWriter, d registry.Descriptor, sf file.StagedFile, manifest *Manifest) error {
	contents, err := e.staged.Read(sf.Path)
	if err != nil {
		return errors.Wrap(err, ContentReadingFailureMessage)
	}

	var staged struct {
		Metadata provenance.Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(contents, &staged); err != nil {
		return errors.Wrap(err, ContentReadingFailureMessage)
	}

	name := path.Join(d.Directory, sf.Name)
	if err := bw.AddFile(contents, name); err != nil {
		return errors.Wrap(err, DataWriteFailureMessage)
	}

	md5Sum := md5.Sum(contents)
	manifest.Files = append(manifest.Files, FileDigest{
		Name:           name,
		Dataset:        d.Name,
		FetchTimestamp: staged.Metadata.FetchTimestamp,
		TargetDate:     staged.Metadata.TargetDate,
		RecordCount:    staged.Metadata.RecordCount,
		MD5Checksum:    base64.StdEncoding.EncodeToString(md5Sum[:]),
	})
	return nil
}
