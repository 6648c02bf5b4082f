package file_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	. "github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/payload"
	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

type failingRenameFs struct {
	afero.Fs
}

func (f failingRenameFs) Rename(oldname, newname string) error {
	return errors.New("rename is hard")
}

func envelopeFor(body, targetDate, timestamp string) provenance.Envelope {
	p, err := payload.Parse([]byte(body))
	Expect(err).NotTo(HaveOccurred())
	m := provenance.Build(timestamp, targetDate, "https://example.com/datasets/d_1/poll-download", p, provenance.Extra{
		DataURL: "https://x/y",
	})
	return provenance.NewEnvelope(m, p)
}

var _ = Describe("Writer", func() {
	var (
		fs         afero.Fs
		writer     *Writer
		descriptor registry.Descriptor
	)

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		writer = NewWriter(fs, "data/raw")
		descriptor = registry.Descriptor{Name: "clusters", Directory: "dengue", FilePrefix: "dengue_clusters"}
	})

	It("writes the envelope to the derived path", func() {
		path, err := writer.Stage(descriptor, envelopeFor(`{"features":[{"id":"f1"},{"id":"f2"}]}`, "", "20240809T101500Z"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join("data/raw", "dengue", "dengue_clusters_latest_20240809T101500Z.json")))

		contents, err := afero.ReadFile(fs, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(contents)).To(ContainSubstring("\n  \"metadata\": {\n    \"fetch_timestamp\": \"20240809T101500Z\""))

		var staged map[string]interface{}
		Expect(json.Unmarshal(contents, &staged)).To(Succeed())
		Expect(staged).To(HaveKey("data"))
		metadata := staged["metadata"].(map[string]interface{})
		Expect(metadata).To(HaveKeyWithValue("record_count", BeNumerically("==", 2)))
		Expect(metadata).To(HaveKeyWithValue("target_date", BeNil()))
		Expect(metadata).To(HaveKeyWithValue("data_url", "https://x/y"))
		Expect(metadata).NotTo(HaveKey("parameters"))
	})

	It("keeps the record count stable through a reload", func() {
		path, err := writer.Stage(descriptor, envelopeFor(`{"result":{"records":[{},{},{}]}}`, "2020", "20240809T101500Z"))
		Expect(err).NotTo(HaveOccurred())

		env, err := NewReader(fs, "data/raw").Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Metadata.RecordCount).To(Equal(3))
		Expect(env.Metadata.RecordCount).To(Equal(payload.Count(env.Data)))
		Expect(env.Metadata.Target()).To(Equal("2020"))
	})

	It("tolerates an existing directory", func() {
		Expect(fs.MkdirAll(filepath.Join("data/raw", "dengue"), 0755)).To(Succeed())

		_, err := writer.Stage(descriptor, envelopeFor(`[]`, "", "20240809T101500Z"))
		Expect(err).NotTo(HaveOccurred())
		_, err = writer.Stage(descriptor, envelopeFor(`[1]`, "", "20240809T101501Z"))
		Expect(err).NotTo(HaveOccurred())

		infos, err := afero.ReadDir(fs, filepath.Join("data/raw", "dengue"))
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(HaveLen(2))
	})

	It("replaces a file staged within the same second", func() {
		first, err := writer.Stage(descriptor, envelopeFor(`[1]`, "", "20240809T101500Z"))
		Expect(err).NotTo(HaveOccurred())
		second, err := writer.Stage(descriptor, envelopeFor(`[1,2]`, "", "20240809T101500Z"))
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))

		env, err := NewReader(fs, "data/raw").Load(second)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Metadata.RecordCount).To(Equal(2))
	})

	It("leaves nothing behind when the file cannot be moved into place", func() {
		writer = NewWriter(failingRenameFs{Fs: fs}, "data/raw")

		_, err := writer.Stage(descriptor, envelopeFor(`[]`, "", "20240809T101500Z"))
		Expect(err).To(MatchError(ContainSubstring("rename is hard")))
		Expect(err).To(MatchError(ContainSubstring("Failed moving staged file into place")))

		infos, err := afero.ReadDir(fs, filepath.Join("data/raw", "dengue"))
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(BeEmpty())
	})

	It("writes lag summaries under the lagged directory", func() {
		writer = NewWriter(fs, "data/processed")

		path, err := writer.WriteLagged(descriptor, 2, "20240809T101500Z", map[string]interface{}{"lag_months": 2, "data": []int{1}})
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join("data/processed", "dengue", "lagged", "dengue_clusters_lag_2months_20240809T101500Z.json")))

		contents, err := afero.ReadFile(fs, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(contents).To(MatchJSON(`{"lag_months":2,"data":[1]}`))
	})

	It("fails when the directory cannot be created", func() {
		writer = NewWriter(afero.NewReadOnlyFs(fs), "data/raw")

		_, err := writer.Stage(descriptor, envelopeFor(`[]`, "", "20240809T101500Z"))
		Expect(err).To(MatchError(ContainSubstring("Failed creating directory")))

		_, statErr := fs.Stat(filepath.Join("data/raw", "dengue"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
