package file_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	. "github.com/geolab/lake-stager/file"
)

var _ = Describe("BundleWriter", func() {
	var (
		fs      afero.Fs
		modTime time.Time
	)

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		modTime = time.Date(2024, time.August, 9, 10, 15, 0, 0, time.UTC)
		Expect(fs.MkdirAll("exports", 0755)).To(Succeed())
	})

	It("adds file contents to the bundle", func() {
		writer, err := NewBundleWriter(fs, "exports/bundle.tar.gz", modTime)
		Expect(err).NotTo(HaveOccurred())

		Expect(writer.AddFile([]byte("best-contents1"), "dengue/contents-name1.json")).To(Succeed())
		Expect(writer.AddFile([]byte("best-contents2"), "manifest.json")).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		Expect(readBundle(fs, "exports/bundle.tar.gz")).To(Equal(map[string]string{
			"dengue/contents-name1.json": "best-contents1",
			"manifest.json":              "best-contents2",
		}))
	})

	It("errors when the bundle cannot be created", func() {
		writer, err := NewBundleWriter(afero.NewReadOnlyFs(fs), "exports/bundle.tar.gz", modTime)
		Expect(err).To(MatchError(ContainSubstring("Could not create bundle exports/bundle.tar.gz")))
		Expect(writer).To(BeNil())
	})

	It("errors when adding files after Close", func() {
		writer, err := NewBundleWriter(fs, "exports/bundle.tar.gz", modTime)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		err = writer.AddFile([]byte{}, "some-file")
		Expect(err).To(MatchError(ContainSubstring("Could not write bundle entry some-file")))
	})
})
