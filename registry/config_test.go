package registry_test

import (
	"io/ioutil"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	. "github.com/geolab/lake-stager/registry"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("LoadConfig", func() {
		It("reads datasets from a yaml file", func() {
			path := filepath.Join(dir, "datasets.yaml")
			Expect(ioutil.WriteFile(path, []byte(`
staging_root: /lake/raw
datasets:
  Clusters:
    protocol: poll_then_download
    base_url: https://api.example.com/datasets
    dataset_id: d_123
    file_prefix: dengue_clusters
    auth:
      api_key: secret
`), 0644)).To(Succeed())

			cfg, err := LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.StagingRoot).To(Equal("/lake/raw"))
			Expect(cfg.TimeoutSeconds).To(Equal(DefaultTimeoutSeconds))
			Expect(cfg.Datasets).To(HaveKey("clusters"))
			Expect(cfg.Datasets["clusters"].DatasetID).To(Equal("d_123"))
			Expect(cfg.Datasets["clusters"].Auth.APIKey).To(Equal("secret"))
		})

		It("reads datasets from a json file", func() {
			path := filepath.Join(dir, "datasets.json")
			Expect(ioutil.WriteFile(path, []byte(`{
  "timeout_seconds": 5,
  "datasets": {"rainfall": {"protocol": "direct_get", "endpoint": "https://api.example.com/rainfall", "date_param": "date"}}
}`), 0644)).To(Succeed())

			cfg, err := LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.TimeoutSeconds).To(Equal(5))
			Expect(cfg.StagingRoot).To(Equal(DefaultStagingRoot))
			Expect(cfg.Datasets["rainfall"].DateParam).To(Equal("date"))
		})

		It("errors when the file cannot be read", func() {
			missing := filepath.Join(dir, "nope.yaml")
			_, err := LoadConfig(missing)
			Expect(err).To(MatchError(ContainSubstring("Failed reading configuration file " + missing)))
		})
	})

	Describe("FromViper", func() {
		It("lets explicitly set values win over the file", func() {
			path := filepath.Join(dir, "datasets.yaml")
			Expect(ioutil.WriteFile(path, []byte("staging_root: from-file\n"), 0644)).To(Succeed())

			v := viper.New()
			v.SetConfigFile(path)
			Expect(v.ReadInConfig()).To(Succeed())
			v.Set("staging_root", "from-flag")

			cfg, err := FromViper(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.StagingRoot).To(Equal("from-flag"))
		})
	})
})
