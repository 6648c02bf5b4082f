package integration

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/geolab/lake-stager/cmd"
	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/lag"
)

var _ = Describe("Lag summary", func() {
	var (
		tempDir       string
		stagingRoot   string
		processedRoot string
		envVars       map[string]string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = ioutil.TempDir("", "")
		Expect(err).NotTo(HaveOccurred())
		stagingRoot = filepath.Join(tempDir, "raw")
		processedRoot = filepath.Join(tempDir, "processed")

		envVars = map[string]string{
			cmd.ConfigKey:        writeConfig(tempDir, fmt.Sprintf(configTemplate, "http://127.0.0.1:1")),
			cmd.StagingRootKey:   stagingRoot,
			cmd.ProcessedRootKey: processedRoot,
		}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tempDir)).To(Succeed())
	})

	It("writes the data staged for the lagged date to the processed root", func() {
		lagDate, err := lag.Date(2, time.Now())
		Expect(err).NotTo(HaveOccurred())

		weatherDir := filepath.Join(stagingRoot, "weather")
		Expect(os.MkdirAll(weatherDir, 0755)).To(Succeed())
		staged := fmt.Sprintf(`{"metadata":{"fetch_timestamp":"20240809T101500Z","target_date":%q,"api_endpoint":"https://x","record_count":2},"data":[{"value":1.5},{"value":2}]}`, lagDate)
		name := "rainfall" + file.DateSuffix(lagDate) + "_20240809T101500Z.json"
		Expect(ioutil.WriteFile(filepath.Join(weatherDir, name), []byte(staged), 0644)).To(Succeed())

		session := runCommand(buildCommand(envVars, "lag-summary", "rainfall"), 0)
		Expect(session.Out).To(gbytes.Say(`Wrote output to .*rainfall_lag_2months_\d{8}T\d{6}Z\.json`))
		Expect(session.Out).To(gbytes.Say("Success!"))

		summaries, err := filepath.Glob(filepath.Join(processedRoot, "weather", "lagged", "rainfall_lag_2months_*.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(HaveLen(1))

		contents, err := ioutil.ReadFile(summaries[0])
		Expect(err).NotTo(HaveOccurred())
		var summary map[string]interface{}
		Expect(json.Unmarshal(contents, &summary)).To(Succeed())
		Expect(summary).To(HaveKeyWithValue("lag_months", BeNumerically("==", 2)))
		Expect(summary).To(HaveKeyWithValue("record_count", BeNumerically("==", 2)))
		Expect(summary).To(HaveKeyWithValue("target_date", lagDate))
		Expect(summary["sources"]).To(ConsistOf(name))
	})

	It("fails when nothing was staged for the lagged date", func() {
		session := runCommand(buildCommand(envVars, "lag-summary", "--all", "--months", "1"), 1)
		Expect(session.Err).To(gbytes.Say("No staged snapshots of clusters for lag date"))
		Expect(session.Out).NotTo(gbytes.Say("Success!"))

		_, err := os.Stat(processedRoot)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
