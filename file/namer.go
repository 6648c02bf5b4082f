package file

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/geolab/lake-stager/registry"
)

const (
	LatestSuffix    = "_latest"
	FileExtension   = ".json"
	LaggedDirectory = "lagged"
)

// DateSuffix renders the date component of a staged file name. Everything but
// ASCII letters and digits is dropped so "2024-08-09" becomes "_20240809".
func DateSuffix(targetDate string) string {
	if targetDate == "" {
		return LatestSuffix
	}
	compact := strings.Map(func(r rune) rune {
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return r
		}
		return -1
	}, targetDate)
	return "_" + compact
}

func FileName(d registry.Descriptor, targetDate, timestamp string) string {
	return fmt.Sprintf("%s%s_%s%s", d.FilePrefix, DateSuffix(targetDate), timestamp, FileExtension)
}

func OutputPath(root string, d registry.Descriptor, targetDate, timestamp string) string {
	return filepath.Join(root, d.Directory, FileName(d, targetDate, timestamp))
}

// LaggedPath names a lag summary: <root>/<directory>/lagged/<prefix>_lag_<n>months_<timestamp>.json.
func LaggedPath(root string, d registry.Descriptor, lagMonths int, timestamp string) string {
	name := fmt.Sprintf("%s_lag_%dmonths_%s%s", d.FilePrefix, lagMonths, timestamp, FileExtension)
	return filepath.Join(root, d.Directory, LaggedDirectory, name)
}
