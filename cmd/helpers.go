package cmd

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom/internal/dashboard"
	"github.com/KaramelBytes/dashloom/internal/utils"
)

// sourceFor picks the file for a dataset: an explicit argument wins, then the
// configured source, then the definition's default file in the data directory.
// An empty result selects the built-in sample.
func sourceFor(def *dashboard.Definition, args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	if p, ok := cfg.SourcePath(def.Name); ok {
		return p
	}
	if def.Source == "" {
		return ""
	}
	p := cfg.Resolve(def.Source)
	if def.Sample != nil {
		if _, err := os.Stat(p); err != nil {
			return ""
		}
	}
	return p
}

func dashboardOptions() dashboard.Options {
	opts := dashboard.DefaultOptions()
	opts.AssetsDir = cfg.AssetsDir
	opts.TopN = cfg.TopN
	opts.HistogramBins = cfg.HistogramBins
	opts.MaxRows = cfg.MaxRows
	opts.Logger = log
	return opts
}

// openDataset resolves and loads args[0] with an optional file in args[1].
func openDataset(args []string) (*dashboard.Dataset, error) {
	def, err := dashboard.Lookup(args[0])
	if err != nil {
		return nil, err
	}
	ds, err := dashboard.Open(def, sourceFor(def, args[1:]), dashboardOptions())
	if err != nil {
		return nil, err
	}
	if n := len(ds.Violations()); n > 0 {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %d record(s) in %s could not be enriched (first: %v)\n", n, ds.Source(), ds.Violations()[0])
	}
	return ds, nil
}

// encode renders v as json or yaml.
func encode(v interface{}, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return utils.PrettyJSON(v)
	case "yaml", "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
