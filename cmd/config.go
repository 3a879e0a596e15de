package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/dashloom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Dashloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		for _, k := range cfgpkg.Keys {
			fmt.Fprintf(out, "%s: %s\n", k, configValue(cfg, k))
		}
		printSources(out, cfg.Sources)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk.

Keys: ` + strings.Join(cfgpkg.Keys, ", ") + `
Dataset files are set with sources.<dataset>, for example:
  dashloom config set sources.odi /data/ODI_Match_info.csv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := strings.ToLower(strings.TrimSpace(args[0])), args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func configValue(c *cfgpkg.Global, key string) string {
	switch key {
	case "data_dir":
		return c.DataDir
	case "assets_dir":
		return c.AssetsDir
	case "listen_addr":
		return c.ListenAddr
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	case "top_n":
		return strconv.Itoa(c.TopN)
	case "histogram_bins":
		return strconv.Itoa(c.HistogramBins)
	case "max_rows":
		return strconv.Itoa(c.MaxRows)
	}
	return ""
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	if name, ok := sourceKey(key); ok {
		if c.Sources == nil {
			c.Sources = map[string]string{}
		}
		if strings.TrimSpace(val) == "" {
			delete(c.Sources, name)
			return nil
		}
		c.Sources[name] = val
		return nil
	}
	atoi := func() (int, error) {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	switch key {
	case "data_dir":
		c.DataDir = val
	case "assets_dir":
		c.AssetsDir = val
	case "listen_addr":
		c.ListenAddr = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	case "top_n":
		i, err := atoi()
		if err != nil {
			return err
		}
		c.TopN = i
	case "histogram_bins":
		i, err := atoi()
		if err != nil {
			return err
		}
		c.HistogramBins = i
	case "max_rows":
		i, err := atoi()
		if err != nil {
			return err
		}
		c.MaxRows = i
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// sourceKey accepts sources.<name> and source.<name>.
func sourceKey(key string) (string, bool) {
	for _, p := range []string{"sources.", "source."} {
		if name := strings.TrimPrefix(key, p); name != key && name != "" {
			return name, true
		}
	}
	return "", false
}

func printSources(w io.Writer, sources map[string]string) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "sources: (none)")
		return
	}
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "sources:")
	for _, n := range names {
		fmt.Fprintf(w, "  %s: %s\n", n, sources[n])
	}
}
