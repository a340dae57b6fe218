package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type fileConfig struct {
	Source        string `toml:"source"`
	EventsFile    string `toml:"events_file"`
	SnapshotDB    string `toml:"snapshot_db"`
	TZ            string `toml:"tz"`
	Output        string `toml:"output"`
	Fields        string `toml:"fields"`
	Profile       string `toml:"profile"`
	WorkHours     string `toml:"work_hours"`
	Interval      string `toml:"interval"`
	MaxSlots      int    `toml:"max_slots"`
	MaxPerDay     int    `toml:"max_per_day"`
	DisplayFormat string `toml:"display_format"`

	IncludeWeekends *bool `toml:"include_weekends"`

	Profiles map[string]fileConfig `toml:"profiles"`
}

func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults

	profile := firstNonEmpty(env("AVAIL_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	projectPath := ".avail.toml"
	configPath := firstNonEmpty(env("AVAIL_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	if cfg, ok := readConfigFile(userPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if cfg, ok := readConfigFile(projectPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if configPath != "" && configPath != userPath && configPath != projectPath {
		if cfg, ok := readConfigFile(configPath); ok {
			applyFileConfig(&resolved, cfg, profile)
		}
	}

	applyEnv(&resolved)
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	return &resolved, nil
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.Source != "" {
		dst.Source = cfg.Source
	}
	if cfg.EventsFile != "" {
		dst.EventsFile = cfg.EventsFile
	}
	if cfg.SnapshotDB != "" {
		dst.SnapshotDB = cfg.SnapshotDB
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.WorkHours != "" {
		dst.WorkHours = cfg.WorkHours
	}
	if cfg.Interval != "" {
		if d, err := time.ParseDuration(cfg.Interval); err == nil && d > 0 {
			dst.Interval = d
		}
	}
	if cfg.MaxSlots > 0 {
		dst.MaxSlots = cfg.MaxSlots
	}
	if cfg.MaxPerDay > 0 {
		dst.MaxPerDay = cfg.MaxPerDay
	}
	if cfg.DisplayFormat != "" {
		dst.DisplayFormat = cfg.DisplayFormat
	}
	if cfg.IncludeWeekends != nil {
		dst.IncludeWeekends = *cfg.IncludeWeekends
	}
	if cfg.Output != "" {
		applyOutputMode(dst, cfg.Output)
	}
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.Source != "" {
		base.Source = overlay.Source
	}
	if overlay.EventsFile != "" {
		base.EventsFile = overlay.EventsFile
	}
	if overlay.SnapshotDB != "" {
		base.SnapshotDB = overlay.SnapshotDB
	}
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	if overlay.WorkHours != "" {
		base.WorkHours = overlay.WorkHours
	}
	if overlay.Interval != "" {
		base.Interval = overlay.Interval
	}
	if overlay.MaxSlots > 0 {
		base.MaxSlots = overlay.MaxSlots
	}
	if overlay.MaxPerDay > 0 {
		base.MaxPerDay = overlay.MaxPerDay
	}
	if overlay.DisplayFormat != "" {
		base.DisplayFormat = overlay.DisplayFormat
	}
	if overlay.IncludeWeekends != nil {
		base.IncludeWeekends = overlay.IncludeWeekends
	}
	return base
}

func applyEnv(dst *globalOptions) {
	if v := env("AVAIL_SOURCE"); v != "" {
		dst.Source = v
	}
	if v := env("AVAIL_EVENTS_FILE"); v != "" {
		dst.EventsFile = v
	}
	if v := env("AVAIL_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("AVAIL_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("AVAIL_WORK_HOURS"); v != "" {
		dst.WorkHours = v
	}
	if v := env("AVAIL_DISPLAY_FORMAT"); v != "" {
		dst.DisplayFormat = v
	}
	if v := env("AVAIL_OUTPUT"); v != "" {
		applyOutputMode(dst, v)
	}
	if v := env("AVAIL_INCLUDE_WEEKENDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			dst.IncludeWeekends = b
		}
	}
}

func applyOutputMode(dst *globalOptions, v string) {
	switch strings.ToLower(v) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "no-color", func() { dst.NoColor = fromFlags.NoColor })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "source", func() { dst.Source = fromFlags.Source })
	copyIfChanged(cmd, "events-file", func() { dst.EventsFile = fromFlags.EventsFile })
	copyIfChanged(cmd, "snapshot-id", func() { dst.SnapshotID = fromFlags.SnapshotID })
	copyIfChanged(cmd, "snapshot-db", func() { dst.SnapshotDB = fromFlags.SnapshotDB })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })
	copyIfChanged(cmd, "work-hours", func() { dst.WorkHours = fromFlags.WorkHours })
	copyIfChanged(cmd, "interval", func() { dst.Interval = fromFlags.Interval })
	copyIfChanged(cmd, "max-slots", func() { dst.MaxSlots = fromFlags.MaxSlots })
	copyIfChanged(cmd, "max-per-day", func() { dst.MaxPerDay = fromFlags.MaxPerDay })
	copyIfChanged(cmd, "include-weekends", func() { dst.IncludeWeekends = fromFlags.IncludeWeekends })
	copyIfChanged(cmd, "display-format", func() { dst.DisplayFormat = fromFlags.DisplayFormat })
	copyIfChanged(cmd, "no-cache", func() { dst.NoCache = fromFlags.NoCache })
	copyIfChanged(cmd, "cache-ttl", func() { dst.CacheTTL = fromFlags.CacheTTL })

	// If exactly one output mode flag is explicitly set, it overrides env/config output mode.
	modeSet := 0
	if flagValueChanged(cmd, "json") && fromFlags.JSON {
		modeSet++
	}
	if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
		modeSet++
	}
	if flagValueChanged(cmd, "plain") && fromFlags.Plain {
		modeSet++
	}
	if modeSet == 1 {
		if flagValueChanged(cmd, "json") && fromFlags.JSON {
			dst.JSON, dst.JSONL, dst.Plain = true, false, false
		}
		if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
			dst.JSON, dst.JSONL, dst.Plain = false, true, false
		}
		if flagValueChanged(cmd, "plain") && fromFlags.Plain {
			dst.JSON, dst.JSONL, dst.Plain = false, false, true
		}
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

func readConfigFile(path string) (fileConfig, bool) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, false
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, false
	}
	return cfg, true
}

func defaultUserConfigPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "avail", "config.toml")
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "avail", "config.toml")
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
