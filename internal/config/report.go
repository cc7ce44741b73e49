package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical report defaults file.
const DefaultConfigPath = "config/report.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// ReportConfig describes one variability report. Nil fields fall back to the
// defaults returned by the Get* methods, so partial configs are safe.
type ReportConfig struct {
	// Scenario description
	CatalogName       *string  `json:"catalog_name,omitempty" yaml:"catalog_name,omitempty"`
	ScenarioName      *string  `json:"scenario_name,omitempty" yaml:"scenario_name,omitempty"`
	ScenarioShortName *string  `json:"scenario_short_name,omitempty" yaml:"scenario_short_name,omitempty"`
	MatchCriteria     []string `json:"match_criteria,omitempty" yaml:"match_criteria,omitempty"`
	MethodLines       []string `json:"method_lines,omitempty" yaml:"method_lines,omitempty"`

	// What to compute
	Periods             []float64 `json:"periods,omitempty" yaml:"periods,omitempty"`
	HighlightMagnitudes []float64 `json:"highlight_magnitudes,omitempty" yaml:"highlight_magnitudes,omitempty"`
	HighlightDistances  []float64 `json:"highlight_distances,omitempty" yaml:"highlight_distances,omitempty"`
	DistanceJB          *bool     `json:"distance_jb,omitempty" yaml:"distance_jb,omitempty"`

	// GMPE comparison
	GMPETables  []string `json:"gmpe_tables,omitempty" yaml:"gmpe_tables,omitempty"`
	DisableGMPE *bool    `json:"disable_gmpe,omitempty" yaml:"disable_gmpe,omitempty"`

	// Output
	Workers  *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	HTMLPage *bool `json:"html_page,omitempty" yaml:"html_page,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyReportConfig returns a ReportConfig with all fields unset.
func EmptyReportConfig() *ReportConfig {
	return &ReportConfig{}
}

// DefaultReportConfig returns a config with every field set to its default.
func DefaultReportConfig() *ReportConfig {
	c := EmptyReportConfig()
	return &ReportConfig{
		CatalogName:       ptrString(c.GetCatalogName()),
		ScenarioName:      ptrString(c.GetScenarioName()),
		ScenarioShortName: ptrString(c.GetScenarioShortName()),
		Periods:           c.GetPeriods(),
		DistanceJB:        ptrBool(c.GetDistanceJB()),
		DisableGMPE:       ptrBool(c.GetDisableGMPE()),
		Workers:           ptrInt(c.GetWorkers()),
		HTMLPage:          ptrBool(c.GetHTMLPage()),
	}
}

// LoadReportConfig loads a ReportConfig from a .json, .yaml or .yml file.
// The file must be under 1MB and the result must validate.
func LoadReportConfig(path string) (*ReportConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReportConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *ReportConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadReportConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// JSON renders the config for storage alongside a report run.
func (c *ReportConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Validate checks that the configuration values are valid.
func (c *ReportConfig) Validate() error {
	if err := checkPositiveUnique("periods", c.Periods); err != nil {
		return err
	}
	if err := checkPositiveUnique("highlight_magnitudes", c.HighlightMagnitudes); err != nil {
		return err
	}
	for _, d := range c.HighlightDistances {
		if d < 0 {
			return fmt.Errorf("highlight_distances must be non-negative, got %v", d)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.ScenarioShortName != nil && *c.ScenarioShortName == "" {
		return fmt.Errorf("scenario_short_name must not be empty")
	}
	for _, p := range c.GMPETables {
		if filepath.Ext(p) != ".json" {
			return fmt.Errorf("gmpe table %q must be a .json file", p)
		}
	}
	return nil
}

func checkPositiveUnique(name string, vals []float64) error {
	seen := make(map[float64]bool, len(vals))
	for _, v := range vals {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
		if seen[v] {
			return fmt.Errorf("%s has duplicate value %v", name, v)
		}
		seen[v] = true
	}
	return nil
}

// GetCatalogName returns the catalog_name value or the default.
func (c *ReportConfig) GetCatalogName() string {
	if c.CatalogName == nil {
		return "Simulated Catalog"
	}
	return *c.CatalogName
}

// GetScenarioName returns the scenario_name value or the default.
func (c *ReportConfig) GetScenarioName() string {
	if c.ScenarioName == nil {
		return "all ruptures in the catalog"
	}
	return *c.ScenarioName
}

// GetScenarioShortName returns the scenario_short_name value or the default.
func (c *ReportConfig) GetScenarioShortName() string {
	if c.ScenarioShortName == nil {
		return "All Ruptures"
	}
	return *c.ScenarioShortName
}

// GetPeriods returns the sorted periods, defaulting to 3, 5, 7.5 and 10s.
func (c *ReportConfig) GetPeriods() []float64 {
	if len(c.Periods) == 0 {
		return []float64{3, 5, 7.5, 10}
	}
	out := append([]float64(nil), c.Periods...)
	sort.Float64s(out)
	return out
}

// GetDistanceJB returns the distance_jb value or the default.
func (c *ReportConfig) GetDistanceJB() bool {
	if c.DistanceJB == nil {
		return true
	}
	return *c.DistanceJB
}

// GetDisableGMPE returns the disable_gmpe value or the default.
func (c *ReportConfig) GetDisableGMPE() bool {
	if c.DisableGMPE == nil {
		return false
	}
	return *c.DisableGMPE
}

// GetWorkers returns the workers value or the default.
func (c *ReportConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetHTMLPage returns the html_page value or the default.
func (c *ReportConfig) GetHTMLPage() bool {
	if c.HTMLPage == nil {
		return true
	}
	return *c.HTMLPage
}
