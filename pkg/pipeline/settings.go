package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults for the external indexer's chunking configuration.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 100
)

// IndexerSettings is the configuration file handed to the external
// indexer process. It is generated per run, scoped to one document's
// working directory.
type IndexerSettings struct {
	LLM struct {
		Model   string `yaml:"model"`
		APIBase string `yaml:"api_base,omitempty"`
	} `yaml:"llm"`
	Chunks struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunks"`
	Input struct {
		BaseDir  string `yaml:"base_dir"`
		FileType string `yaml:"file_type"`
	} `yaml:"input"`
	Storage struct {
		BaseDir string `yaml:"base_dir"`
	} `yaml:"storage"`
	Cache struct {
		BaseDir string `yaml:"base_dir"`
	} `yaml:"cache"`
	Reporting struct {
		BaseDir string `yaml:"base_dir"`
	} `yaml:"reporting"`
}

// NewIndexerSettingsParams configures settings generation for one run.
type NewIndexerSettingsParams struct {
	Model        string
	APIBase      string
	ChunkSize    int
	ChunkOverlap int
}

// NewIndexerSettings builds the per-run settings with defaults applied.
// Directory paths are relative to the document working directory so the
// indexer never writes outside its own run.
func NewIndexerSettings(params NewIndexerSettingsParams) IndexerSettings {
	settings := IndexerSettings{}
	settings.LLM.Model = params.Model
	settings.LLM.APIBase = params.APIBase

	settings.Chunks.Size = params.ChunkSize
	if settings.Chunks.Size <= 0 {
		settings.Chunks.Size = DefaultChunkSize
	}
	settings.Chunks.Overlap = params.ChunkOverlap
	if settings.Chunks.Overlap <= 0 {
		settings.Chunks.Overlap = DefaultChunkOverlap
	}

	settings.Input.BaseDir = "input"
	settings.Input.FileType = "text"
	settings.Storage.BaseDir = filepath.Join("output", "artifacts")
	settings.Cache.BaseDir = "cache"
	settings.Reporting.BaseDir = "logs"

	return settings
}

// Write marshals the settings to YAML at the given path.
func (s IndexerSettings) Write(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode indexer settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write indexer settings: %w", err)
	}
	return nil
}
