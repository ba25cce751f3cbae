package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	App      AppConfig      `json:"app"`
	Recorder RecorderConfig `json:"recorder"`
	Browser  BrowserConfig  `json:"browser"`
	Index    IndexConfig    `json:"index"`
}

type AppConfig struct {
	Name string `json:"name"`
}

type RecorderConfig struct {
	ScreenshotDir string `json:"screenshot_dir"`
	DirPrefix     string `json:"dir_prefix,omitempty"`
	SavePlans     bool   `json:"save_plans"`
	SavePageText  bool   `json:"save_page_text"`
}

type BrowserConfig struct {
	Headless       bool `json:"headless"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

type IndexConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "snaptrail"},
		Recorder: RecorderConfig{
			ScreenshotDir: "screenshots",
			SavePlans:     true,
			SavePageText:  true,
		},
		Browser: BrowserConfig{
			Headless:       true,
			TimeoutSeconds: 60,
		},
		Index: IndexConfig{
			Enabled: true,
			Path:    "snaptrail.db",
		},
	}
}

func LoadConfig(path string) *Config {
	file, err := os.Open(path)
	if err != nil {
		log.Printf("config file %s not found, using defaults", path)
		return Default()
	}
	defer file.Close()

	cfg := Default()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	return cfg
}
