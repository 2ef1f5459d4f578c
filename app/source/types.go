package source

import "time"

// Config is one monitored-source seed configuration, loaded from a YAML
// file in the sources directory. The file name (without extension) becomes
// the config name.
type Config struct {
	Name     string   `yaml:"-"`
	Source   Info     `yaml:"source"`
	Settings Settings `yaml:"settings"`
}

type Info struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Address string `yaml:"address"`
}

type Settings struct {
	Enabled            bool `yaml:"enabled"`
	FetchInterval      int  `yaml:"fetch_interval"` // seconds
	Timeout            int  `yaml:"timeout"`        // seconds
	MaxItems           int  `yaml:"max_items"`
	ExtractTranscripts bool `yaml:"extract_transcripts"`
}

func (s *Settings) GetFetchInterval() time.Duration {
	return time.Duration(s.FetchInterval) * time.Second
}

func (s *Settings) GetTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
