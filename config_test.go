package questlog

import (
	"errors"
	"testing"

	"github.com/youssefsiam38/questlog/compress"
	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Config{Store: storage.NewMemoryStore(), Model: &model.Mock{}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing store", func(c *Config) { c.Store = nil }, true},
		{"missing model", func(c *Config) { c.Model = nil }, true},
		{"missing model with compression disabled", func(c *Config) {
			c.Model = nil
			c.DisableCompression = true
		}, false},
		{"negative keep recent", func(c *Config) { c.KeepRecent = -1 }, true},
		{"trigger ratio above one", func(c *Config) { c.TriggerRatio = 1.5 }, true},
		{"negative workers", func(c *Config) { c.Compression.Workers = -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) && !errors.Is(err, compress.ErrInvalidConfig) {
				t.Errorf("error %v does not wrap an invalid-config sentinel", err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	c := Config{Store: storage.NewMemoryStore(), Model: &model.Mock{}}
	c.ApplyDefaults()

	if c.KeepRecent != DefaultKeepRecent {
		t.Errorf("KeepRecent = %d, want %d", c.KeepRecent, DefaultKeepRecent)
	}
	if c.TriggerRatio != DefaultTriggerRatio {
		t.Errorf("TriggerRatio = %v, want %v", c.TriggerRatio, DefaultTriggerRatio)
	}
	if c.MaxContextChars != DefaultMaxContextChars {
		t.Errorf("MaxContextChars = %d, want %d", c.MaxContextChars, DefaultMaxContextChars)
	}
	if c.Compression.Workers != compress.DefaultWorkers {
		t.Errorf("Compression.Workers = %d, want %d", c.Compression.Workers, compress.DefaultWorkers)
	}
	if c.Logger == nil {
		t.Error("Logger not defaulted")
	}
}
