package camera

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate, got %v", errs)
	}

	cfg = HighResConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("high-res config should validate, got %v", errs)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty device", func(c *Config) { c.Device = "" }},
		{"tiny width", func(c *Config) { c.Width = 10 }},
		{"huge height", func(c *Config) { c.Height = 99999 }},
		{"zero framerate", func(c *Config) { c.Framerate = 0 }},
		{"quality over 100", func(c *Config) { c.Quality = 101 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if errs := cfg.Validate(); len(errs) == 0 {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestManagerSetConfig(t *testing.T) {
	m := NewManager()

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}

	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	if err := m.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.GetConfig(); got.Width != 1280 {
		t.Errorf("expected width 1280, got %d", got.Width)
	}
	if applied.Width != 1280 {
		t.Error("OnConfigChange should receive the new config")
	}
}

func TestManagerSetConfigRejectsInvalid(t *testing.T) {
	m := NewManager()

	cfg := DefaultConfig()
	cfg.Quality = 0
	if err := m.SetConfig(cfg); err == nil {
		t.Error("expected error for invalid config")
	}

	// Config must be unchanged after a rejected update.
	if got := m.GetConfig(); got.Quality != DefaultConfig().Quality {
		t.Errorf("config mutated by rejected update: %+v", got)
	}
}

func TestManagerUpdateConfig(t *testing.T) {
	m := NewManager()

	err := m.UpdateConfig(map[string]interface{}{
		"width":  float64(800), // JSON numbers decode as float64
		"height": float64(600),
		"device": "/dev/video2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := m.GetConfig()
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("expected 800x600, got %dx%d", got.Width, got.Height)
	}
	if got.Device != "/dev/video2" {
		t.Errorf("expected device /dev/video2, got %s", got.Device)
	}
}

func TestMockAcquireReleaseSymmetry(t *testing.T) {
	m := NewMock()

	for i := 0; i < 3; i++ {
		if err := m.Open(); err != nil {
			t.Fatal(err)
		}
		if err := m.Close(); err != nil {
			t.Fatal(err)
		}
		// Double close must be safe and not go negative.
		if err := m.Close(); err != nil {
			t.Fatal(err)
		}
	}

	if m.OpenHandles() != 0 {
		t.Errorf("expected 0 open handles, got %d", m.OpenHandles())
	}
	if m.Acquisitions() != m.Releases() {
		t.Errorf("acquire/release mismatch: %d vs %d", m.Acquisitions(), m.Releases())
	}
}
