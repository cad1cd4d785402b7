package main

import (
	"testing"

	"github.com/braillekit/braillex/internal/config"
)

// TestFlagDefaults verifies the flag set the daemon documents: everything
// defaults to deferring, so the config file and compiled-in values win
// unless a flag is given explicitly.
func TestFlagDefaults(t *testing.T) {
	if *devMode != false {
		t.Errorf("dev default = %v, want false", *devMode)
	}
	for name, f := range map[string]*string{"listen": listen, "port": port, "db": dbPath, "config": configPath} {
		if *f != "" {
			t.Errorf("%s default = %q, want empty (defer to config)", name, *f)
		}
	}
}

func TestOverrideFromFlags(t *testing.T) {
	filePort := "serial:/dev/ttyUSB3"
	fileListen := "0.0.0.0:9000"

	tests := []struct {
		name       string
		cfg        *config.Config
		set        map[string]bool
		flagPort   string
		wantPort   string
		wantListen string
	}{
		{
			name:       "nothing set keeps defaults",
			cfg:        config.Empty(),
			set:        map[string]bool{},
			wantPort:   "auto",
			wantListen: "localhost:8980",
		},
		{
			name:       "file values survive unset flags",
			cfg:        &config.Config{Port: &filePort, Listen: &fileListen},
			set:        map[string]bool{},
			wantPort:   "serial:/dev/ttyUSB3",
			wantListen: "0.0.0.0:9000",
		},
		{
			name:       "set flag overrides file",
			cfg:        &config.Config{Port: &filePort, Listen: &fileListen},
			set:        map[string]bool{"port": true},
			flagPort:   "hid:/dev/hidraw2",
			wantPort:   "hid:/dev/hidraw2",
			wantListen: "0.0.0.0:9000",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := *port
			defer func() { *port = old }()
			*port = tc.flagPort

			got := overrideFromFlags(tc.cfg, tc.set)
			if got.GetPort() != tc.wantPort {
				t.Errorf("port = %q, want %q", got.GetPort(), tc.wantPort)
			}
			if got.GetListen() != tc.wantListen {
				t.Errorf("listen = %q, want %q", got.GetListen(), tc.wantListen)
			}
		})
	}
}
