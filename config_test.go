package meshparts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/meshparts/meshrt/prompt"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, prompt.ModeHeuristic, cfg.Segmenter.Mode)
	assert.Equal(t, 10*time.Second, cfg.Segmenter.Prompt().Timeout)
	assert.Equal(t, "s", cfg.Gizmo.ToggleKey)
}

func TestParseConfigOverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[log]
debug = true

[classifier]
wheel_verticality_min = 0.7

[subdivision]
z_bands = 4

[segmenter]
mode = "remote"
endpoint = "http://localhost:9000/segment"
timeout = "2500ms"
`))
	require.NoError(t, err)
	assert.True(t, cfg.Log.Debug)
	assert.InDelta(t, 0.7, cfg.Classifier.WheelVerticalityMin, 1e-6)
	assert.InDelta(t, 1.2, cfg.Classifier.WheelLateralMax, 1e-6)
	assert.Equal(t, 4, cfg.Subdivision.ZBands)
	assert.Equal(t, 2, cfg.Subdivision.YBands)

	p := cfg.Segmenter.Prompt()
	assert.Equal(t, prompt.ModeRemote, p.Mode)
	assert.Equal(t, 2500*time.Millisecond, p.Timeout)
	assert.InDelta(t, 0.5, p.MaskThreshold, 1e-6)
}

func TestParseConfigRejects(t *testing.T) {
	cases := map[string]string{
		"remote without endpoint": "[segmenter]\nmode = \"remote\"",
		"unknown mode":            "[segmenter]\nmode = \"psychic\"",
		"bad duration":            "[segmenter]\ntimeout = \"soon\"",
		"inverted lateral":        "[classifier]\nwheel_lateral_min = 2.0",
		"bad toggle key":          "[gizmo]\ntoggle_key = \"f13\"",
		"lower fraction":          "[subdivision]\nlower_fraction = 1.5",
		"not toml":                "[log",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := ParseConfig([]byte("[gizmo]\nmin_scale = 0.0"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("[gizmo]\ntoggle_key = \"escape\""))
	assert.ErrorContains(t, err, "cannot be escape")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshparts.toml")
	require.NoError(t, os.WriteFile(path, []byte("[selection]\nmin_box_size = 8.0\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 8, cfg.Selection.MinBoxSize, 1e-6)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchConfigReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshparts.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\ndebug = false\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Config
	err := WatchConfig(ctx, path, NewNopLogger(), func(c Config) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	require.NoError(t, err)

	// unrelated files and invalid contents are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("[segmenter]\nmode = \"nope\"\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("[log]\ndebug = true\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Log.Debug
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "no", "such.toml"), NewNopLogger(), func(Config) {})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("S")
	require.NoError(t, err)
	assert.Equal(t, KeyS, k)
	k, err = ParseKey("esc")
	require.NoError(t, err)
	assert.Equal(t, KeyEscape, k)
	_, err = ParseKey("")
	assert.Error(t, err)
}
