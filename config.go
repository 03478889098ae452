package meshparts

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gekko3d/meshparts/meshrt/classify"
	"github.com/gekko3d/meshparts/meshrt/editor"
	"github.com/gekko3d/meshparts/meshrt/prompt"
	"github.com/gekko3d/meshparts/meshrt/topology"
)

var ErrInvalidConfig = errors.New("invalid config")

// Duration reads TOML strings such as "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type LogConfig struct {
	Prefix string `toml:"prefix"`
	Debug  bool   `toml:"debug"`
}

type SegmenterConfig struct {
	Mode          string   `toml:"mode"`
	Endpoint      string   `toml:"endpoint"`
	Timeout       Duration `toml:"timeout"`
	MaskThreshold float32  `toml:"mask_threshold"`
	MaxFrameSize  int      `toml:"max_frame_size"`
}

func (c SegmenterConfig) Prompt() prompt.Config {
	return prompt.Config{
		Mode:          c.Mode,
		Endpoint:      c.Endpoint,
		Timeout:       c.Timeout.Duration,
		MaskThreshold: c.MaskThreshold,
		MaxFrameSize:  c.MaxFrameSize,
	}
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
	// AllowedOrigins lists websocket origins; empty allows any.
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Config struct {
	Log         LogConfig                  `toml:"log"`
	Classifier  classify.Thresholds        `toml:"classifier"`
	Subdivision topology.SubdivisionConfig `toml:"subdivision"`
	Segmenter   SegmenterConfig            `toml:"segmenter"`
	Selection   editor.SelectionConfig     `toml:"selection"`
	Gizmo       editor.GizmoConfig         `toml:"gizmo"`
	Server      ServerConfig               `toml:"server"`
}

func DefaultConfig() Config {
	p := prompt.DefaultConfig()
	return Config{
		Log:         LogConfig{Prefix: "meshparts"},
		Classifier:  classify.DefaultThresholds(),
		Subdivision: topology.DefaultSubdivisionConfig(),
		Segmenter: SegmenterConfig{
			Mode:          p.Mode,
			Timeout:       Duration{p.Timeout},
			MaskThreshold: p.MaskThreshold,
			MaxFrameSize:  p.MaxFrameSize,
		},
		Selection: editor.DefaultSelectionConfig(),
		Gizmo:     editor.DefaultGizmoConfig(),
		Server:    ServerConfig{Addr: ":8740", Path: "/ws"},
	}
}

// ParseConfig overlays TOML onto the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	t := c.Classifier
	check(t.WheelLateralMin <= t.WheelLateralMax, "classifier.wheel_lateral_min %v > wheel_lateral_max %v", t.WheelLateralMin, t.WheelLateralMax)
	check(t.WheelGroupSize > 0, "classifier.wheel_group_size must be positive")
	check(t.WheelCountTolerance >= 0, "classifier.wheel_count_tolerance must not be negative")
	check(t.PairCountTolerance >= 0, "classifier.pair_count_tolerance must not be negative")
	check(t.MirrorTolerance >= 0, "classifier.mirror_tolerance must not be negative")
	check(t.SideOffset >= 0 && t.SideOffset <= 1, "classifier.side_offset %v outside [0,1]", t.SideOffset)

	s := c.Subdivision
	check(s.YBands >= 1 && s.ZBands >= 1, "subdivision bands must be at least 1")
	check(s.LowerFrac >= 0 && s.LowerFrac < 1, "subdivision.lower_fraction %v outside [0,1)", s.LowerFrac)
	check(s.MinTriangles >= 0, "subdivision.min_triangles must not be negative")

	g := c.Segmenter
	switch g.Mode {
	case prompt.ModeHeuristic:
	case prompt.ModeRemote:
		check(g.Endpoint != "", "segmenter.endpoint is required in remote mode")
	default:
		check(false, "segmenter.mode %q is not heuristic or remote", g.Mode)
	}
	check(g.MaskThreshold > 0 && g.MaskThreshold < 1, "segmenter.mask_threshold %v outside (0,1)", g.MaskThreshold)
	check(g.Timeout.Duration > 0, "segmenter.timeout must be positive")

	check(c.Server.Addr != "", "server.addr is required")
	check(strings.HasPrefix(c.Server.Path, "/"), "server.path %q must start with /", c.Server.Path)

	check(c.Selection.MinBoxSize >= 0, "selection.min_box_size must not be negative")
	check(c.Gizmo.Sensitivity > 0, "gizmo.sensitivity must be positive")
	check(c.Gizmo.MinScale > 0, "gizmo.min_scale must be positive")
	toggle, keyErr := ParseKey(c.Gizmo.ToggleKey)
	check(keyErr == nil, "gizmo.toggle_key %q: %v", c.Gizmo.ToggleKey, keyErr)
	check(keyErr != nil || toggle != KeyEscape, "gizmo.toggle_key cannot be escape")

	return errors.Join(errs...)
}
