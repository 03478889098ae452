// Command meshparts loads a scene, detects its parts and prints them as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	meshparts "github.com/gekko3d/meshparts"
	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/procedural"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		scenePath  = flag.String("scene", "", "scene JSON file; the demo car is used when empty")
		merge      = flag.Bool("merge", true, "pack the demo car into a single fragment")
		resolution = flag.Float64("resolution", procedural.DefaultCarOptions().Resolution, "demo car tessellation cell size")
		part       = flag.String("select", "", "part to scale")
		scale      = flag.Float64("scale", 1, "uniform scale applied to -select")
		exportPath = flag.String("export", "", "write baked geometry and parts to this file")
		debug      = flag.Bool("debug", false, "debug logging")
		stats      = flag.Bool("stats", false, "print timings to stderr")
	)
	flag.Parse()

	if err := run(*configPath, *scenePath, *merge, *resolution, *part, float32(*scale), *exportPath, *debug, *stats); err != nil {
		fmt.Fprintln(os.Stderr, "meshparts:", err)
		os.Exit(1)
	}
}

func run(configPath, scenePath string, merge bool, resolution float64, part string, scale float32, exportPath string, debug, stats bool) error {
	cfg := meshparts.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = meshparts.LoadConfig(configPath); err != nil {
			return err
		}
	}
	log := meshparts.NewLogger(cfg.Log.Prefix, cfg.Log.Debug || debug, os.Stderr, os.Stderr)

	var (
		scene *core.Scene
		cam   core.Camera
		err   error
	)
	if scenePath != "" {
		scene, cam, err = meshparts.LoadSceneFile(scenePath, log)
	} else {
		scene, cam, err = meshparts.DemoScene(procedural.CarOptions{Resolution: resolution, Merge: merge})
	}
	if err != nil {
		return err
	}

	sess, err := meshparts.NewSession(cfg, log)
	if err != nil {
		return err
	}
	sess.Load(scene, cam)
	res, err := sess.Detect()
	if err != nil {
		return err
	}
	if !res.Segmented {
		log.Warnf("no parts detected")
	}

	if part != "" {
		if err := sess.SelectPart(part); err != nil {
			return err
		}
		if scale != 1 {
			if scale <= 0 {
				return errors.New("scale must be positive")
			}
			if err := sess.Scale(mgl32.Vec3{scale, scale, scale}); err != nil {
				return err
			}
		}
	}

	if exportPath != "" {
		if err := sess.Export(exportPath); err != nil {
			return err
		}
		log.Infof("exported %s", exportPath)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(sess.Parts()); err != nil {
		return err
	}
	if stats {
		fmt.Fprint(os.Stderr, sess.Profiler().String())
	}
	return nil
}
