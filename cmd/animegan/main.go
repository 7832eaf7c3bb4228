package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/animegan-api/internal/config"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/model"
	"github.com/Brownie44l1/animegan-api/internal/pipeline"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run prints exactly one line to stdout when a prediction is attempted: the
// output path or the failure string. Everything else goes to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	var in, dir, configPath, filter string
	var reuse bool

	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&in, "in", "", "input image path (jpg/png/webp)")
	fs.StringVar(&dir, "dir", "", "directory holding the model; the result is written here too (default: output.dir from config)")
	fs.StringVar(&configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&filter, "filter", "", "resample filter: catmullrom|bicubic|lanczos3|opencv")
	fs.BoolVar(&reuse, "reuse", false, "keep the model session loaded between runs")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if in == "" {
		fmt.Fprintf(stderr, "usage: %s -in photo.jpg [-dir modeldir] [-config config.yaml] [-filter catmullrom]\n", fs.Name())
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log.Init(cfg.Log.Level)

	if dir == "" {
		dir = cfg.Output.Dir
	}
	if filter != "" {
		cfg.Image.Filter = filter
	}
	if reuse {
		cfg.Inference.ReuseSessions = true
	}

	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		fmt.Fprintf(stderr, "failed to open %s: %v\n", in, err)
		return 1
	}

	engine, err := model.NewORTEngine(cfg.Contract(), cfg.EngineOptions())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer engine.Close()

	resampler, err := tensor.NewResampler(cfg.Image.Filter)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	adapter, err := pipeline.New(engine, cfg.Contract(), resampler, pipeline.WithPrefix(cfg.Output.Prefix))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	res := adapter.Run(tensor.BufferFromImage(img), dir)
	fmt.Fprintln(stdout, res.String())
	if !res.OK() {
		return 1
	}
	return 0
}
