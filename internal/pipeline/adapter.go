// Package pipeline runs one host pixel buffer through ingest, inference and
// emit, and writes the rendered PNG next to the model.
package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/Brownie44l1/animegan-api/internal/failure"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/model"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

// DefaultPrefix starts every output file name.
const DefaultPrefix = "anime_gan_output"

// Stage names reported in failures.
const (
	StageValidate = "validate"
	StageIngest   = "ingest"
	StageInfer    = "inference"
	StageEmit     = "emit"
	StagePersist  = "persist"
)

// Adapter is the single entry point hosts call. It holds no per-call state
// and is safe for concurrent use as long as its Engine is.
type Adapter struct {
	ingester *tensor.Ingester
	engine   model.Engine
	contract model.Contract
	prefix   string
	outputRe *regexp.Regexp

	now   func() time.Time
	newID func() string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPrefix changes the output file name prefix.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		a.prefix = prefix
	}
}

// New builds an Adapter around engine.
func New(engine model.Engine, contract model.Contract, resampler tensor.Resampler, opts ...Option) (*Adapter, error) {
	if engine == nil {
		return nil, fmt.Errorf("adapter needs an inference engine")
	}
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model contract: %w", err)
	}
	ingester, err := tensor.NewIngester(contract.Shape, resampler)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		ingester: ingester,
		engine:   engine,
		contract: contract,
		prefix:   DefaultPrefix,
		now:      time.Now,
		newID:    shortID,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prefix == "" || strings.ContainsAny(a.prefix, `/\`) {
		return nil, fmt.Errorf("invalid output prefix %q", a.prefix)
	}
	a.outputRe = regexp.MustCompile(`^` + regexp.QuoteMeta(a.prefix) + `_\d+_[0-9a-f]{8}\.png$`)
	return a, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Run converts buf, invokes the model found in dir and writes the result
// into dir. buf is only read during the call.
func (a *Adapter) Run(buf tensor.PixelBuffer, dir string) Result {
	start := time.Now()
	logger := log.With("width", buf.Width, "height", buf.Height, "dir", dir)

	path, stage, err := a.run(buf, dir)
	if err != nil {
		kind := failure.KindOf(err)
		if kind == failure.Unknown {
			kind = defaultKind(stage)
		}
		logger.Error("prediction failed", "stage", stage, "kind", kind, "error", err)
		return Result{Failure: &Failure{Kind: kind, Stage: stage, Message: err.Error()}}
	}

	logger.Info("prediction complete", "path", path, "duration", time.Since(start))
	return Result{Path: path}
}

func (a *Adapter) run(buf tensor.PixelBuffer, dir string) (string, string, error) {
	if err := buf.Validate(); err != nil {
		return "", StageValidate, err
	}
	if dir == "" {
		return "", StageValidate, failure.Newf(failure.Precondition, "validate dir", "directory is required")
	}

	in, err := a.ingester.Ingest(buf)
	if err != nil {
		return "", StageIngest, err
	}
	log.Debug("ingested", "dims", in.Dims())

	out, err := a.engine.Invoke(in, a.contract.ModelPath(dir))
	if err != nil {
		return "", StageInfer, err
	}
	log.Debug("inference done", "channels", out.Shape.Channels, "height", out.Shape.Height, "width", out.Shape.Width)

	img, err := tensor.Emit(out)
	if err != nil {
		return "", StageEmit, err
	}

	path, err := a.persist(img, dir)
	if err != nil {
		return "", StagePersist, err
	}
	return path, "", nil
}

func defaultKind(stage string) failure.Kind {
	switch stage {
	case StageValidate, StageIngest:
		return failure.Precondition
	case StageInfer, StageEmit:
		return failure.Inference
	case StagePersist:
		return failure.Persistence
	}
	return failure.Unknown
}

// persist writes img through a temp file so a failed encode leaves nothing
// behind under the final name.
func (a *Adapter) persist(img image.Image, dir string) (string, error) {
	name := fmt.Sprintf("%s_%d_%s.png", a.prefix, a.now().Unix(), a.newID())
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", failure.New(failure.Persistence, "resolve output path", err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.prefix+"_*.tmp")
	if err != nil {
		return "", failure.New(failure.Persistence, "create output file", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		return "", failure.New(failure.Persistence, "encode png", err)
	}
	if err := tmp.Close(); err != nil {
		return "", failure.New(failure.Persistence, "close output file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", failure.New(failure.Persistence, "move output file", err)
	}
	renamed = true
	return path, nil
}

// IsOutput reports whether name looks like a file this adapter writes.
func (a *Adapter) IsOutput(name string) bool {
	return a.outputRe.MatchString(name)
}

// Contract returns the model contract in use.
func (a *Adapter) Contract() model.Contract {
	return a.contract
}
