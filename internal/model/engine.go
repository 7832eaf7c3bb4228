package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/animegan-api/internal/failure"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

// Options tune how ORTEngine manages the runtime.
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search.
	LibraryPath string
	// ReuseSessions keeps one session per model path for the life of the
	// engine. Off by default: every call loads and destroys its own session.
	ReuseSessions bool
}

// ORTEngine runs models with ONNX Runtime.
type ORTEngine struct {
	contract Contract
	opts     Options
	sessions *sessionCache

	initOnce sync.Once
	initErr  error
	owned    bool
}

// NewORTEngine returns an engine for the given contract. The runtime is
// initialized lazily on first use.
func NewORTEngine(c Contract, opts Options) (*ORTEngine, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model contract: %w", err)
	}
	e := &ORTEngine{contract: c, opts: opts}
	e.sessions = newSessionCache(e.load)
	return e, nil
}

func (e *ORTEngine) initialize() error {
	e.initOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if e.opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(e.opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			e.initErr = failure.New(failure.ModelLoad, "initialize onnxruntime", err)
			return
		}
		e.owned = true
		log.Info("onnxruntime initialized", "library", e.opts.LibraryPath)
	})
	return e.initErr
}

// Invoke implements Engine.
func (e *ORTEngine) Invoke(in *tensor.Input, modelPath string) (*tensor.Output, error) {
	if in == nil || len(in.Data) != in.Shape.Len() {
		return nil, failure.Newf(failure.Inference, "check input", "input tensor does not match its shape")
	}
	if in.Shape != e.contract.Shape {
		return nil, failure.Newf(failure.Inference, "check input",
			"input shape %v does not match model shape %v", in.Dims(), e.contract.Shape)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, failure.New(failure.ModelLoad, "open model", err)
	}
	if err := e.initialize(); err != nil {
		return nil, err
	}

	if !e.opts.ReuseSessions {
		s, err := e.load(modelPath)
		if err != nil {
			return nil, err
		}
		defer s.destroy()
		return s.run(in)
	}

	s, err := e.sessions.get(modelPath)
	if err != nil {
		return nil, err
	}
	return s.run(in)
}

// Close releases cached sessions and the runtime environment if this engine
// created it.
func (e *ORTEngine) Close() {
	e.sessions.close()
	if e.owned {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Warn("destroy onnxruntime environment", "error", err)
		}
		e.owned = false
	}
}

func (e *ORTEngine) load(modelPath string) (runner, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, failure.New(failure.ModelLoad, "read model info", err)
	}
	if len(outputs) == 0 {
		return nil, failure.Newf(failure.ModelLoad, "read model info", "model declares no outputs")
	}
	if !hasInput(inputs, e.contract.InputName) {
		names := make([]string, len(inputs))
		for i, in := range inputs {
			names[i] = in.Name
		}
		return nil, failure.Newf(failure.Inference, "bind input", "model has no input %q (inputs: %v)", e.contract.InputName, names)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, failure.New(failure.ModelLoad, "create session options", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(e.contract.Threads); err != nil {
		return nil, failure.New(failure.ModelLoad, "set intra-op threads", err)
	}
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, failure.New(failure.ModelLoad, "set optimization level", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{e.contract.InputName}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, failure.New(failure.ModelLoad, "create session", err)
	}

	log.Debug("model session created", "path", modelPath, "output", outputs[0].Name, "threads", e.contract.Threads)
	return &ortSession{session: session, shape: e.contract.Shape}, nil
}

func hasInput(inputs []ort.InputOutputInfo, name string) bool {
	for _, in := range inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}

type ortSession struct {
	session *ort.DynamicAdvancedSession
	shape   tensor.Shape
}

func (s *ortSession) run(in *tensor.Input) (*tensor.Output, error) {
	input, err := ort.NewTensor(ort.NewShape(in.Dims()...), in.Data)
	if err != nil {
		return nil, failure.New(failure.Inference, "create input tensor", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, failure.New(failure.Inference, "run session", err)
	}
	if outputs[0] == nil {
		return nil, failure.Newf(failure.Inference, "read output", "session produced no output")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, failure.Newf(failure.Inference, "read output", "output is %T, want float32 tensor", outputs[0])
	}
	return stripBatch(out.GetShape(), out.GetData(), s.shape)
}

func (s *ortSession) destroy() {
	if err := s.session.Destroy(); err != nil {
		log.Warn("destroy session", "error", err)
	}
}

// stripBatch copies a [1, C, H, W] result out of runtime memory as [C, H, W].
func stripBatch(dims []int64, data []float32, want tensor.Shape) (*tensor.Output, error) {
	if len(dims) != 4 {
		return nil, failure.Newf(failure.Inference, "read output", "output has %d dims, want 4", len(dims))
	}
	if dims[0] != 1 {
		return nil, failure.Newf(failure.Inference, "read output", "batch size %d, want 1", dims[0])
	}

	got := tensor.Shape{Channels: int(dims[1]), Height: int(dims[2]), Width: int(dims[3])}
	if got != want {
		return nil, failure.Newf(failure.Inference, "read output", "output shape %v, want [1 %d %d %d]",
			dims, want.Channels, want.Height, want.Width)
	}
	if len(data) != got.Len() {
		return nil, failure.Newf(failure.Inference, "read output", "output holds %d values, want %d", len(data), got.Len())
	}

	out := make([]float32, len(data))
	copy(out, data)
	return &tensor.Output{Shape: got, Data: out}, nil
}
