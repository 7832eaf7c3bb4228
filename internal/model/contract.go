package model

import (
	"fmt"
	"path/filepath"

	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

// Contract describes the model artifact and how it is fed.
type Contract struct {
	ModelFilename string
	InputName     string
	Threads       int
	Shape         tensor.Shape
}

// DefaultContract matches the exported AnimeGAN .ort model.
func DefaultContract() Contract {
	return Contract{
		ModelFilename: "downloaded_model.ort",
		InputName:     "input.1",
		Threads:       4,
		Shape:         tensor.DefaultShape(),
	}
}

// ModelPath joins dir with the model filename.
func (c Contract) ModelPath(dir string) string {
	return filepath.Join(dir, c.ModelFilename)
}

func (c Contract) Validate() error {
	if c.ModelFilename == "" {
		return fmt.Errorf("model filename is required")
	}
	if c.InputName == "" {
		return fmt.Errorf("input name is required")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	return c.Shape.Validate()
}

// Engine runs a single input tensor through the model stored at modelPath
// and returns the first output with the batch axis removed. Calls block
// until the engine finishes.
type Engine interface {
	Invoke(in *tensor.Input, modelPath string) (*tensor.Output, error)
}
