// Command libanimegan builds a C shared library for mobile hosts:
//
//	go build -buildmode=c-shared -o libanimegan.so ./cmd/libanimegan
//
// Hosts call StartPredict with a pointer to their pixel memory and get back
// one string: the output path, or a message starting with "Prediction failed: ".
// Every returned string must be released with FreeString.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/Brownie44l1/animegan-api/internal/config"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/model"
	"github.com/Brownie44l1/animegan-api/internal/pipeline"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

var (
	setupOnce  sync.Once
	adapter    *pipeline.Adapter
	adapterErr error
)

// setup builds the adapter once per process from ANIMEGAN_CONFIG and the
// environment. Sessions are still per call unless reuse is configured.
func setup() (*pipeline.Adapter, error) {
	setupOnce.Do(func() {
		cfg, err := config.Load(os.Getenv("ANIMEGAN_CONFIG"))
		if err != nil {
			adapterErr = err
			return
		}
		log.Init(cfg.Log.Level)

		engine, err := model.NewORTEngine(cfg.Contract(), cfg.EngineOptions())
		if err != nil {
			adapterErr = err
			return
		}
		resampler, err := tensor.NewResampler(cfg.Image.Filter)
		if err != nil {
			adapterErr = err
			return
		}
		adapter, adapterErr = pipeline.New(engine, cfg.Contract(), resampler, pipeline.WithPrefix(cfg.Output.Prefix))
	})
	return adapter, adapterErr
}

// loadAdapter is replaced in tests.
var loadAdapter = setup

func failed(format string, args ...any) string {
	return pipeline.FailurePrefix + fmt.Sprintf(format, args...)
}

// predict runs one borrowed buffer through the adapter and returns the
// legacy result string. It never panics.
func predict(pix []byte, dir string, width, height int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = failed("internal error: %v", r)
		}
	}()

	if pix == nil {
		return failed("validate: buffer and directory are required")
	}
	if !utf8.ValidString(dir) {
		return failed("validate: directory is not valid UTF-8")
	}

	a, err := loadAdapter()
	if err != nil {
		return failed("setup: %v", err)
	}
	return a.Run(tensor.PixelBuffer{Pix: pix, Width: width, Height: height}, dir).String()
}

//export StartPredict
func StartPredict(buf *C.uchar, length C.size_t, dir *C.char, height, width C.int) *C.char {
	if buf == nil || dir == nil {
		return C.CString(failed("validate: buffer and directory are required"))
	}
	// borrowed for the duration of this call only
	pix := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
	return C.CString(predict(pix, C.GoString(dir), int(width), int(height)))
}

//export FreeString
func FreeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
