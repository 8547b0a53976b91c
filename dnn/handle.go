package dnn

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// ChannelCount is the fixed number of tensor channels a handle negotiates.
const ChannelCount = 3

// Handle owns one loaded model and enforces its lifecycle:
// load, negotiate exactly once, infer, release exactly once.
//
// A Handle is not safe for concurrent use. It belongs to a single stage.
type Handle struct {
	backend Backend
	model   Model
	path    string
	digest  string

	desc        TensorDesc
	inputName   string
	outputNames []string
	negotiated  bool
	released    bool
}

// Load loads the model at path with backend.
// Every failure is reported as ErrModelLoad; no partial state is kept.
func Load(backend Backend, path string) (*Handle, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend cannot be nil", ErrModelLoad)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelLoad)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"backend":  backend.Name(),
		"model":    path,
	}).Info("Loading model")

	model, err := backend.LoadModel(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"backend":  backend.Name(),
			"model":    path,
			"error":    err.Error(),
		}).Error("Could not load model")
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, path, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: %s: backend returned no model", ErrModelLoad, path)
	}

	h := &Handle{
		backend: backend,
		model:   model,
		path:    path,
		digest:  fileDigest(path),
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"backend":  backend.Name(),
		"model":    path,
		"digest":   h.digest,
	}).Info("Model loaded")

	return h, nil
}

// fileDigest returns the hex blake2b-256 digest of the file at path,
// or an empty string if the path is not a readable file.
func fileDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "fileDigest",
			"model":    path,
			"error":    err.Error(),
		}).Debug("Model path is not a readable file, skipping digest")
		return ""
	}
	defer f.Close()

	hash, err := blake2b.New256(nil)
	if err != nil {
		return ""
	}
	if _, err := io.Copy(hash, f); err != nil {
		return ""
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// Negotiate fixes the input tensor shape and the input/output names.
// It must be called exactly once, before the first Infer.
func (h *Handle) Negotiate(desc TensorDesc, inputName string, outputNames []string) error {
	if h.released {
		return ErrModelReleased
	}
	if h.negotiated {
		return fmt.Errorf("%w: have %s, requested %s", ErrAlreadyNegotiated, h.desc, desc)
	}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrShapeNegotiation, err)
	}
	if desc.Channels != ChannelCount {
		return fmt.Errorf("%w: channel count %d, expected %d", ErrShapeNegotiation, desc.Channels, ChannelCount)
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("%w: no output names", ErrShapeNegotiation)
	}

	if err := h.model.SetInputOutput(desc, inputName, outputNames); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Handle.Negotiate",
			"backend":  h.backend.Name(),
			"shape":    desc.String(),
			"input":    inputName,
			"outputs":  outputNames,
			"error":    err.Error(),
		}).Error("Could not set input and output for the model")
		return fmt.Errorf("%w: %w", ErrShapeNegotiation, err)
	}

	h.desc = desc
	h.inputName = inputName
	h.outputNames = append([]string(nil), outputNames...)
	h.negotiated = true

	logrus.WithFields(logrus.Fields{
		"function": "Handle.Negotiate",
		"backend":  h.backend.Name(),
		"shape":    desc.String(),
		"input":    inputName,
		"outputs":  outputNames,
	}).Info("Tensor shape negotiated")

	return nil
}

// Infer runs the model on input and returns the first output tensor.
// Backend failures and malformed outputs are reported as ErrInference.
func (h *Handle) Infer(ctx context.Context, input *Tensor) (*Tensor, error) {
	if h.released {
		return nil, ErrModelReleased
	}
	if !h.negotiated {
		return nil, ErrNotNegotiated
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: input: %w", ErrInference, err)
	}
	if input.Desc != h.desc {
		return nil, fmt.Errorf("%w: input shape %s, negotiated %s", ErrInference, input.Desc, h.desc)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	outputs, err := h.model.Infer(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: backend returned no outputs", ErrInference)
	}

	out := outputs[0]
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: output: %w", ErrInference, err)
	}
	if out.Desc.Width != h.desc.Width || out.Desc.Height != h.desc.Height || out.Desc.Channels != ChannelCount {
		return nil, fmt.Errorf("%w: output shape %s does not match %dx%dx%d", ErrInference,
			out.Desc, ChannelCount, h.desc.Height, h.desc.Width)
	}
	return out, nil
}

// Release frees the model through its backend. It is safe to call on a nil
// handle and more than once; only the first call reaches the backend.
func (h *Handle) Release() error {
	if h == nil || h.released {
		return nil
	}
	h.released = true

	err := h.backend.FreeModel(h.model)
	h.model = nil

	logrus.WithFields(logrus.Fields{
		"function": "Handle.Release",
		"backend":  h.backend.Name(),
		"model":    h.path,
	}).Info("Model released")

	if err != nil {
		return fmt.Errorf("free model %s: %w", h.path, err)
	}
	return nil
}

// Desc returns the negotiated tensor descriptor and whether negotiation happened.
func (h *Handle) Desc() (TensorDesc, bool) {
	return h.desc, h.negotiated
}

// BackendName returns the name of the owning backend.
func (h *Handle) BackendName() string {
	return h.backend.Name()
}

// Path returns the model path the handle was loaded from.
func (h *Handle) Path() string {
	return h.path
}

// Digest returns the hex blake2b-256 digest of the model file, or "" if the
// model was not loaded from a readable file.
func (h *Handle) Digest() string {
	return h.digest
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h == nil || h.released
}
