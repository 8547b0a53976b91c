package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/dnn"
)

// Name is the registry identifier of the simulated backend.
const Name = "simulation"

var (
	// ErrSimulatedLoad is returned for model paths listed in Config.FailLoad.
	ErrSimulatedLoad = errors.New("simulated model load failure")
	// ErrSimulatedNegotiation is returned for channel counts listed in Config.RejectChannels.
	ErrSimulatedNegotiation = errors.New("simulated shape rejection")
	// ErrSimulatedInference is returned for call numbers listed in Config.FailInferCalls.
	ErrSimulatedInference = errors.New("simulated inference failure")
)

func init() {
	dnn.RegisterBackend(Name, func() dnn.Backend { return NewBackend(Config{}) })
}

// Config scripts the behavior of a simulated backend.
type Config struct {
	// FailLoad lists model paths whose LoadModel fails.
	FailLoad []string
	// RejectChannels lists channel counts SetInputOutput rejects.
	RejectChannels []int
	// FailInferCalls lists 1-based inference call numbers that fail.
	FailInferCalls []int
	// Delay is added to every inference call. Calls honor context cancellation.
	Delay time.Duration
	// Residual is the value of every output sample.
	Residual float32
}

// InferenceRecord represents one inference call for test verification.
type InferenceRecord struct {
	CallNumber int
	Width      int
	Height     int
	Success    bool
	Error      error
}

// Stats summarizes backend activity.
type Stats struct {
	Loads      int
	Frees      int
	LiveModels int
	Calls      int
	Successful int
	Failed     int
}

// Backend is a scripted dnn.Backend.
type Backend struct {
	config Config

	mu     sync.RWMutex
	loads  int
	frees  int
	calls  int
	infLog []InferenceRecord
}

// NewBackend creates a simulated backend.
func NewBackend(config Config) *Backend {
	logrus.WithFields(logrus.Fields{
		"function":         "NewBackend",
		"fail_load":        config.FailLoad,
		"reject_channels":  config.RejectChannels,
		"fail_infer_calls": config.FailInferCalls,
		"delay":            config.Delay,
	}).Debug("Creating simulated inference backend")

	return &Backend{config: config}
}

// Name implements dnn.Backend.
func (b *Backend) Name() string {
	return Name
}

// IsSimulation reports that the backend performs no real inference.
func (b *Backend) IsSimulation() bool {
	return true
}

// LoadModel implements dnn.Backend.
func (b *Backend) LoadModel(path string) (dnn.Model, error) {
	if slices.Contains(b.config.FailLoad, path) {
		logrus.WithFields(logrus.Fields{
			"function": "Backend.LoadModel",
			"model":    path,
		}).Debug("Simulating model load failure")
		return nil, fmt.Errorf("%w: %s", ErrSimulatedLoad, path)
	}

	b.mu.Lock()
	b.loads++
	b.mu.Unlock()

	return &Model{backend: b, path: path}, nil
}

// FreeModel implements dnn.Backend.
func (b *Backend) FreeModel(m dnn.Model) error {
	model, ok := m.(*Model)
	if !ok || model.backend != b {
		return fmt.Errorf("model was not loaded by this simulated backend")
	}
	if model.freed {
		return fmt.Errorf("simulated model %s freed twice", model.path)
	}
	model.freed = true

	b.mu.Lock()
	b.frees++
	b.mu.Unlock()
	return nil
}

// GetInferenceLog returns a copy of the inference log.
func (b *Backend) GetInferenceLog() []InferenceRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	log := make([]InferenceRecord, len(b.infLog))
	copy(log, b.infLog)
	return log
}

// ClearInferenceLog empties the inference log. Call numbering continues.
func (b *Backend) ClearInferenceLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.infLog = nil
}

// GetStats returns activity counters.
func (b *Backend) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		Loads:      b.loads,
		Frees:      b.frees,
		LiveModels: b.loads - b.frees,
		Calls:      b.calls,
	}
	for _, rec := range b.infLog {
		if rec.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

func (b *Backend) record(rec InferenceRecord) {
	b.mu.Lock()
	b.infLog = append(b.infLog, rec)
	b.mu.Unlock()
}

func (b *Backend) nextCall() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.calls
}

// Model is a simulated loaded model.
type Model struct {
	backend *Backend
	path    string

	desc       dnn.TensorDesc
	negotiated bool
	freed      bool
}

// SetInputOutput implements dnn.Model.
func (m *Model) SetInputOutput(desc dnn.TensorDesc, inputName string, outputNames []string) error {
	if m.freed {
		return fmt.Errorf("simulated model %s used after free", m.path)
	}
	if slices.Contains(m.backend.config.RejectChannels, desc.Channels) {
		return fmt.Errorf("%w: %d channels", ErrSimulatedNegotiation, desc.Channels)
	}
	m.desc = desc
	m.negotiated = true
	return nil
}

// Infer implements dnn.Model.
func (m *Model) Infer(ctx context.Context, input *dnn.Tensor) ([]*dnn.Tensor, error) {
	call := m.backend.nextCall()
	rec := InferenceRecord{
		CallNumber: call,
		Width:      input.Desc.Width,
		Height:     input.Desc.Height,
	}

	err := m.run(ctx, call)
	if err != nil {
		rec.Error = err
		m.backend.record(rec)

		logrus.WithFields(logrus.Fields{
			"function": "Model.Infer",
			"call":     call,
			"error":    err.Error(),
		}).Debug("Simulated inference failed")
		return nil, err
	}

	out := dnn.NewTensor(dnn.TensorDesc{
		DataType: input.Desc.DataType,
		Width:    input.Desc.Width,
		Height:   input.Desc.Height,
		Channels: dnn.ChannelCount,
	})
	if v := m.backend.config.Residual; v != 0 {
		for i := range out.Data {
			out.Data[i] = v
		}
	}

	rec.Success = true
	m.backend.record(rec)
	return []*dnn.Tensor{out}, nil
}

func (m *Model) run(ctx context.Context, call int) error {
	if m.freed {
		return fmt.Errorf("simulated model %s used after free", m.path)
	}
	if !m.negotiated {
		return dnn.ErrNotNegotiated
	}
	if d := m.backend.config.Delay; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if slices.Contains(m.backend.config.FailInferCalls, call) {
		return fmt.Errorf("%w: call %d", ErrSimulatedInference, call)
	}
	return nil
}
