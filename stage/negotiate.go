package stage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/frame"
	"github.com/opd-ai/residual/limits"
)

// Geometry describes the stream properties fixed at negotiation.
type Geometry struct {
	Format *frame.Format
	Width  int
	Height int
}

// GeometryOf returns the geometry of f.
func GeometryOf(f *frame.Frame) Geometry {
	return Geometry{Format: f.Format, Width: f.Width, Height: f.Height}
}

// String returns the geometry as format WxH.
func (g Geometry) String() string {
	return fmt.Sprintf("%s %dx%d", g.Format, g.Width, g.Height)
}

// Configure negotiates the stream geometry with the model and allocates the
// plane buffers. FilterFrame calls it with the geometry of the first frame.
//
// Configure succeeds at most once. Calling it again with the negotiated
// geometry is a no-op, with another geometry it returns ErrGeometryChanged
// and leaves the stage untouched. A failed negotiation is permanent: every
// later call returns the same error.
func (s *Stage) Configure(g Geometry) error {
	if s.closed {
		return ErrClosed
	}
	if s.setupErr != nil {
		return s.setupErr
	}
	if s.negotiated {
		if g == s.geometry {
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"function":   "Stage.Configure",
			"stage":      s.id,
			"negotiated": s.geometry.String(),
			"requested":  g.String(),
		}).Error("Stream geometry changed after negotiation")
		return fmt.Errorf("%w: negotiated %s, got %s", ErrGeometryChanged, s.geometry, g)
	}

	if err := s.negotiate(g); err != nil {
		s.setupErr = err
		logrus.WithFields(logrus.Fields{
			"function": "Stage.Configure",
			"stage":    s.id,
			"geometry": g.String(),
			"error":    err.Error(),
		}).Error("Stream negotiation failed")
		return err
	}
	return nil
}

func (s *Stage) negotiate(g Geometry) error {
	if g.Format == nil {
		return fmt.Errorf("%w: missing pixel format", ErrUnsupportedFormat)
	}
	if n := g.Format.Planes(); n != limits.PlaneCount {
		return fmt.Errorf("%w: %s has %d planes, expected %d", ErrUnsupportedFormat, g.Format, n, limits.PlaneCount)
	}
	if err := limits.ValidateGeometry(g.Width, g.Height); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	desc := dnn.TensorDesc{
		DataType: s.cfg.DataType,
		Width:    g.Width,
		Height:   g.Height,
		Channels: dnn.ChannelCount,
	}
	if err := s.handle.Negotiate(desc, s.cfg.InputName, []string{s.cfg.OutputName}); err != nil {
		return err
	}

	if err := s.buffers.Allocate(g.Width, g.Height); err != nil {
		return err
	}

	s.geometry = g
	s.negotiated = true

	logrus.WithFields(logrus.Fields{
		"function": "Stage.Configure",
		"stage":    s.id,
		"geometry": g.String(),
		"tensor":   desc.String(),
	}).Info("Stream negotiated")

	return nil
}
