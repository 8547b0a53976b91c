// Package onnx implements the "onnxruntime" inference backend on top of
// github.com/yalue/onnxruntime_go.
//
// The backend is only compiled with the onnxruntime build tag, so default
// builds carry no cgo dependency:
//
//	go build -tags onnxruntime ./cmd/residual
//
// The shared library is located through RESIDUAL_ORT_LIBRARY, falling back
// to the platform's default library name. Models must accept one float32
// tensor of shape (1,3,H,W) and produce one of the same shape.
package onnx
