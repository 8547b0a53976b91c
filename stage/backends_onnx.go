//go:build onnxruntime

package stage

import _ "github.com/opd-ai/residual/dnn/onnx"
