package stage

// The native backend is always available.
import _ "github.com/opd-ai/residual/dnn/native"
