// Package factory creates residual stages from environment-driven
// configuration, switching between real inference backends and the
// simulated backend without changing consuming code.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - RESIDUAL_BACKEND: backend identifier ("native", "onnxruntime", "simulation")
//   - RESIDUAL_MODEL: model path passed to the backend
//   - RESIDUAL_MODE: "dnn", "random" or "passthrough"
//   - RESIDUAL_INFER_TIMEOUT_MS: integer milliseconds, 0 disables the timeout
//   - RESIDUAL_SEED: unsigned seed of the random mode generator
//   - RESIDUAL_USE_SIMULATION: "true" or "false" to enable simulation mode
//
// Invalid values are logged at warning level and the default is kept.
//
// # Usage
//
//	factory := NewStageFactory()
//	st, err := factory.CreateStage(sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
// # Testing Support
//
// CreateSimulationForTesting returns a stage wired to a scripted simulated
// backend together with that backend:
//
//	func TestMyFeature(t *testing.T) {
//	    factory := NewStageFactory()
//	    st, backend, err := factory.CreateSimulationForTesting(sink, WithFailingInferCalls(3))
//	    // Drive st, then inspect backend.GetInferenceLog()...
//	}
package factory
