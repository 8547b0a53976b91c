// Package sim provides a simulated inference backend for tests and dry runs.
//
// The simulated backend never touches model files. Its behavior is scripted
// through Config: which model paths fail to load, which channel counts are
// rejected at negotiation, which inference calls fail, how long each call
// takes and the constant residual it produces. Every inference is recorded
// for later verification:
//
//	backend := sim.NewBackend(sim.Config{FailInferCalls: []int{5}})
//	// ... run a stage on backend ...
//	for _, rec := range backend.GetInferenceLog() {
//	    fmt.Println(rec.CallNumber, rec.Success)
//	}
//
// Importing the package registers a default instance under "simulation".
package sim
