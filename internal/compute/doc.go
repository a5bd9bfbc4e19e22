// Package compute provides the execution backends that evaluate drift and
// diffusion terms during a time march.
//
// Two backends are available:
//
//   - Serial: drift then diffusion on the calling goroutine
//   - Concurrent: drift and diffusion evaluated in parallel and joined
//     before the step is combined
//
// Both read only the fully computed previous state and return the same
// values, so a seeded run is bit-identical whichever backend executes it:
//
//	backend, _ := compute.Lookup("concurrent")
//	s := sim.New(sim.WithBackend(backend))
package compute
