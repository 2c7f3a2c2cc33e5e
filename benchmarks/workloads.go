package benchmarks

import "github.com/sarchlab/ghbsim/trace"

// Workload is a named synthetic access trace.
type Workload struct {
	// Name identifies the workload
	Name string

	// Description explains the access pattern
	Description string

	// Generate produces the trace. It is called once per run.
	Generate func() []trace.Record
}

// DefaultWorkloads returns the standard synthetic workloads, each placed in
// its own region of the address space.
func DefaultWorkloads() []Workload {
	return []Workload{
		{
			Name:        "stream",
			Description: "sequential 8-byte loads over 128KB - ideal for delta prefetching",
			Generate:    func() []trace.Record { return trace.Stream(0x0100_0000, 16384, 8) },
		},
		{
			Name:        "strided",
			Description: "loads 256 bytes apart - constant delta that skips blocks",
			Generate:    func() []trace.Record { return trace.Strided(0x0200_0000, 4096, 256) },
		},
		{
			Name:        "pointer_chase",
			Description: "shuffled linked list of 1024 nodes - no stable delta",
			Generate:    func() []trace.Record { return trace.PointerChase(0x0300_0000, 1024, 16, 10) },
		},
		{
			Name:        "matrix_multiply",
			Description: "32x32 int matrix multiply - row walk plus column walk",
			Generate:    func() []trace.Record { return trace.MatrixMultiply(0x0400_0000, 32, 4) },
		},
		{
			Name:        "vector_add",
			Description: "c = a + b over 8192 ints - three interleaved streams",
			Generate:    func() []trace.Record { return trace.VectorAdd(0x0500_0000, 8192, 4) },
		},
		{
			Name:        "binary_search",
			Description: "2000 lookups in 4096 sorted ints - halving deltas per lookup",
			Generate:    func() []trace.Record { return trace.BinarySearch(0x0600_0000, 4096, 4, 2000) },
		},
	}
}

// FindWorkload returns the default workload with the given name.
func FindWorkload(name string) (Workload, bool) {
	for _, w := range DefaultWorkloads() {
		if w.Name == name {
			return w, true
		}
	}
	return Workload{}, false
}
