package vespadet

import (
	"fmt"
	"io"
)

// Query the runtime and loaded model to get input and output tensor
// information as well as the engine version in text/human readable format
func (r *Runtime) Query(w io.Writer) error {

	if v, ok := r.backend.(Versioner); ok {
		fmt.Fprintf(w, "Engine Version: %s\n", v.Version())
	}

	if !r.allocated {
		return fmt.Errorf("error querying tensors: %w", ErrNotAllocated)
	}

	fmt.Fprintf(w, "Model Input Number: %d, Output Number: %d\n",
		len(r.inputs), len(r.outputs))

	fmt.Fprintf(w, "Input tensors:\n")

	for _, t := range r.inputs {
		fmt.Fprintf(w, "  %s\n", t.String())
	}

	fmt.Fprintf(w, "Output tensors:\n")

	for _, t := range r.outputs {
		fmt.Fprintf(w, "  %s\n", t.String())
	}

	for _, u := range r.MemoryUsage() {
		fmt.Fprintf(w, "Memory %s\n", u.String())
	}

	fmt.Fprintf(w, "Arena used: %d of %d bytes\n", r.arena.Used(), r.arena.Size())

	return nil
}
