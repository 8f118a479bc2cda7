package vespadet

// CPUCoreMask calculates the core mask by passing in the CPU core numbers as a
// slice, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		if core >= 0 && core < 64 {
			mask |= 1 << core
		}
	}

	return mask
}
