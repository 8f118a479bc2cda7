package vespadet

import (
	"fmt"
	"io"
	"os"

	"github.com/swdee/go-vespadet/memory"
)

// LoadModel reads the model file into a Block reserved from the high
// capacity memory domain.  Provide the full path and filename of the model.
func LoadModel(modelFile string, alloc *memory.Allocator) (*memory.Block, error) {

	// check file exists before reserving memory for it
	info, err := os.Stat(modelFile)

	if err != nil {
		return nil, fmt.Errorf("%w: model file does not exist at %s, error: %w",
			ErrModelLoad, modelFile, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: model file %s is a directory", ErrModelLoad, modelFile)
	}

	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: model file %s is empty", ErrModelLoad, modelFile)
	}

	f, err := os.Open(modelFile)

	if err != nil {
		return nil, fmt.Errorf("%w: error opening model file: %w", ErrModelLoad, err)
	}

	defer f.Close()

	block, err := alloc.Alloc(memory.HighCapacity, int(info.Size()), "model")

	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(f, block.Bytes()); err != nil {
		block.Release()
		return nil, fmt.Errorf("%w: error reading model file: %w", ErrModelLoad, err)
	}

	return block, nil
}

// ModelFromBytes copies an in memory model into a Block reserved from the
// high capacity memory domain
func ModelFromBytes(data []byte, alloc *memory.Allocator) (*memory.Block, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: model is empty", ErrModelLoad)
	}

	block, err := alloc.Alloc(memory.HighCapacity, len(data), "model")

	if err != nil {
		return nil, err
	}

	copy(block.Bytes(), data)
	return block, nil
}
