package sink

import (
	"fmt"
	"path"
	"strings"

	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"
)

// DirSink writes every artifact as a file beneath a root directory
type DirSink struct {
	fs   billy.Filesystem
	root string
}

// NewDirSink returns a DirSink writing beneath root on fs, creating root
// when missing
func NewDirSink(fs billy.Filesystem, root string) (*DirSink, error) {

	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory %s: %w", root, err)
	}

	return &DirSink{fs: fs, root: root}, nil
}

// WriteArtifact writes data to the file id, replacing any existing file
func (d *DirSink) WriteArtifact(id string, data []byte) error {

	if id == "" || path.IsAbs(id) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid artifact id %q", id)
	}

	file := d.fs.Join(d.root, id)

	if dir := path.Dir(id); dir != "." {
		if err := d.fs.MkdirAll(d.fs.Join(d.root, dir), 0755); err != nil {
			return fmt.Errorf("error creating directory for %s: %w", id, err)
		}
	}

	if err := util.WriteFile(d.fs, file, data, 0644); err != nil {
		return fmt.Errorf("error writing artifact %s: %w", file, err)
	}

	return nil
}

// Root returns the output directory
func (d *DirSink) Root() string {
	return d.root
}

// Close releases nothing, the filesystem is owned by the caller
func (d *DirSink) Close() error {
	return nil
}
