package capture

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	vespadet "github.com/swdee/go-vespadet"
	"go.uber.org/zap"
	billy "gopkg.in/src-d/go-billy.v4"
)

// DirSource delivers every JPEG file found beneath a root directory as a
// compressed frame.  Files are listed once when the source is created,
// sorted by path.
type DirSource struct {
	fs    billy.Filesystem
	root  string
	log   *zap.Logger
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource walks root recursively on fs collecting files with a .jpg or
// .jpeg extension in any letter case, other files are skipped
func NewDirSource(fs billy.Filesystem, root string, log *zap.Logger) (*DirSource, error) {

	if log == nil {
		log = zap.NewNop()
	}

	s := &DirSource{
		fs:   fs,
		root: root,
		log:  log,
	}

	fi, err := fs.Stat(root)

	if err != nil {
		return nil, fmt.Errorf("can't open image directory %s: %w", root, err)
	}

	if !fi.IsDir() {
		return nil, fmt.Errorf("image path %s is not a directory", root)
	}

	if err := s.walk(root); err != nil {
		return nil, err
	}

	sort.Strings(s.files)

	log.Info("image directory scanned", zap.String("root", root),
		zap.Int("images", len(s.files)))

	return s, nil
}

func (s *DirSource) walk(dir string) error {

	entries, err := s.fs.ReadDir(dir)

	if err != nil {
		return fmt.Errorf("can't open directory %s: %w", dir, err)
	}

	for _, e := range entries {
		full := s.fs.Join(dir, e.Name())

		switch {
		case e.IsDir():
			s.log.Debug("scanning directory", zap.String("dir", full))

			if err := s.walk(full); err != nil {
				return err
			}

		case e.Mode().IsRegular() && IsJPEG(e.Name()):
			s.files = append(s.files, full)

		default:
			s.log.Debug("ignoring file, not jpg", zap.String("file", full))
		}
	}

	return nil
}

// IsJPEG reports whether name has a .jpg or .jpeg extension
func IsJPEG(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

// Files returns the image paths in delivery order
func (s *DirSource) Files() []string {
	return append([]string(nil), s.files...)
}

// Capture reads the next image file.  Read failures are returned as
// capture failures so the caller can skip to the following file.
func (s *DirSource) Capture(ctx context.Context) (*vespadet.RawFrame, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()

	if s.next >= len(s.files) {
		s.mu.Unlock()
		return nil, ErrExhausted
	}

	file := s.files[s.next]
	s.next++
	s.mu.Unlock()

	data, err := readFile(s.fs, file)

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vespadet.ErrCaptureFailure, file, err)
	}

	return &vespadet.RawFrame{
		Format:   vespadet.FrameCompressed,
		Data:     data,
		Source:   file,
		Captured: time.Now(),
	}, nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {

	f, err := fs.Open(name)

	if err != nil {
		return nil, err
	}

	defer f.Close()

	return io.ReadAll(f)
}

// Supports reports Reset as the only capability
func (s *DirSource) Supports(c Capability) bool {
	return c == Reset
}

// Reset restarts delivery from the first file
func (s *DirSource) Reset() error {
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	return nil
}

// Close releases nothing, the filesystem is owned by the caller
func (s *DirSource) Close() error {
	return nil
}
