package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vespadet "github.com/swdee/go-vespadet"
	"gopkg.in/src-d/go-billy.v4/memfs"
	"gopkg.in/src-d/go-billy.v4/util"
)

func TestIsJPEG(t *testing.T) {

	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.JpG", true},
		{"d.png", false},
		{"jpg", false},
		{"e.jpg.txt", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, IsJPEG(tc.name), tc.name)
	}
}

func TestDirSource(t *testing.T) {

	fs := memfs.New()

	files := map[string]string{
		"images/b.jpg":         "b",
		"images/a.JPG":         "a",
		"images/notes.txt":     "skip",
		"images/sub/c.jpeg":    "c",
		"images/sub/deep/d.jp": "skip",
	}

	for name, body := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(body), 0644))
	}

	src, err := NewDirSource(fs, "images", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"images/a.JPG", "images/b.jpg", "images/sub/c.jpeg"}, src.Files())

	ctx := context.Background()
	var got []string

	for {
		f, err := src.Capture(ctx)

		if errors.Is(err, ErrExhausted) {
			break
		}

		require.NoError(t, err)
		assert.Equal(t, vespadet.FrameCompressed, f.Format)
		got = append(got, string(f.Data))
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)

	assert.True(t, Supports(src, Reset))
	assert.False(t, Supports(src, Quality))

	require.NoError(t, src.Reset())
	f, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "images/a.JPG", f.Source)

	require.NoError(t, src.Close())
}

func TestDirSourceMissingRoot(t *testing.T) {

	_, err := NewDirSource(memfs.New(), "nope", nil)
	assert.Error(t, err)
}

func TestSliceSource(t *testing.T) {

	frame := &vespadet.RawFrame{Format: vespadet.FrameRGB888, Data: make([]byte, 3), Width: 1, Height: 1}
	src := NewSliceSource(frame, nil, frame)
	ctx := context.Background()

	f, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Same(t, frame, f)

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.ErrorIs(t, err, vespadet.ErrCaptureFailure)

	_, err = src.Capture(ctx)
	require.NoError(t, err)

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrExhausted)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Capture(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, src.Close())
	require.NoError(t, src.Reset())
	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "framesize", FrameSize.String())
	assert.Equal(t, "quality", Quality.String())
	assert.Equal(t, "reset", Reset.String())
	assert.Equal(t, "unknown", Capability(9).String())
}
