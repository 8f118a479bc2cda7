package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/lmittmann/ppm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-vespadet/postprocess/result"
	"gopkg.in/src-d/go-billy.v4/memfs"
)

func testDetections() []result.DetectResult {
	return []result.DetectResult{
		{ID: 1, Class: 0, Probability: 0.9, Box: result.Box{X: 1, Y: 2, W: 3, H: 4}, Cell: 10},
		{ID: 2, Class: 3, Probability: 0.4, Box: result.Box{X: 5, Y: 6, W: 7, H: 8}, Cell: 11},
	}
}

func TestArtifactName(t *testing.T) {

	tests := []struct {
		kind   ArtifactKind
		seq    int
		policy string
		want   string
	}{
		{ArtifactFrame, 1, "", "frame_000001.jpg"},
		{ArtifactCanvas, 42, "letterbox", "frame_000042_letterbox.ppm"},
		{ArtifactDetections, 7, "", "frame_000007_detections.json"},
		{ArtifactOverlay, 123456, "", "frame_123456_overlay.png"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ArtifactName(tc.kind, tc.seq, tc.policy))
	}
}

func TestEncodePPM(t *testing.T) {

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 0, 255, 255})

	data, err := EncodePPM(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("P6")))

	back, err := ppm.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	r, g, b, _ := back.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
	_, _, b, _ = back.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), b)

	data, err = EncodePNG(img)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestEncodeDetections(t *testing.T) {

	meta := FrameMeta{RunID: "run", Seq: 3, Width: 192, Height: 192, Policy: "letterbox"}

	data, err := EncodeDetections(meta, testDetections(), []string{"wasp"})
	require.NoError(t, err)

	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))

	assert.Equal(t, 3, rep.Seq)
	assert.Equal(t, "run", rep.RunID)
	require.Len(t, rep.Detections, 2)
	assert.Equal(t, "wasp", rep.Detections[0].Label)
	assert.Equal(t, "class3", rep.Detections[1].Label)
	assert.Equal(t, float32(7), rep.Detections[1].W)

	data, err = EncodeDetections(meta, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"detections": []`)
}

func TestDirSink(t *testing.T) {

	fs := memfs.New()

	s, err := NewDirSink(fs, "out")
	require.NoError(t, err)

	require.NoError(t, s.WriteArtifact("frame_000001.jpg", []byte("jpeg")))
	require.NoError(t, s.WriteArtifact("frame_000001.jpg", []byte("jpg")))
	require.NoError(t, s.WriteArtifact("sub/x.bin", []byte{1}))

	f, err := fs.Open("out/frame_000001.jpg")
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, _ := f.Read(buf)
	f.Close()
	assert.Equal(t, "jpg", string(buf[:n]))

	_, err = fs.Stat("out/sub/x.bin")
	assert.NoError(t, err)

	for _, id := range []string{"", "../escape", "/abs"} {
		assert.Error(t, s.WriteArtifact(id, nil), id)
	}

	assert.NoError(t, s.Close())
}

func TestSQLiteSink(t *testing.T) {

	s, err := NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer s.Close()

	assert.NotEmpty(t, s.RunID())

	require.NoError(t, s.WriteArtifact("frame_000001.jpg", []byte("one")))
	require.NoError(t, s.WriteArtifact("frame_000001.jpg", []byte("two")))

	data, err := s.Artifact("frame_000001.jpg")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = s.Artifact("missing")
	assert.Error(t, err)

	meta := FrameMeta{Seq: 1, Source: "cam", Captured: time.Now()}
	require.NoError(t, s.RecordDetections(meta, testDetections(), []string{"wasp"}))

	var count int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM detections WHERE run_id = ? AND seq = 1`, s.RunID()).Scan(&count))
	assert.Equal(t, 2, count)

	var label string
	var score float64
	require.NoError(t, s.DB().QueryRow(
		`SELECT label, score FROM detections WHERE detection_id = 1`).Scan(&label, &score))
	assert.Equal(t, "wasp", label)
	assert.InDelta(t, 0.9, score, 1e-6)

	// artifacts and detections of the run join on one runs row
	var runs int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(DISTINCT r.id) FROM runs r
		JOIN artifacts a ON a.run_id = r.id
		JOIN detections d ON d.run_id = r.id`).Scan(&runs))
	assert.Equal(t, 1, runs)

	// a run id assigned elsewhere is recorded on first use
	other := FrameMeta{RunID: "other", Seq: 2}
	require.NoError(t, s.RecordDetections(other, testDetections()[:1], nil))
	require.NoError(t, s.RecordDetections(other, testDetections()[1:], nil))

	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM runs WHERE id = 'other'`).Scan(&runs))
	assert.Equal(t, 1, runs)

	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM detections WHERE run_id = 'other'`).Scan(&count))
	assert.Equal(t, 2, count)
}

type failingSink struct {
	closed bool
}

func (f *failingSink) WriteArtifact(string, []byte) error { return errors.New("disk full") }

func (f *failingSink) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestMultiSink(t *testing.T) {

	fs := memfs.New()
	dir, err := NewDirSink(fs, "out")
	require.NoError(t, err)

	db, err := NewSQLiteSink(":memory:")
	require.NoError(t, err)

	bad := &failingSink{}
	m := NewMultiSink(dir, nil, db, bad, Discard)

	err = m.WriteArtifact("a.bin", []byte{1})
	assert.EqualError(t, err, "disk full")

	_, err = fs.Stat("out/a.bin")
	assert.NoError(t, err)

	data, err := db.Artifact("a.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	assert.Equal(t, db.RunID(), m.RunID())
	assert.Empty(t, NewMultiSink(dir, Discard).RunID())

	require.NoError(t, m.RecordDetections(FrameMeta{RunID: "r", Seq: 2}, testDetections(), nil))

	err = m.Close()
	assert.EqualError(t, err, "close failed")
	assert.True(t, bad.closed)
}
