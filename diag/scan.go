package diag

import (
	"fmt"
	"sort"

	vespadet "github.com/swdee/go-vespadet"
	"github.com/swdee/go-vespadet/postprocess"
)

// ClassScore is the sigmoid score of one class channel of a cell
type ClassScore struct {
	Cell  int
	Class int
	// Logit is the dequantized class channel value
	Logit float32
	Score float32
}

// String returns the ClassScore formatted for logging
func (c ClassScore) String() string {
	return fmt.Sprintf("cell=%d class=%d logit=%.4f score=%.4f",
		c.Cell, c.Class, c.Logit, c.Score)
}

// BestCell scans every class channel of every cell and returns the highest
// scoring one regardless of threshold
func BestCell(t *vespadet.Tensor, l postprocess.Layout) (ClassScore, error) {

	if err := checkLayout(t, l); err != nil {
		return ClassScore{}, err
	}

	best := ClassScore{Cell: -1, Class: -1, Score: -1}
	regCh := l.RegChannels()

	for i := 0; i < l.Cells; i++ {
		base := i*l.Channels + regCh

		for c := 0; c < l.Classes; c++ {
			v := t.Value(base + c)

			if best.Class < 0 || v > best.Logit {
				best = ClassScore{Cell: i, Class: c, Logit: v}
			}
		}
	}

	best.Score = postprocess.Sigmoid(best.Logit)

	return best, nil
}

// TopK returns the k highest scoring classes of a cell in descending order
func TopK(t *vespadet.Tensor, l postprocess.Layout, cell, k int) ([]ClassScore, error) {

	if err := checkLayout(t, l); err != nil {
		return nil, err
	}

	if cell < 0 || cell >= l.Cells {
		return nil, fmt.Errorf("cell %d outside [0,%d)", cell, l.Cells)
	}

	base := cell*l.Channels + l.RegChannels()
	scores := make([]ClassScore, l.Classes)

	for c := range scores {
		v := t.Value(base + c)
		scores[c] = ClassScore{Cell: cell, Class: c, Logit: v, Score: postprocess.Sigmoid(v)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Logit > scores[j].Logit
	})

	if k < len(scores) {
		scores = scores[:k]
	}

	return scores, nil
}

func checkLayout(t *vespadet.Tensor, l postprocess.Layout) error {

	if l.Cells <= 0 || l.Classes <= 0 || t.Len() < l.Cells*l.Channels {
		return fmt.Errorf("%w: layout %s does not fit tensor %s",
			vespadet.ErrShapeMismatch, l, t.Name)
	}

	return nil
}
