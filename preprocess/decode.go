package preprocess

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	vespadet "github.com/swdee/go-vespadet"
)

// Decoder decodes a compressed image
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// ImagingDecoder decodes JPEG, PNG, GIF, BMP and TIFF images
type ImagingDecoder struct {
	// AutoOrientation applies the EXIF orientation tag of JPEG images
	AutoOrientation bool
}

// Decode implements Decoder, errors wrap ErrDecodeFailure
func (d ImagingDecoder) Decode(data []byte) (image.Image, error) {

	img, err := imaging.Decode(bytes.NewReader(data),
		imaging.AutoOrientation(d.AutoOrientation))

	if err != nil {
		return nil, fmt.Errorf("%w: %w", vespadet.ErrDecodeFailure, err)
	}

	return img, nil
}

// imageToRGB copies img into dst as R, G, B bytes.  dst must hold
// width*height*3 bytes of the images bounds.
func imageToRGB(img image.Image, dst []byte) {

	b := img.Bounds()
	w := b.Dx()
	i := 0

	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				dst[i], dst[i+1], dst[i+2] = row[x*4], row[x*4+1], row[x*4+2]
				i += 3
			}
		}

	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				dst[i], dst[i+1], dst[i+2] = row[x*4], row[x*4+1], row[x*4+2]
				i += 3
			}
		}

	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				dst[i], dst[i+1], dst[i+2] = row[x], row[x], row[x]
				i += 3
			}
		}

	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				dst[i], dst[i+1], dst[i+2] = uint8(r>>8), uint8(g>>8), uint8(bl>>8)
				i += 3
			}
		}
	}
}
