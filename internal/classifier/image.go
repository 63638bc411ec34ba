package classifier

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxImageBytes is the decoded payload limit.
	DefaultMaxImageBytes = 5 * 1024 * 1024
	// DefaultImageSize is the square input edge of the DermaMNIST model.
	DefaultImageSize = 28
)

var (
	dataURLHeader = regexp.MustCompile(`^data:([^;,]+);base64$`)

	allowedMimeTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/jpg":  true,
	}
)

// DecodeImagePayload accepts a data URL (data:image/png;base64,...) or raw
// base64 and returns the decoded bytes.
func DecodeImagePayload(field string, maxBytes int) ([]byte, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, &InvalidImageError{Err: errors.New("no image provided")}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	payload := field
	if strings.HasPrefix(field, "data:") {
		header, body, ok := strings.Cut(field, ",")
		if !ok {
			return nil, &InvalidImageError{Err: errors.New("malformed data URL")}
		}
		if m := dataURLHeader.FindStringSubmatch(header); m != nil {
			mime := strings.ToLower(m[1])
			if !allowedMimeTypes[mime] {
				return nil, &UnsupportedMediaError{MimeType: mime}
			}
		}
		payload = body
	}

	// Reject early when even the encoded form cannot fit.
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return nil, &ImageTooLargeError{Size: base64.StdEncoding.DecodedLen(len(payload)), Limit: maxBytes}
	}

	decoded, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return nil, &InvalidImageError{Err: fmt.Errorf("base64: %w", err)}
	}
	if len(decoded) > maxBytes {
		return nil, &ImageTooLargeError{Size: len(decoded), Limit: maxBytes}
	}
	return decoded, nil
}

// Preprocess decodes a PNG or JPEG image, resizes it to size×size RGB and
// returns the pixels scaled to [0,1] in HWC order (a batch of one).
func Preprocess(data []byte, size int) ([]float32, error) {
	if size <= 0 {
		size = DefaultImageSize
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &InvalidImageError{Err: err}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, 0, size*size*3)
	for y := 0; y < size; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+size*4]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			out = append(out,
				float32(px[0])/255,
				float32(px[1])/255,
				float32(px[2])/255,
			)
		}
	}
	return out, nil
}
