package prompt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	"github.com/gekko3d/meshparts/meshrt/core"
)

var ErrRemoteSegmenter = errors.New("remote segmenter failed")

// Remote posts the frame and points to a server-side segmentation endpoint.
// Credentials for any upstream model live on that server, never here.
type Remote struct {
	endpoint string
	client   *http.Client
	maxFrame int
	log      core.Logger
}

func NewRemote(endpoint string, timeout time.Duration, maxFrame int, log core.Logger) *Remote {
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		maxFrame: maxFrame,
		log:      core.OrNop(log),
	}
}

type wirePoint struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Label int     `json:"label"`
}

type wireRequest struct {
	Image  string      `json:"image"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Points []wirePoint `json:"points"`
}

type wireMask struct {
	Data       string     `json:"data"`
	BBox       [4]float32 `json:"bbox"`
	Confidence float32    `json:"confidence"`
	Category   string     `json:"category,omitempty"`
}

type wireResponse struct {
	Masks []wireMask `json:"masks"`
}

func (r *Remote) Segment(ctx context.Context, req Request) ([]Mask, error) {
	if req.Frame == nil {
		return nil, fmt.Errorf("%w: no frame to send", ErrRemoteSegmenter)
	}
	if req.Width <= 0 || req.Height <= 0 {
		b := req.Frame.Bounds()
		req.Width, req.Height = b.Dx(), b.Dy()
	}

	frame := Downscale(req.Frame, r.maxFrame)
	fb := frame.Bounds()
	sx := float32(fb.Dx()) / float32(req.Width)
	sy := float32(fb.Dy()) / float32(req.Height)

	var img bytes.Buffer
	if err := png.Encode(&img, frame); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	body := wireRequest{
		Image:  base64.StdEncoding.EncodeToString(img.Bytes()),
		Width:  fb.Dx(),
		Height: fb.Dy(),
	}
	for _, p := range req.Points {
		body.Points = append(body.Points, wirePoint{X: p.X * sx, Y: p.Y * sy, Label: int(p.Label)})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteSegmenter, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteSegmenter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemoteSegmenter, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad payload: %v", ErrRemoteSegmenter, err)
	}

	masks := make([]Mask, 0, len(out.Masks))
	for i, m := range out.Masks {
		bm, err := decodeMask(m.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: mask %d: %v", ErrRemoteSegmenter, i, err)
		}
		mb := bm.Bounds()
		masks = append(masks, Mask{
			Coverage: &Bitmap{
				Image:  bm,
				ScaleX: float32(mb.Dx()) / float32(req.Width),
				ScaleY: float32(mb.Dy()) / float32(req.Height),
			},
			BBox: Rect{
				X: m.BBox[0] / sx, Y: m.BBox[1] / sy,
				W: m.BBox[2] / sx, H: m.BBox[3] / sy,
			},
			Confidence: m.Confidence,
			Category:   m.Category,
		})
	}
	r.log.Debugf("remote segmenter: %d masks for %d points in %s", len(masks), len(req.Points), time.Since(start))
	return masks, nil
}

// Downscale fits img inside maxSide*maxSide, keeping its aspect ratio.
func Downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	s := float64(maxSide) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*s)), max(1, int(float64(h)*s))))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func decodeMask(data string) (*image.Gray, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g, nil
}

// Bitmap is a grayscale mask, possibly at a lower resolution than the
// viewport.
type Bitmap struct {
	Image          *image.Gray
	ScaleX, ScaleY float32
}

func (m *Bitmap) At(x, y float32) float32 {
	b := m.Image.Bounds()
	px := b.Min.X + int(x*m.ScaleX)
	py := b.Min.Y + int(y*m.ScaleY)
	if x < 0 || y < 0 || px >= b.Max.X || py >= b.Max.Y {
		return 0
	}
	return float32(m.Image.GrayAt(px, py).Y) / 255
}
