/*
image.go - Image proxy and resize endpoint

PURPOSE:
  GET /api/optimize-image?url=...&width=... fetches an upstream product
  image, scales it down to the requested width, and re-encodes it as JPEG.
  Product photography is hosted on an external CDN; this endpoint lets the
  storefront serve appropriately sized variants without storing copies.

LIMITS:
  - Only http/https upstream URLs are fetched
  - Upstream responses are capped at 10 MiB
  - Width is clamped to [16, 2000]; images are never upscaled
  - Responses carry a long-lived Cache-Control header
*/
package api

import (
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	defaultImageWidth = 800
	minImageWidth     = 16
	maxImageWidth     = 2000
	maxUpstreamBytes  = 10 << 20
	jpegQuality       = 80
)

type imageProxy struct {
	client *http.Client
}

func newImageProxy() *imageProxy {
	return &imageProxy{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// OptimizeImage proxies and downscales an upstream image.
func (h *Handler) OptimizeImage(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "Missing url parameter", nil)
		return
	}

	upstream, err := url.Parse(rawURL)
	if err != nil || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "Invalid image URL", nil)
		return
	}

	width := defaultImageWidth
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid width", err)
			return
		}
	}
	if width < minImageWidth {
		width = minImageWidth
	}
	if width > maxImageWidth {
		width = maxImageWidth
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image URL", err)
		return
	}

	resp, err := h.images.client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch image", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, "Upstream returned "+resp.Status, nil)
		return
	}

	src, _, err := image.Decode(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Failed to decode image", err)
		return
	}

	out := scaleToWidth(src, width)

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	// Headers are already written; an encode failure here can only be logged.
	if err := jpeg.Encode(w, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		h.Logger.Warn("failed to encode image response", zap.Error(err))
	}
}

// scaleToWidth downscales src to the given width, preserving aspect ratio.
// Images narrower than width are returned unchanged.
func scaleToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return src
	}

	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
