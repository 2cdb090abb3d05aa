package server

import (
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"

	perr "github.com/ivlev/scriptcam/internal/errors"
)

// Link targets served as QR codes.
const (
	LinkStream = "stream"
	LinkStatus = "status"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// Link returns the URL a second screen opens for target on host.
func Link(host, target string) (string, error) {
	switch target {
	case "", LinkStream:
		return "ws://" + host + "/scroll/ws", nil
	case LinkStatus:
		return "http://" + host + "/status", nil
	default:
		return "", perr.InvalidConfigf("unknown link target %q", target)
	}
}

// QRText renders link as a QR code made of unicode half blocks, for terminals.
func QRText(link string) (string, error) {
	code, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "qr: encode")
	}
	return code.ToSmallString(false), nil
}

// handleQR serves a PNG QR code pointing at the overlay stream (default) or
// the status endpoint of this server.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link, err := Link(r.Host, q.Get("target"))
	if err != nil {
		respondError(w, err)
		return
	}
	size := defaultQRSize
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minQRSize || n > maxQRSize {
			respondError(w, perr.InvalidConfigf("size must be %d..%d", minQRSize, maxQRSize))
			return
		}
		size = n
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		respondError(w, perr.Wrap(err, perr.ErrorCodeUnknown, "qr: encode"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
