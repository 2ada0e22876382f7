package render

import (
	"bytes"
	"errors"
	"os/exec"
	"strconv"

	errs "github.com/matzehuels/orcha/pkg/errors"
)

const (
	rsvgBinary  = "rsvg-convert"
	installHint = "install librsvg (macOS: brew install librsvg, Linux: apt install librsvg2-bin)"
)

// Available reports whether rsvg-convert is on PATH.
func Available() bool {
	_, err := exec.LookPath(rsvgBinary)
	return err == nil
}

// ToPNG rasterises svg at scale times its intrinsic size. A scale <= 0
// renders at 1x.
func ToPNG(svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	return convert(svg, "png", "--zoom", strconv.FormatFloat(scale, 'f', 2, 64))
}

// ToPDF converts svg to a single-page PDF.
func ToPDF(svg []byte) ([]byte, error) {
	return convert(svg, "pdf")
}

// convert pipes svg through rsvg-convert. A missing binary is UNSUPPORTED so
// callers can fall back to SVG output.
func convert(svg []byte, format string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(rsvgBinary)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeUnsupported, err, "%s output needs %s: %s", format, rsvgBinary, installHint)
	}

	cmd := exec.Command(bin, append([]string{"--format", format}, args...)...)
	cmd.Stdin = bytes.NewReader(svg)
	out, err := cmd.Output()
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return nil, errs.Wrap(errs.ErrCodeInternal, err, "%s: %s", rsvgBinary, bytes.TrimSpace(exit.Stderr))
		}
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "run %s", rsvgBinary)
	}
	return out, nil
}
