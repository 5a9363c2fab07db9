package transcoder

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// ClipOptions describes one sub-range to cut out of a source file
type ClipOptions struct {
	InputPath  string
	OutputPath string
	Start      float64 // seconds
	Duration   float64 // seconds
}

func (f *FFmpeg) extractArgs(opts ClipOptions) []string {
	args := []string{
		"-hide_banner",
		"-ss", formatSeconds(opts.Start),
		"-i", opts.InputPath,
		"-t", formatSeconds(opts.Duration),
	}
	args = append(args, f.profile.args()...)
	return append(args, "-y", opts.OutputPath)
}

// ExtractClip seeks to Start and re-encodes exactly Duration seconds into OutputPath
func (f *FFmpeg) ExtractClip(ctx context.Context, opts ClipOptions) (int64, error) {
	if !(opts.Duration > 0) || math.IsInf(opts.Duration, 0) {
		return 0, models.NewError(models.ErrorKindExtract, "extract clip",
			fmt.Errorf("invalid duration %.3fs", opts.Duration))
	}
	if !(opts.Start >= 0) || math.IsInf(opts.Start, 0) {
		return 0, models.NewError(models.ErrorKindExtract, "extract clip",
			fmt.Errorf("invalid start %.3fs", opts.Start))
	}

	if err := f.run(ctx, f.extractArgs(opts)); err != nil {
		return 0, models.NewError(models.ErrorKindExtract, "extract clip", err)
	}

	size, err := verifyOutput(opts.OutputPath)
	if err != nil {
		return 0, models.NewError(models.ErrorKindExtract, "extract clip", err)
	}
	return size, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
