package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// ConcatenationOptions holds options for video concatenation
type ConcatenationOptions struct {
	InputPaths   []string
	ManifestPath string // defaults to concat.txt next to OutputPath
	OutputPath   string
}

// WriteConcatManifest writes the concat demuxer file list in the given order
func WriteConcatManifest(path string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		// Format: file '/path/to/file.mp4'
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(absPath))
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

// escapeConcatPath closes the quote, emits an escaped quote and reopens it
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func (f *FFmpeg) concatArgs(manifestPath, outputPath string) []string {
	args := []string{
		"-hide_banner",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
	}
	args = append(args, f.profile.args()...)
	return append(args, "-y", outputPath)
}

// ConcatVideo joins the inputs in order through the concat demuxer.
// The joined stream is always re-encoded.
func (f *FFmpeg) ConcatVideo(ctx context.Context, opts ConcatenationOptions) (int64, error) {
	if len(opts.InputPaths) == 0 {
		return 0, models.NewError(models.ErrorKindConcat, "concatenate",
			fmt.Errorf("at least 1 clip is required for concatenation"))
	}

	manifest := opts.ManifestPath
	if manifest == "" {
		manifest = filepath.Join(filepath.Dir(opts.OutputPath), "concat.txt")
	}

	if err := WriteConcatManifest(manifest, opts.InputPaths); err != nil {
		return 0, models.NewError(models.ErrorKindConcat, "concatenate",
			fmt.Errorf("failed to create concat file: %w", err))
	}

	if err := f.run(ctx, f.concatArgs(manifest, opts.OutputPath)); err != nil {
		return 0, models.NewError(models.ErrorKindConcat, "concatenate", err)
	}

	size, err := verifyOutput(opts.OutputPath)
	if err != nil {
		return 0, models.NewError(models.ErrorKindConcat, "concatenate", err)
	}
	return size, nil
}
