// Package darkroom runs darktable-cli to develop raw images into JPEGs.
package darkroom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/wb-go/wbf/zlog"

	"github.com/faxe1008/dstylehub/internal/model"
)

const (
	// DefaultBinary is the darktable command-line developer.
	DefaultBinary = "darktable-cli"

	// OutputExt is appended by darktable-cli to the output base.
	OutputExt = ".jpg"

	qualityConfKey = "plugins/imageio/format/jpeg/quality"
)

// ErrDevelopmentFailed matches every DevelopmentFailedError.
var ErrDevelopmentFailed = errors.New("development failed")

// DevelopmentFailedError reports a non-zero exit of the development tool.
type DevelopmentFailedError struct {
	Job      model.Job
	ExitCode int
	Err      error
}

func (e *DevelopmentFailedError) Error() string {
	if e.Job.Style != nil {
		return fmt.Sprintf("develop %s with style %q: exit status %d",
			filepath.Base(e.Job.Source), e.Job.Style.Name, e.ExitCode)
	}
	return fmt.Sprintf("develop %s: exit status %d", filepath.Base(e.Job.Source), e.ExitCode)
}

func (e *DevelopmentFailedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDevelopmentFailed) hold.
func (e *DevelopmentFailedError) Is(target error) bool {
	return target == ErrDevelopmentFailed
}

// Invoker develops jobs by spawning one darktable-cli process per job.
type Invoker struct {
	binary string
}

// New creates an Invoker running binary. An empty binary selects
// DefaultBinary from PATH.
func New(binary string) *Invoker {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Invoker{binary: binary}
}

// OutputPath returns the file darktable-cli produces for an output base.
func OutputPath(outputBase string) string {
	return outputBase + OutputExt
}

// buildArgs constructs the darktable-cli arguments for a job.
// Paths must already be absolute.
func buildArgs(source, outputBase, stylePath string, width, quality int) []string {
	args := []string{"--import", source, outputBase}
	if stylePath != "" {
		args = append(args, "--style-preset-file", stylePath)
	}
	args = append(args,
		"--out-ext", "jpeg",
		"--width", strconv.Itoa(width),
		"--core",
		"--conf", qualityConfKey+"="+strconv.Itoa(quality),
	)
	return args
}

func validate(job model.Job) error {
	if job.Quality < 0 || job.Quality > 100 {
		return fmt.Errorf("invalid jpeg quality %d: must be within 0-100", job.Quality)
	}
	if job.Width <= 0 {
		return fmt.Errorf("invalid width %d: must be positive", job.Width)
	}
	if job.OutputBase == "" {
		return errors.New("empty output base")
	}
	return nil
}

// Develop runs darktable-cli for job and returns the path of the produced
// JPEG. The output directory is created if needed. A non-zero exit is
// returned as *DevelopmentFailedError; the job is never retried.
func (i *Invoker) Develop(ctx context.Context, job model.Job) (string, error) {
	if err := validate(job); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputBase), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	source, err := filepath.Abs(job.Source)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	outputBase, err := filepath.Abs(job.OutputBase)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	var stylePath string
	if job.Style != nil {
		if stylePath, err = filepath.Abs(job.Style.Path); err != nil {
			return "", fmt.Errorf("resolve style path: %w", err)
		}
	}

	args := buildArgs(source, outputBase, stylePath, job.Width, job.Quality)

	// Stdout and Stderr stay nil so the tool's output is discarded.
	cmd := exec.CommandContext(ctx, i.binary, args...)

	zlog.Logger.Debug().
		Str("binary", i.binary).
		Strs("args", args).
		Msg("running development tool")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &DevelopmentFailedError{Job: job, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return "", fmt.Errorf("failed to run %s: %w", i.binary, err)
	}

	return OutputPath(job.OutputBase), nil
}
