package ffmpeglib

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// PreviewDuration is how much of the source a preview encode covers.
const PreviewDuration = 10 * time.Second

// Format is the output container family.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

type Encoder struct {
	FFmpegPath  string // default "ffmpeg"
	FFprobePath string // default "ffprobe"
}

func New() *Encoder {
	return &Encoder{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Options are passed through unchanged from configuration to ffmpeg.
type Options struct {
	Preview     bool          // encode only PreviewDuration
	HighQuality bool          // keep up to 5K width at CRF 18 instead of 720p-ish at CRF 19
	H265        bool          // libx265 instead of libx264 (mp4 only)
	Format      Format        // default mp4
	Timeout     time.Duration // 0 = none

	Progress func(ProgressLine)
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatMP4
	}
	return o
}

// Extension returns the file extension, with dot, of the chosen container.
func (o Options) Extension() string {
	return "." + string(o.withDefaults().Format)
}

type RunResult struct {
	Args      []string
	Stdout    string
	Stderr    string
	ExitError error
}

// EnsureAvailable checks that ffmpeg and ffprobe can be run at all.
func (e *Encoder) EnsureAvailable(ctx context.Context) error {
	for _, bin := range []string{e.FFmpegPath, e.FFprobePath} {
		path, err := exec.LookPath(bin)
		if err != nil {
			return &EnvironmentError{Tool: bin, Err: err}
		}
		cmd := exec.CommandContext(ctx, path, "-version")
		if err := cmd.Run(); err != nil {
			return &EnvironmentError{Tool: bin, Err: err}
		}
	}
	return nil
}

// Encode transcodes inPath into outPath. outPath is written directly; the
// caller owns staging and publishing. Any failure is an *EncodingError.
func (e *Encoder) Encode(ctx context.Context, inPath, outPath string, opt Options) (*RunResult, error) {
	opt = opt.withDefaults()

	runCtx := ctx
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}

	args := BuildArgs(inPath, outPath, opt)
	res, err := runCmdStreaming(runCtx, e.FFmpegPath, args, opt.Progress)
	if err == nil {
		return res, nil
	}

	encErr := &EncodingError{Err: err}
	if res != nil {
		encErr.Args = res.Args
		encErr.Stdout = res.Stdout
		encErr.Stderr = res.Stderr
	}
	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		encErr.TimedOut = true
		encErr.Timeout = opt.Timeout
	}
	return res, encErr
}

// BuildArgs returns the ffmpeg argument list for one encode.
func BuildArgs(inPath, outPath string, opt Options) []string {
	opt = opt.withDefaults()

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inPath,
	}
	if opt.Preview {
		args = append(args, "-t", strconv.Itoa(int(PreviewDuration/time.Second)))
	}

	scale := "scale='min(1280,iw)':'-2'"
	if opt.HighQuality {
		scale = "scale='min(5120,iw)':'-2'"
	}
	args = append(args, "-vf", scale)

	switch opt.Format {
	case FormatWebM:
		crf := "33"
		if opt.HighQuality {
			crf = "24"
		}
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-crf", crf,
			"-b:v", "0",
			"-row-mt", "1",
			"-c:a", "libopus",
		)
	default:
		vcodec := "libx264"
		if opt.H265 {
			vcodec = "libx265"
		}
		args = append(args,
			"-c:v", vcodec,
			"-preset", "fast",
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			"-max_muxing_queue_size", "2048",
		)
		if opt.HighQuality {
			args = append(args, "-crf", "18", "-maxrate", "50M", "-bufsize", "25M")
		} else {
			args = append(args, "-crf", "19", "-maxrate", "6M", "-bufsize", "12M")
		}
		if opt.H265 {
			args = append(args, "-tag:v", "hvc1")
		}
		args = append(args, "-c:a", "aac")
	}

	// The staging name has no media extension, so the muxer must be explicit.
	args = append(args, "-f", string(opt.Format), outPath)
	return args
}

func runCmdStreaming(ctx context.Context, bin string, args []string, progress func(ProgressLine)) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	niced := configureCmd(cmd, bin, args)

	res := &RunResult{Args: append([]string{bin}, args...)}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return res, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return res, err
	}

	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("start %s: %w", bin, err)
	}
	if !niced {
		_ = lowerPriority(cmd.Process.Pid)
	}

	// ffmpeg writes progress to stderr, separating updates with '\r'.
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		_, _ = io.Copy(&stdoutBuf, stdoutPipe)
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		tee := io.TeeReader(stderrPipe, &stderrBuf)
		sc := bufio.NewScanner(tee)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)
		sc.Split(scanLinesOrCR)
		for sc.Scan() {
			if progress != nil {
				progress(ProgressLine{Raw: sc.Text()})
			}
		}
		_, _ = io.Copy(io.Discard, tee)
	}()

	<-done
	<-done

	waitErr := cmd.Wait()

	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()

	if waitErr != nil {
		res.ExitError = waitErr
		return res, fmt.Errorf("ffmpeg failed: %w", waitErr)
	}

	return res, nil
}

func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ---- ffprobe helpers ----

// DurationSeconds returns the container duration if available.
func (e *Encoder) DurationSeconds(ctx context.Context, inPath string) (float64, error) {
	out, err := e.ffprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		inPath,
	)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, errors.New("duration unavailable")
	}
	return strconv.ParseFloat(s, 64)
}

func (e *Encoder) ffprobe(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe error: %w: %s", err, stderr.String())
	}
	return string(out), nil
}
