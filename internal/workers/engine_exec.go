package workers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/voicekeep/voicekeep/internal/audio"
	"github.com/voicekeep/voicekeep/internal/logger"
)

// execEngine drives an external recognizer process (a whisper.cpp style
// CLI). Audio is piped to the child's stdin as a mono WAV stream; the child
// prints its full running hypothesis on stdout, one line superseding the
// previous, and exits after the final line.
//
// Keeping inference in a child process isolates its memory footprint and
// lets the model binary be swapped without rebuilding the application.
type execEngine struct {
	binPath   string
	modelPath string

	logger *logger.Logger
}

// NewExecEngine returns an [Engine] that shells out to binPath with the
// model at modelPath.
func NewExecEngine(binPath, modelPath string, log *logger.Logger) Engine {
	return &execEngine{binPath: binPath, modelPath: modelPath, logger: log}
}

// LoadModel implements [Engine]. The child loads the model per invocation,
// so "loading" here verifies the binary and the model file up front; that
// catches misconfiguration before any audio is recorded against it.
func (e *execEngine) LoadModel(ctx context.Context, progress func(percent int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	progress(0)

	resolved, err := exec.LookPath(e.binPath)
	if err != nil {
		return fmt.Errorf("recognizer binary %q not found: %w", e.binPath, err)
	}
	progress(50)

	if e.modelPath != "" {
		if _, err = os.Stat(e.modelPath); err != nil {
			return fmt.Errorf("recognizer model %q: %w", e.modelPath, err)
		}
	}
	progress(100)

	e.logger.Debug().Str("bin", resolved).Str("model", e.modelPath).Msg("recognizer available")
	return nil
}

// Transcribe implements [Engine].
func (e *execEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int, partial func(text string)) (string, error) {
	args := []string{"-f", "-"}
	if e.modelPath != "" {
		args = append(args, "-m", e.modelPath)
	}

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("recognizer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("recognizer stdout: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return "", fmt.Errorf("start recognizer: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		err := audio.EncodeWAV(stdin, samples, sampleRate, 1)
		writeErr <- err
	}()

	var last string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last = line
		partial(line)
	}

	waitErr := cmd.Wait()
	if err = <-writeErr; err != nil && waitErr == nil {
		waitErr = fmt.Errorf("stream audio to recognizer: %w", err)
	}
	if scanErr := scanner.Err(); scanErr != nil && waitErr == nil {
		waitErr = fmt.Errorf("read recognizer output: %w", scanErr)
	}
	if waitErr != nil {
		return "", fmt.Errorf("recognizer failed: %w", waitErr)
	}
	if last == "" {
		return "", fmt.Errorf("recognizer produced no transcript")
	}

	return last, nil
}
