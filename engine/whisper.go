package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// whisperConfidence approximates the tiny model's accuracy; the helper
// script does not report a per-run score.
const whisperConfidence = 0.90

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec. CommandContext kills the
// process when the context expires, so a timed-out run never leaks.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// whisperOutput is the JSON contract of the helper script's stdout.
type whisperOutput struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// WhisperEngine runs a local Whisper model through a python helper that
// prints JSON on stdout and progress on stderr.
type WhisperEngine struct {
	python   string
	script   string
	model    string
	language string
	runner   commandRunner
	stat     func(string) (os.FileInfo, error)
}

// NewWhisperEngine constructs the subprocess backend.
func NewWhisperEngine(s Settings) (Engine, error) {
	e := &WhisperEngine{
		python:   s.Python,
		script:   s.Script,
		model:    s.Model,
		language: s.Language,
		runner:   &execRunner{},
		stat:     os.Stat,
	}
	if e.python == "" {
		e.python = "python3"
	}
	if e.model == "" {
		e.model = "tiny"
	}
	if e.script == "" {
		return nil, &EngineError{Backend: "whisper", Detail: "helper script path is required"}
	}
	return e, nil
}

func init() {
	Register("whisper", NewWhisperEngine)
}

// Transcribe invokes the helper once and parses its JSON output.
func (e *WhisperEngine) Transcribe(ctx context.Context, audioRef string) (Result, error) {
	if _, err := e.stat(audioRef); err != nil {
		return Result{}, &EngineError{Backend: "whisper", Detail: "audio file not found: " + audioRef, Err: err}
	}

	args := []string{e.script, audioRef, e.model}
	if e.language != "" {
		args = append(args, e.language)
	}

	res, err := e.runner.Run(ctx, e.python, args...)
	if err != nil {
		detail := "transcription process failed"
		if ctx.Err() != nil {
			detail = "transcription timed out"
		}
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			detail += ": " + lastLine(msg)
		}
		return Result{}, &EngineError{Backend: "whisper", Detail: detail, Err: err}
	}

	var out whisperOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Result{}, &EngineError{Backend: "whisper", Detail: "invalid helper output", Err: err}
	}

	language := out.Language
	if language == "" {
		language = e.language
	}

	return Result{
		Text:       strings.TrimSpace(out.Text),
		Language:   language,
		Duration:   time.Duration(out.Duration * float64(time.Second)),
		Confidence: whisperConfidence,
	}, nil
}

// lastLine returns the final non-empty line of multi-line process output.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
