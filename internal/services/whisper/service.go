package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// UVXCommand launches WhisperX through uv's tool runner, avoiding a
	// system-wide Python install.
	UVXCommand   = "uvx"
	DefaultModel = "large-v3-turbo"

	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"

	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
)

// Config captures runtime settings for transcription runs.
type Config struct {
	Model       string
	CUDAEnabled bool
	// Language is the expected spoken language (ISO 639-1). Empty lets
	// WhisperX auto-detect.
	Language string
}

// Service transcribes downloaded audio files with WhisperX.
type Service struct {
	cfg    Config
	runner func(ctx context.Context, name string, args ...string) error
}

func NewService(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner replaces the process launcher, letting tests intercept
// the uvx invocation.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.runner = runner
}

// Result holds a finished transcription.
type Result struct {
	Text     string
	JSONPath string
}

// TranscribeFile runs WhisperX on source and returns the joined transcript
// text. outputDir defaults to the source file's directory.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) (Result, error) {
	var result Result
	if source == "" {
		return result, fmt.Errorf("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir)...); err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, base+".json")

	segments, err := loadSegments(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("transcribe: load output: %w", err)
	}
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	result.Text = strings.Join(parts, " ")
	return result, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	var args []string
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	model := s.cfg.Model
	if model == "" {
		model = DefaultModel
	}
	args = append(args,
		"whisperx", source,
		"--model", model,
		"--batch_size", "4",
		"--output_dir", outputDir,
		"--output_format", "json",
	)
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)

	// Torch 2.6 made torch.load default to weights_only=true, which breaks
	// WhisperX checkpoint loading.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Segment is one timed span of the WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

func loadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}
