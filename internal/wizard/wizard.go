// Package wizard collects starter configuration interactively and
// renders it as a callscore.yaml.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ConfigSpec holds all fields collected during the interactive wizard.
type ConfigSpec struct {
	BackendKind    string
	Model          string
	APIKeyEnv      string
	CheckpointKind string
	CheckpointPath string
	Workers        int
}

const configYAMLTemplate = `backend:
  kind: {{ .BackendKind }}
{{- if ne .BackendKind "mock" }}
  params:
    model: {{ .Model }}
{{- if eq .BackendKind "openai" }}
    api_key_env: {{ .APIKeyEnv }}
{{- end }}
{{- end }}

run:
  workers: {{ .Workers }}
  task_timeout: 2m
  max_retries: 2
  retry_base: 500ms

checkpoint:
  kind: {{ .CheckpointKind }}
{{- if ne .CheckpointKind "memory" }}
  path: {{ .CheckpointPath }}
{{- end }}
`

// RunConfigWizard runs an interactive huh form to collect the starter
// configuration.
func RunConfigWizard(in io.Reader, out io.Writer) (*ConfigSpec, error) {
	var (
		backendKind    = "openai"
		model          string
		apiKeyEnv      = "OPENAI_API_KEY"
		checkpointKind = "sqlite"
		checkpointPath = "callscore.db"
		workersRaw     = "0"
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Evaluation backend").
				Options(
					huh.NewOption("openai", "openai"),
					huh.NewOption("copilot", "copilot"),
					huh.NewOption("mock", "mock"),
				).
				Value(&backendKind),
			huh.NewInput().
				Title("Model").
				Description("Model id the backend should use (ignored for mock)").
				Placeholder("gpt-4o-mini").
				Value(&model),
			huh.NewInput().
				Title("API key environment variable").
				Description("Environment variable holding the OpenAI API key").
				Value(&apiKeyEnv),
			huh.NewSelect[string]().
				Title("Checkpoint store").
				Options(
					huh.NewOption("sqlite", "sqlite"),
					huh.NewOption("file", "file"),
					huh.NewOption("memory", "memory"),
				).
				Value(&checkpointKind),
			huh.NewInput().
				Title("Checkpoint path").
				Description("Database file (sqlite) or directory (file)").
				Value(&checkpointPath),
			huh.NewInput().
				Title("Worker limit").
				Description("Max concurrent backend calls, 0 for fully parallel").
				Value(&workersRaw).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative integer")
					}
					return nil
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	workers, _ := strconv.Atoi(strings.TrimSpace(workersRaw))
	spec := &ConfigSpec{
		BackendKind:    backendKind,
		Model:          strings.TrimSpace(model),
		APIKeyEnv:      strings.TrimSpace(apiKeyEnv),
		CheckpointKind: checkpointKind,
		CheckpointPath: strings.TrimSpace(checkpointPath),
		Workers:        workers,
	}
	if spec.BackendKind != "mock" && spec.Model == "" {
		return nil, fmt.Errorf("model is required for the %s backend", spec.BackendKind)
	}
	if spec.CheckpointKind != "memory" && spec.CheckpointPath == "" {
		return nil, fmt.Errorf("checkpoint path is required for the %s store", spec.CheckpointKind)
	}

	return spec, nil
}

// GenerateConfigYAML renders a callscore.yaml from the given spec.
func GenerateConfigYAML(spec *ConfigSpec) (string, error) {
	tmpl, err := template.New("config").Parse(configYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
