// Package exec is the gateway to the external code-execution engine. The
// engine contract is Piston-shaped: it takes {language, version, files} and
// answers with the combined stdout/stderr text under run.output.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/mayankgaur0405/Dev2Gether/internal/app"
)

type Engine struct {
	url string
	hc  *http.Client
	log *slog.Logger
}

// New builds an engine client from config. The HTTP timeout bounds a whole
// run; there is no cancellation primitive beyond it.
func New(cfg app.Config, logger *slog.Logger) *Engine {
	return &Engine{
		url: cfg.ExecURL,
		hc:  &http.Client{Timeout: cfg.ExecTimeout},
		log: logger,
	}
}

type runRequest struct {
	Language string    `json:"language"`
	Version  string    `json:"version"`
	Files    []runFile `json:"files"`
}

type runFile struct {
	Content string `json:"content"`
}

type runResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Output string `json:"output"`
		Code   int    `json:"code"`
	} `json:"run"`
	Message string `json:"message"`
}

// Execute runs code on the engine and returns its combined output text.
// Version "*" asks for the latest available runtime for the language.
func (e *Engine) Execute(ctx context.Context, code, language, version string) (string, error) {
	body, err := json.Marshal(runRequest{
		Language: language,
		Version:  version,
		Files:    []runFile{{Content: code}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	e.log.Debug("exec.request", "language", language, "version", version, "bytes", len(code))

	resp, err := e.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("engine response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Message != "" {
			return "", fmt.Errorf("engine: %s", out.Message)
		}
		return "", fmt.Errorf("engine: status %d", resp.StatusCode)
	}

	e.log.Debug("exec.result", "language", language, "exit", out.Run.Code)
	return out.Run.Output, nil
}
