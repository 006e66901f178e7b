package translate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPythonPath is the interpreter used for local workers.
	DefaultPythonPath = "python3"
	// DefaultWorkerScript is the worker entry point shipped in the container image.
	DefaultWorkerScript = "/app/scripts/translate_worker.py"
)

// workerRequest is one line sent to a worker.
type workerRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Mode       string `json:"mode,omitempty"`
}

// workerResponse is one line read back from a worker. The first line a
// stdio worker writes is {"ready": true} once the model is loaded.
type workerResponse struct {
	Ready          bool   `json:"ready,omitempty"`
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SubprocessTranslator hosts the model in one worker process and talks
// JSON lines over its stdin/stdout. Requests are serialized.
type SubprocessTranslator struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	exited chan struct{}

	mu     sync.Mutex
	closed bool
	logger *logrus.Logger
}

// NewSubprocessTranslator starts the worker and waits until it reports the
// model as loaded.
func NewSubprocessTranslator(ctx context.Context, pythonPath, scriptPath, model string, logger *logrus.Logger) (*SubprocessTranslator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if pythonPath == "" {
		pythonPath = DefaultPythonPath
	}
	if scriptPath == "" {
		scriptPath = DefaultWorkerScript
	}

	args := []string{scriptPath, "--stdio"}
	if model != "" {
		args = append(args, "--model", model)
	}
	cmd := exec.Command(pythonPath, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	st := &SubprocessTranslator{
		cmd:    cmd,
		stdin:  stdin,
		stdout: scanner,
		exited: make(chan struct{}),
		logger: logger,
	}
	go func() {
		err := cmd.Wait()
		logger.WithError(err).Debug("Worker process exited")
		close(st.exited)
	}()

	ready := make(chan error, 1)
	go func() {
		resp, err := st.readResponse()
		if err == nil && !resp.Ready {
			err = fmt.Errorf("unexpected handshake from worker: %+v", resp)
		}
		ready <- err
	}()

	select {
	case err := <-ready:
		if err != nil {
			st.kill()
			return nil, err
		}
	case <-ctx.Done():
		st.kill()
		return nil, fmt.Errorf("waiting for worker to load model: %w", ctx.Err())
	}

	logger.WithFields(logrus.Fields{
		"pid":    cmd.Process.Pid,
		"script": scriptPath,
		"model":  model,
	}).Info("Local translation worker started")
	return st, nil
}

func (st *SubprocessTranslator) readResponse() (workerResponse, error) {
	var resp workerResponse
	if !st.stdout.Scan() {
		if err := st.stdout.Err(); err != nil {
			return resp, fmt.Errorf("failed to read response: %w", err)
		}
		return resp, fmt.Errorf("%w: worker closed its output", ErrUnavailable)
	}
	if err := json.Unmarshal(st.stdout.Bytes(), &resp); err != nil {
		return resp, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp, nil
}

// Translate sends one request and waits for its response. If ctx ends first
// the exchange still completes in the background so the next request reads
// its own response.
func (st *SubprocessTranslator) Translate(ctx context.Context, text, sourceLang, targetLang, mode string) (string, error) {
	line, err := json.Marshal(workerRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Mode:       mode,
	})
	if err != nil {
		return "", engineErr(EngineLocal, "translate", fmt.Errorf("failed to marshal request: %w", err))
	}

	type result struct {
		resp workerResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.closed {
			done <- result{err: fmt.Errorf("%w: worker closed", ErrUnavailable)}
			return
		}
		if _, err := st.stdin.Write(append(line, '\n')); err != nil {
			done <- result{err: fmt.Errorf("%w: failed to write to worker: %v", ErrUnavailable, err)}
			return
		}
		resp, err := st.readResponse()
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", engineErr(EngineLocal, "translate", r.err)
		}
		if !r.resp.Success {
			msg := r.resp.Error
			if msg == "" {
				msg = "unknown error"
			}
			return "", engineErr(EngineLocal, "translate", fmt.Errorf("translation failed: %s", msg))
		}
		return r.resp.TranslatedText, nil
	case <-ctx.Done():
		return "", engineErr(EngineLocal, "translate", ctx.Err())
	}
}

// CheckHealth reports whether the worker process is still running.
func (st *SubprocessTranslator) CheckHealth(ctx context.Context) error {
	select {
	case <-st.exited:
		return engineErr(EngineLocal, "health", fmt.Errorf("%w: worker exited", ErrUnavailable))
	default:
		return nil
	}
}

// SupportedLanguages returns supported language codes.
func (st *SubprocessTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return copyLanguages(), nil
}

// Close stops the worker process.
func (st *SubprocessTranslator) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}
	st.closed = true
	st.kill()
	return nil
}

func (st *SubprocessTranslator) kill() {
	_ = st.stdin.Close()
	select {
	case <-st.exited:
		return
	default:
	}
	if st.cmd.Process != nil {
		if err := st.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			st.logger.WithError(err).Warn("Failed to kill worker process")
		}
	}
	<-st.exited
}
