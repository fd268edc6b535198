// Package shell provides an executor running terminal commands, locally or
// over SSH with credentials resolved through scy secrets.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grovekit/grove/service/executor"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"github.com/viant/structology/conv"
	"golang.org/x/crypto/ssh"
)

// Name is the registry name of the shell executor.
const Name = "shell"

// Input is the typed request payload of the shell executor.
type Input struct {
	// Host is the target URL; empty or a localhost URL runs commands locally.
	Host string `json:"host,omitempty"`

	// Credentials names the scy secret resource providing SSH credentials.
	Credentials string `json:"credentials,omitempty"`

	Directory    string            `json:"directory,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Commands     []string          `json:"commands"`
	TimeoutMs    int               `json:"timeoutMs,omitempty"`
	AbortOnError *bool             `json:"abortOnError,omitempty"`
}

// Executor runs terminal commands through gosh sessions. Sessions are cached
// per host so consecutive iterations of a loop reuse the same shell.
type Executor struct {
	converter *conv.Converter
	mux       sync.Mutex
	sessions  map[string]*gosh.Service
}

// New creates a shell executor.
func New() *Executor {
	return &Executor{
		converter: executor.NewConverter(),
		sessions:  make(map[string]*gosh.Service),
	}
}

// Name returns the registry name.
func (e *Executor) Name() string { return Name }

// Execute runs the requested commands and returns a payload with combined
// stdout, stderr and the last exit status.
func (e *Executor) Execute(ctx context.Context, request *executor.Request) (map[string]interface{}, error) {
	input := &Input{}
	if err := e.converter.Convert(request.Input, input); err != nil {
		return nil, fmt.Errorf("invalid shell input: %w", err)
	}
	if len(input.Commands) == 0 {
		return nil, fmt.Errorf("no commands to run")
	}

	session, err := e.session(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if input.Directory != "" {
		if _, _, err = session.Run(ctx, fmt.Sprintf("cd %s", input.Directory)); err != nil {
			return nil, fmt.Errorf("failed to change directory: %w", err)
		}
	}

	abortOnError := true
	if input.AbortOnError != nil {
		abortOnError = *input.AbortOnError
	}
	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = time.Minute
	}

	var stdout, stderr strings.Builder
	var lastStatus int
	for _, command := range input.Commands {
		out, status, runErr := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
		lastStatus = status
		if status == 0 && runErr == nil {
			if out != "" {
				stdout.WriteString(out)
				stdout.WriteString("\n")
			}
			continue
		}
		if out == "" && runErr != nil {
			out = runErr.Error()
		}
		if out != "" {
			stderr.WriteString(out)
			stderr.WriteString("\n")
		}
		if abortOnError {
			break
		}
	}

	return map[string]interface{}{
		"stdout": strings.TrimSpace(stdout.String()),
		"stderr": strings.TrimSpace(stderr.String()),
		"status": lastStatus,
	}, nil
}

// session retrieves a cached gosh session for the input's host or opens one.
func (e *Executor) session(ctx context.Context, input *Input) (*gosh.Service, error) {
	host := input.Host
	if host == "" {
		host = "ssh://localhost"
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	if session, ok := e.sessions[host]; ok {
		return session, nil
	}

	var envOptions []runner.Option
	if len(input.Env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(input.Env))
	}

	var session *gosh.Service
	var err error
	if url.Host(host) == "localhost" {
		session, err = gosh.New(ctx, local.New(envOptions...))
	} else {
		var config *ssh.ClientConfig
		if config, err = e.sshConfig(ctx, input.Credentials); err != nil {
			return nil, fmt.Errorf("failed to get SSH config: %w", err)
		}
		sshHost := url.Host(host)
		if !strings.Contains(sshHost, ":") {
			sshHost += ":22"
		}
		session, err = gosh.New(ctx, rssh.New(sshHost, config, envOptions...))
	}
	if err != nil {
		return nil, err
	}
	e.sessions[host] = session
	return session, nil
}

func (e *Executor) sshConfig(ctx context.Context, credentials string) (*ssh.ClientConfig, error) {
	if credentials == "" {
		credentials = "localhost"
	}
	secrets := secret.New()
	generic, err := secrets.GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// Close releases all cached sessions.
func (e *Executor) Close() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	var errs []string
	for host, session := range e.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", host, err))
		}
	}
	e.sessions = make(map[string]*gosh.Service)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}
