package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Dangerous command patterns that are always blocked, even when a command
// whitelist is not configured.
var dangerousPatterns = []string{
	"rm ", "rm -", "rmdir", "unlink",
	"format", "mkfs", "dd ",
	"sudo rm", "sudo format", "sudo mkfs",
	"chmod 777", "chmod 000",
	"curl | sh", "curl | bash", "wget | sh", "wget | bash",
	"> /dev/sd", "of=/dev/sd", "of=/dev/hd",
	"rm -rf /", "rm -rf ~", "rm -rf *",
	"mkfs.", "format ", "fdisk ",
	"dd if=", "dd of=",
}

// isDangerousCommand checks if a command contains dangerous patterns
func isDangerousCommand(command string) bool {
	cmdLower := strings.ToLower(command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(cmdLower, strings.ToLower(pattern)) {
			return true
		}
	}

	// Explicitly block curl/wget pipelines that execute shells, even with args between.
	if (strings.Contains(cmdLower, "curl") || strings.Contains(cmdLower, "wget")) &&
		strings.Contains(cmdLower, "|") &&
		(strings.Contains(cmdLower, "| sh") || strings.Contains(cmdLower, "| bash")) {
		return true
	}

	// Block commands that try to write outside the workspace
	if strings.Contains(cmdLower, "> ") {
		parts := strings.Split(cmdLower, ">")
		if len(parts) > 1 {
			target := strings.TrimSpace(parts[1])
			// Block redirects to absolute paths outside typical temp dirs
			if filepath.IsAbs(target) && !strings.HasPrefix(target, "/tmp/") && !strings.HasPrefix(target, "/var/tmp/") {
				return true
			}
		}
	}

	return false
}

// isWhitelisted checks the command's binary against the allowed list.
// An empty list allows any command that is not dangerous.
func isWhitelisted(command string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	binary := filepath.Base(fields[0])
	for _, a := range allowed {
		if binary == a {
			return true
		}
	}
	return false
}

// RegisterShellTools registers the shell command execution tool.
// allowedCommands optionally restricts execution to the named binaries.
func (r *Registry) RegisterShellTools(workspacePath string, allowedCommands []string) {
	r.logger.Info().Strs("allowed", allowedCommands).Msg("Registering shell tools in registry")

	r.Register("shell_execute", func(ctx context.Context, agentID string, args json.RawMessage) (any, error) {
		var payload struct {
			Command    string   `json:"command"`
			Args       []string `json:"args"`
			Timeout    int      `json:"timeout"` // in seconds
			WorkingDir string   `json:"working_dir"`
			Stdin      string   `json:"stdin"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		fullCommand := payload.Command
		if len(payload.Args) > 0 {
			fullCommand += " " + strings.Join(payload.Args, " ")
		}

		if !isWhitelisted(payload.Command, allowedCommands) {
			r.logger.Warn().Str("agentID", agentID).Str("command", fullCommand).Msg("Blocked non-whitelisted command from agent")
			return nil, fmt.Errorf("command blocked: %q is not in the allowed command list", payload.Command)
		}

		if isDangerousCommand(fullCommand) {
			r.logger.Warn().Str("agentID", agentID).Str("command", fullCommand).Msg("Blocked dangerous command from agent")
			return nil, fmt.Errorf("command blocked: this command appears to be dangerous and could damage the system or delete files. Please use safer alternatives and avoid commands that modify or delete files, format disks, or execute arbitrary code from the internet")
		}

		// Set default timeout
		timeoutSeconds := 30
		if payload.Timeout > 0 {
			timeoutSeconds = payload.Timeout
		}
		if timeoutSeconds > 300 {
			timeoutSeconds = 300 // Cap at 5 minutes
		}

		// Determine working directory
		workDir := workspacePath
		if payload.WorkingDir != "" {
			validWorkDir, err := validateWorkspacePath(workspacePath, payload.WorkingDir)
			if err != nil {
				return nil, fmt.Errorf("invalid working directory: %w", err)
			}
			workDir = validWorkDir
		}

		cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()

		// Build command
		var cmd *exec.Cmd
		if len(payload.Args) > 0 {
			cmd = exec.CommandContext(cmdCtx, payload.Command, payload.Args...) //#nosec G204 -- intentional command execution
		} else {
			// If no args, try to split the command string (for shell commands)
			parts := strings.Fields(payload.Command)
			if len(parts) > 1 {
				cmd = exec.CommandContext(cmdCtx, parts[0], parts[1:]...) //#nosec G204 -- intentional command execution
			} else {
				cmd = exec.CommandContext(cmdCtx, payload.Command) //#nosec G204 -- intentional command execution
			}
		}

		cmd.Dir = workDir

		if payload.Stdin != "" {
			cmd.Stdin = strings.NewReader(payload.Stdin)
		}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start command: %w", err)
		}

		stdoutBytes := make([]byte, 0)
		stderrBytes := make([]byte, 0)

		// Read stdout and stderr concurrently
		stdoutDone := make(chan error, 1)
		stderrDone := make(chan error, 1)

		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := stdout.Read(buf)
				if n > 0 {
					stdoutBytes = append(stdoutBytes, buf[:n]...)
					if len(stdoutBytes) > 1024*1024 { // 1MB limit
						stdoutDone <- fmt.Errorf("stdout exceeded 1MB limit")
						return
					}
				}
				if err != nil {
					stdoutDone <- err
					return
				}
			}
		}()

		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := stderr.Read(buf)
				if n > 0 {
					stderrBytes = append(stderrBytes, buf[:n]...)
					if len(stderrBytes) > 1024*1024 { // 1MB limit
						stderrDone <- fmt.Errorf("stderr exceeded 1MB limit")
						return
					}
				}
				if err != nil {
					stderrDone <- err
					return
				}
			}
		}()

		cmdDone := make(chan error, 1)
		go func() {
			cmdDone <- cmd.Wait()
		}()

		select {
		case <-cmdCtx.Done():
			_ = cmd.Process.Kill() // Ignore error if process already exited
			return nil, fmt.Errorf("command timed out after %d seconds", timeoutSeconds)
		case err := <-cmdDone:
			<-stdoutDone
			<-stderrDone

			exitCode := 0
			if err != nil {
				if exitError, ok := err.(*exec.ExitError); ok {
					exitCode = exitError.ExitCode()
				} else {
					return nil, fmt.Errorf("command failed: %w", err)
				}
			}

			return map[string]any{
				"command":   fullCommand,
				"exit_code": exitCode,
				"stdout":    string(stdoutBytes),
				"stderr":    string(stderrBytes),
				"success":   exitCode == 0,
			}, nil
		}
	})
}
