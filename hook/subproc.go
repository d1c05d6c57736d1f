package hook

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

func init() {
	Register("subproc", NewSubprocHook)
}

type SubprocHook struct {
	command string
	args    []string
}

func NewSubprocHook(conf string) (SubprocHook, error) {
	var h SubprocHook
	parts, err := shlex.Split(conf)
	if err != nil {
		return SubprocHook{}, err
	}
	if len(parts) == 0 {
		return SubprocHook{}, fmt.Errorf("no command provided")
	}
	h.command = parts[0]
	h.args = parts[1:]
	return h, nil
}

const (
	markerFiles = "<files>"
)

func (h SubprocHook) ProcessBook(ctx context.Context, paths []string) error {
	var args []string
	for _, arg := range h.args {
		switch arg {
		case markerFiles:
			args = append(args, paths...)
		default:
			args = append(args, arg)
		}
	}

	cmd := exec.CommandContext(ctx, h.command, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run cmd: %w", err)
	}
	return nil
}

func (h SubprocHook) String() string {
	args := fmt.Sprintf("%q", append([]string{h.command}, h.args...))
	args = strings.TrimPrefix(args, "[")
	args = strings.TrimSuffix(args, "]")
	return fmt.Sprintf("subproc (%s)", args)
}
