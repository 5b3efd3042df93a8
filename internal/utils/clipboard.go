package utils

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// clipboardCommand picks the platform clipboard writer
func clipboardCommand() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pbcopy"), nil
	case "linux":
		// wl-copy on Wayland, then the X11 tools
		for _, args := range [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		} {
			if _, err := exec.LookPath(args[0]); err == nil {
				return exec.Command(args[0], args[1:]...), nil
			}
		}
		return nil, fmt.Errorf("no clipboard utility found (install wl-clipboard, xclip or xsel)")
	case "windows":
		return exec.Command("clip"), nil
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

// CopyToClipboard copies text to the system clipboard
func CopyToClipboard(text string) error {
	cmd, err := clipboardCommand()
	if err != nil {
		return err
	}
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard copy failed: %w", err)
	}
	return nil
}
