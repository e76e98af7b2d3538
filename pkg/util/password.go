package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// PromptYesNo asks a yes/no question on stderr and reads a line from
// stdin. It is used by the admin CLI's -drain flag to ask for
// confirmation; it refuses to run non-interactively so a scripted
// invocation can never silently default to "yes".
func PromptYesNo(prompt string) (bool, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return false, fmt.Errorf("interactive prompting requires a terminal")
	}

	fmt.Fprint(os.Stderr, prompt+" (y/n): ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
