// FILE: logthrottle/src/cmd/logthrottle/commands/help.go
package commands

import (
	"fmt"
	"sort"
	"strings"
)

// generalHelpTemplate is the default help message shown when no specific command is requested.
const generalHelpTemplate = `logthrottle: tail a log directory with per-group line limits.

Usage:
  logthrottle [command] [options]
  logthrottle [options] [--section.key=value ...]

Commands:
%s

Application Options:
  -c, --config <path>      Path to configuration file (default: ~/.config/logthrottle.toml)
  -h, --help               Display this help message and exit
  -v, --version            Display version information and exit
  -q, --quiet              Suppress diagnostic console output

Configuration overrides:
  --tail.directory=<dir>          Directory to tail
  --tail.pattern=<glob>           File name glob (default: *.log)
  --group.mode=metadata|metric    Grouping mode
  --group.rate_period_ms=<ms>     Rate window for group limits
  --status.enabled=true           Serve the JSON status endpoint
  --export_config=<path>          Write the effective configuration and exit

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - CLI overrides take the --section.key=value form
  - Environment variables use the LOGTHROTTLE_ prefix (LOGTHROTTLE_TAIL_DIRECTORY)
  - TOML configuration file is the primary method

Examples:
  # Tail kubelet container logs with the default grouping
  logthrottle --tail.directory=/var/log/containers

  # Show the resolved group limits of a config file
  logthrottle groups -c /etc/logthrottle.toml

For detailed configuration options, please refer to the documentation.
`

// HelpCommand handles the display of general or command-specific help messages.
type HelpCommand struct {
	router *CommandRouter
}

func NewHelpCommand(router *CommandRouter) *HelpCommand {
	return &HelpCommand{router: router}
}

// Execute displays the appropriate help message based on the provided arguments.
func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Print(handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf(generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  logthrottle help              Show general help
  logthrottle help <command>    Show help for a specific command
`
}

// formatCommandList creates a formatted and aligned list of all available commands.
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	maxLen := 0
	for name := range commands {
		names = append(names, name)
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		handler := commands[name]
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, handler.Description()))
	}

	return strings.Join(lines, "\n")
}
