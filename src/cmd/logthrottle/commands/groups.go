// FILE: logthrottle/src/cmd/logthrottle/commands/groups.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"logthrottle/src/internal/config"
	"logthrottle/src/internal/group"
)

// GroupsCommand resolves the configured group rules and prints the
// effective limit of every group without tailing anything
type GroupsCommand struct {
	output io.Writer
	errOut io.Writer
}

func NewGroupsCommand() *GroupsCommand {
	return &GroupsCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
}

func (gc *GroupsCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("groups", flag.ContinueOnError)
	cmd.SetOutput(gc.errOut)

	var (
		configFile     = cmd.String("c", "", "Config file path")
		configFileLong = cmd.String("config", "", "Config file path")
	)

	if err := cmd.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(coalesceString(*configFile, *configFileLong), cmd.Args())
	if err != nil {
		return err
	}

	return gc.print(cfg.Group)
}

func (gc *GroupsCommand) print(cfg *config.GroupConfig) error {
	tw := tabwriter.NewWriter(gc.output, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MODE\t%s\n", cfg.Mode)
	fmt.Fprintf(tw, "RATE WINDOW\t%s\n\n", cfg.RateWindow())
	fmt.Fprintln(tw, "GROUP\tLIMIT")

	switch cfg.Mode {
	case config.GroupModeMetric:
		fmt.Fprintf(tw, "ranked (top %d)\t%s\n", cfg.Metric.RankSize, formatLimit(int(cfg.Metric.Limit)))
		fmt.Fprintf(tw, "default\t%s\n", formatLimit(int(cfg.Metric.DefaultLimit)))
	default:
		registry, err := group.Build(cfg.GroupRules(), cfg.RateWindow())
		if err != nil {
			return fmt.Errorf("resolve group rules: %w", err)
		}
		for _, s := range registry.States() {
			fmt.Fprintf(tw, "%s\t%s\n", s.Name(), formatLimit(s.Limit()))
		}
	}

	return tw.Flush()
}

func (gc *GroupsCommand) Description() string {
	return "Print the resolved group limits"
}

func (gc *GroupsCommand) Help() string {
	return `Groups Command - Resolve group rules and print effective limits

Usage:
  logthrottle groups [-c <config>] [--section.key=value ...]

Limits are lines per rate window. Catch-all groups show what remains after
the limits carved out of them by more specific rules.
`
}

func formatLimit(limit int) string {
	if limit < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

// coalesceString returns the first non-empty string from a list of arguments.
func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
