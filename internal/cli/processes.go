package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/ir"
)

// ProcessInfo summarizes one registered definition.
type ProcessInfo struct {
	Name        string         `json:"name"`
	Alias       string         `json:"alias"`
	Version     string         `json:"version"`
	Kind        ir.ProcessKind `json:"kind"`
	Initial     ir.StateID     `json:"initial"`
	States      int            `json:"states"`
	Transitions int            `json:"transitions"`
	Hash        string         `json:"hash"`
}

// NewProcessesCommand creates the processes command.
func NewProcessesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "processes",
		Short: "List registered process definitions",
		Long: `List the process definitions in the registry, newest version first.

Without --processes the built-in definitions are listed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcesses(rootOpts, cmd)
		},
	}
}

func runProcesses(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	reg, err := opts.registry()
	if err != nil {
		return fail(formatter, ErrCodeRegistry, "loading processes", err)
	}

	infos := []ProcessInfo{}
	for _, d := range reg.Definitions() {
		infos = append(infos, ProcessInfo{
			Name:        d.Name(),
			Alias:       d.Alias(),
			Version:     d.Version().String(),
			Kind:        d.Kind(),
			Initial:     d.InitialState(),
			States:      len(d.States()),
			Transitions: len(d.Transitions()),
			Hash:        d.Hash(),
		})
	}

	return formatter.Render(infos, func(w io.Writer) {
		for _, p := range infos {
			fmt.Fprintf(w, "%-22s %-32s %-8s %-12s %2d states  %2d transitions\n",
				p.Name, p.Alias, p.Version, p.Kind, p.States, p.Transitions)
		}
	})
}
