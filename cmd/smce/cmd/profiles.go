package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"libsmce-go/profiles"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [FQBN]",
	Short: "List known board profiles, or print one as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		p, ok := profiles.Lookup(args[0])
		if !ok {
			return errors.Errorf("unknown board %q", args[0])
		}
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FQBN\tNAME\tPINS\tUARTS\tFRAMEBUFFERS")
	for _, name := range profiles.Names() {
		p, _ := profiles.Lookup(name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", p.FQBN, p.Name, len(p.Board.Pins), len(p.Board.UartChannels), len(p.Board.FrameBuffers))
	}
	return w.Flush()
}
