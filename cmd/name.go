package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hcm/internal/nodename"
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Encode, decode and check repository node names",
	Long: `Helpers for repository node names.

Examples:
  hcm name encode 'a/b:c'              # a_x002f_b_x003a_c
  hcm name decode a_x002f_b            # a/b
  hcm name uri 'Café Menu'             # cafe-menu
  hcm name validate 'hst:root'         # exit status tells whether the name is valid
  hcm name copy 'News' --existing copy-of-news`,
}

var nameEncodeCmd = &cobra.Command{
	Use:   "encode <name>...",
	Short: "Escape characters that may not appear in a node name",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			fmt.Fprintln(cmd.OutOrStdout(), nodename.Encode(arg))
		}
	},
}

var nameDecodeCmd = &cobra.Command{
	Use:   "decode <name>...",
	Short: "Reverse name encoding",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			fmt.Fprintln(cmd.OutOrStdout(), nodename.Decode(arg))
		}
	},
}

var nameURICmd = &cobra.Command{
	Use:   "uri <display-name>...",
	Short: "Turn a display name into a URL-friendly node name",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			fmt.Fprintln(cmd.OutOrStdout(), nodename.URIName(arg))
		}
	},
}

var nameValidateCmd = &cobra.Command{
	Use:   "validate <name>...",
	Short: "Check node names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invalid := 0
		for _, arg := range args {
			if err := nodename.Validate(arg); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", errorColor.Sprint("✗"), err)
				invalid++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successColor.Sprint("✓"), arg)
		}
		if invalid > 0 {
			return fmt.Errorf("%d invalid name(s)", invalid)
		}
		return nil
	},
}

var nameCopyCmd = &cobra.Command{
	Use:   "copy <display-name>",
	Short: "Pick a display name for a copy that does not collide with its siblings",
	Long: `Pick a display name for a copy of a node. The encoded name must not be
taken by one of the siblings, given with --existing or read from the
children of --parent in the merged configuration tree.`,
	Args: cobra.ExactArgs(1),
	RunE: runNameCopy,
}

var (
	copyPrefix   string
	copyExisting []string
	copyParent   string
)

func init() {
	rootCmd.AddCommand(nameCmd)
	nameCmd.AddCommand(nameEncodeCmd, nameDecodeCmd, nameURICmd, nameValidateCmd, nameCopyCmd)

	nameCopyCmd.Flags().StringVar(&copyPrefix, "prefix", "Copy of", "text put in front of the copied name")
	nameCopyCmd.Flags().StringSliceVar(&copyExisting, "existing", nil, "node names already taken")
	nameCopyCmd.Flags().StringVar(&copyParent, "parent", "", "node whose children are taken")
}

func runNameCopy(cmd *cobra.Command, args []string) error {
	taken := make(map[string]bool)
	for _, name := range copyExisting {
		taken[name] = true
	}

	if copyParent != "" {
		if err := validateNodePath(copyParent); err != nil {
			return err
		}
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		m, err := ws.loadModel(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		parent := m.ResolveNode(copyParent)
		if parent == nil {
			return fmt.Errorf("node '%s' not found", copyParent)
		}
		for _, child := range parent.Nodes() {
			taken[child.Name()] = true
		}
	}

	helper := nodename.NewCopyNameHelper(copyPrefix)
	fmt.Fprintln(cmd.OutOrStdout(), helper.CopyName(args[0], func(name string) bool { return taken[name] }))
	return nil
}
