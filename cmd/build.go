package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/hcm/internal/config"
	"github.com/conneroisu/hcm/internal/renderer"
	"github.com/conneroisu/hcm/internal/tree"
)

var buildCmd = &cobra.Command{
	Use:   "build [node-path]",
	Short: "Merge all modules and print the configuration tree",
	Long: `Load every module, merge the definitions in dependency order and print
the resulting configuration tree, or the subtree at node-path.

Examples:
  hcm build                          # Whole tree as YAML definitions
  hcm build /hst:hst -f text         # Outline of one subtree
  hcm build -f text --origins        # Outline with the definitions behind each item
  hcm build -f json -o model.json    # Write JSON to a file
  hcm build --strict                 # Fail when the merge produced warnings`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var (
	buildOutput  string
	buildOrigins bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	flags := buildCmd.Flags()
	flags.StringP("format", "f", config.DefaultFormat, "output format (yaml, json, text)")
	flags.Bool("strict", false, "treat merge warnings as errors")
	flags.BoolVar(&buildOrigins, "origins", false, "show where each item was defined (text format)")
	flags.StringVarP(&buildOutput, "output", "o", "", "write to a file instead of stdout")

	AddFlagValidation(flags, "format", enumValidator(config.Formats))
	bindFlag(config.KeyBuildFormat, flags.Lookup("format"))
	bindFlag(config.KeyBuildStrict, flags.Lookup("strict"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}
	if err := validateNodePath(path); err != nil {
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

	printWarnings(cmd.ErrOrStderr(), m.Warnings)
	if ws.cfg.Build.Strict && len(m.Warnings) > 0 {
		return fmt.Errorf("build produced %d warning(s) in strict mode", len(m.Warnings))
	}

	node := m.ResolveNode(path)
	if node == nil {
		return fmt.Errorf("node '%s' not found", path)
	}

	if buildOutput == "" {
		return render(cmd.OutOrStdout(), node, ws.cfg.Build.Format, buildOrigins)
	}
	return writeRendered(appFs, buildOutput, node, ws.cfg.Build.Format, buildOrigins)
}

// render writes node in one of config.Formats.
func render(w io.Writer, node *tree.Node, format string, withOrigins bool) error {
	var (
		out []byte
		err error
	)
	switch format {
	case "yaml":
		out, err = renderer.RenderYAML(node)
	case "json":
		out, err = renderer.RenderJSON(node)
	case "text":
		return renderer.RenderText(w, node, withOrigins)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", node.Path(), err)
	}
	_, err = w.Write(out)
	return err
}

func writeRendered(fs afero.Fs, name string, node *tree.Node, format string, withOrigins bool) error {
	f, err := fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := render(f, node, format, withOrigins); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
