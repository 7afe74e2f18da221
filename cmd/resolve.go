package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hcm/internal/config"
	"github.com/conneroisu/hcm/internal/hst"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Find the virtual host and mount that serve a URL",
	Long: `Build the configuration model, read the virtual hosts below the hosts
node and resolve a URL to the mount serving it.

Examples:
  hcm resolve http://localhost:8080/site/news
  hcm resolve https://www.example.com/api -f json
  hcm resolve --hosts-path /hst:myhst/hst:hosts http://localhost/`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var resolveFormat string

func init() {
	rootCmd.AddCommand(resolveCmd)

	flags := resolveCmd.Flags()
	flags.String("hosts-path", config.DefaultHostsPath, "node holding the virtual host groups")
	flags.StringVarP(&resolveFormat, "format", "f", "text", "output format (text, json)")

	AddFlagValidation(flags, "format", enumValidator([]string{"text", "json"}))
	bindFlag(config.KeyHostsPath, flags.Lookup("hosts-path"))
}

// resolution is the printable outcome of resolving a URL.
type resolution struct {
	Host          string `json:"host"`
	Group         string `json:"group"`
	Scheme        string `json:"scheme"`
	Port          int    `json:"port"`
	Mount         string `json:"mount"`
	MountPoint    string `json:"mountPoint,omitempty"`
	Alias         string `json:"alias,omitempty"`
	Type          string `json:"type"`
	Locale        string `json:"locale,omitempty"`
	HomePage      string `json:"homePage,omitempty"`
	MatchedPath   string `json:"matchedPath"`
	RemainingPath string `json:"remainingPath"`
}

// parseRequestURL returns host, port and path of a URL. A missing port
// defaults to the scheme's port.
func parseRequestURL(raw string) (string, int, string, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", 0, "", fmt.Errorf("URL '%s' has no host", raw)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, "", fmt.Errorf("invalid port '%s'", p)
		}
	}
	return u.Hostname(), port, u.Path, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	host, port, path, err := parseRequestURL(args[0])
	if err != nil {
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

	hosts, err := hst.Load(m.ConfigRoot, ws.cfg.HST.HostsPath)
	if err != nil {
		return err
	}
	resolved, err := hosts.Resolve(host, port, path)
	if err != nil {
		return err
	}
	return writeResolution(cmd.OutOrStdout(), newResolution(resolved, port), resolveFormat)
}

func newResolution(r *hst.ResolvedMount, port int) resolution {
	return resolution{
		Host:          r.Host.Name,
		Group:         r.Host.Group,
		Scheme:        r.Host.Scheme,
		Port:          port,
		Mount:         r.Mount.Path(),
		MountPoint:    r.Mount.MountPoint,
		Alias:         r.Mount.Alias,
		Type:          r.Mount.Type,
		Locale:        r.Mount.Locale,
		HomePage:      r.Mount.HomePage,
		MatchedPath:   r.MatchedPath,
		RemainingPath: r.RemainingPath,
	}
}

func writeResolution(w io.Writer, r resolution, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"host", r.Host},
		{"group", r.Group},
		{"scheme", r.Scheme},
		{"port", strconv.Itoa(r.Port)},
		{"mount", r.Mount},
		{"mount point", r.MountPoint},
		{"alias", r.Alias},
		{"type", r.Type},
		{"locale", r.Locale},
		{"home page", r.HomePage},
		{"matched", r.MatchedPath},
		{"remaining", r.RemainingPath},
	}
	for _, row := range rows {
		if row[1] != "" {
			fmt.Fprintf(tw, "%s\t%s\n", headerColor.Sprint(row[0]+":"), row[1])
		}
	}
	return tw.Flush()
}
