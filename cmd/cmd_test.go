package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hcm/internal/testutils"
)

const baseDescriptor = "group: acme\nproject: site\nmodule: base\n"

const baseConfig = `definitions:
  config:
    /acme:
      jcr:primaryType: nt:unstructured
      title: Acme
    /hst:hst:
      jcr:primaryType: hst:hst
      /hst:hosts:
        jcr:primaryType: hst:virtualhosts
        hst:defaulthostname: localhost
        /dev:
          jcr:primaryType: hst:virtualhostgroup
          /localhost:
            jcr:primaryType: hst:virtualhost
            /hst:root:
              jcr:primaryType: hst:mount
              hst:mountpoint: /hst:hst/hst:sites/acme
              /api:
                jcr:primaryType: hst:mount
                hst:type: rest
`

const siteDescriptor = `group: acme
project: site
module:
  name: site-config
  after: base
`

const siteConfig = `definitions:
  config:
    /acme:
      enabled: true
      /settings:
        jcr:primaryType: nt:unstructured
`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// useFixture points the commands at an in-memory filesystem holding files.
func useFixture(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := testutils.CreateModuleFs(t, files)

	previous := appFs
	appFs = fs
	t.Cleanup(func() { appFs = previous })
	return fs
}

func siteFiles() map[string]string {
	return map[string]string{
		"/repo/base/hcm-module.yaml":      baseDescriptor,
		"/repo/base/hcm-config/main.yaml": baseConfig,
		"/repo/site/hcm-module.yaml":      siteDescriptor,
		"/repo/site/hcm-config/main.yaml": siteConfig,
	}
}

// resetFlags restores every flag of cmd and its subcommands to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestBuildCommand(t *testing.T) {
	useFixture(t, siteFiles())

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name: "yaml subtree",
			args: []string{"build", "-m", "/repo", "-f", "yaml", "/acme"},
			contains: []string{
				"definitions:\n  config:\n    /acme:\n      jcr:primaryType: nt:unstructured\n",
				"      title: Acme\n",
				"      enabled: true\n",
				"      /settings:\n",
			},
		},
		{
			name:     "text outline",
			args:     []string{"build", "-m", "/repo", "-f", "text", "/acme"},
			contains: []string{"/acme\n", "  - title = Acme\n", "  /settings\n"},
		},
		{
			name:     "text with origins",
			args:     []string{"build", "-m", "/repo", "-f", "text", "--origins", "/acme"},
			contains: []string{"  - enabled = true (boolean)  # acme/site/site-config:"},
		},
		{
			name:     "json",
			args:     []string{"build", "-m", "/repo", "-f", "json", "/acme/settings"},
			contains: []string{`"path": "/acme/settings"`},
		},
		{
			name:     "whole tree",
			args:     []string{"build", "-m", "/repo", "-f", "yaml"},
			contains: []string{"    /:\n      jcr:primaryType: rep:root\n", "      /hst:hst:\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, stdout, want)
			}
		})
	}
}

func TestBuildCommandErrors(t *testing.T) {
	useFixture(t, siteFiles())

	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"relative path", []string{"build", "-m", "/repo", "acme"}, "must be absolute"},
		{"invalid segment", []string{"build", "-m", "/repo", "/a/b*c"}, "invalid node path"},
		{"missing node", []string{"build", "-m", "/repo", "/nope"}, "node '/nope' not found"},
		{"bad format", []string{"build", "-m", "/repo", "-f", "yml"}, "did you mean 'yaml'?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestBuildCommandOutputFile(t *testing.T) {
	fs := useFixture(t, siteFiles())

	require.NoError(t, fs.MkdirAll("/out", 0o755))
	stdout, _, err := executeCommand(t, "build", "-m", "/repo", "-f", "json", "-o", "/out/model.json", "/acme")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := afero.ReadFile(fs, "/out/model.json")
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "/acme", decoded["path"])
}

func TestBuildCommandStrict(t *testing.T) {
	files := siteFiles()
	files["/repo/site/hcm-config/main.yaml"] = "definitions:\n  config:\n    /acme:\n      title: Acme\n"
	useFixture(t, files)

	_, stderr, err := executeCommand(t, "build", "-m", "/repo", "/acme")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")

	_, _, err = executeCommand(t, "build", "-m", "/repo", "--strict", "/acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict mode")
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid modules", func(t *testing.T) {
		useFixture(t, siteFiles())

		stdout, _, err := executeCommand(t, "validate", "-m", "/repo")
		require.NoError(t, err)
		assert.Contains(t, stdout, "✓ 2 module(s) merged, 0 warning(s)")
	})

	t.Run("json report", func(t *testing.T) {
		useFixture(t, siteFiles())

		stdout, _, err := executeCommand(t, "validate", "-f", "json", "/repo")
		require.NoError(t, err)

		var report validationReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, []string{"acme/site/base", "acme/site/site-config"}, report.Modules)
		assert.Empty(t, report.Errors)
	})

	t.Run("missing dependency", func(t *testing.T) {
		files := siteFiles()
		files["/repo/site/hcm-module.yaml"] = "group: acme\nproject: site\nmodule:\n  name: site-config\n  after: nope\n"
		useFixture(t, files)

		stdout, _, err := executeCommand(t, "validate", "-m", "/repo")
		require.Error(t, err)
		assert.Contains(t, stdout, "error:")
		assert.Contains(t, stdout, "nope")
		assert.Contains(t, stdout, "✗ 1 error(s)")
	})

	t.Run("broken source", func(t *testing.T) {
		files := siteFiles()
		files["/repo/site/hcm-config/main.yaml"] = "definitions:\n  config:\n    /acme:\n      p: ~\n"
		useFixture(t, files)

		stdout, _, err := executeCommand(t, "validate", "-f", "json", "-m", "/repo")
		require.Error(t, err)

		var report validationReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "main.yaml")
	})
}

func TestListCommand(t *testing.T) {
	useFixture(t, siteFiles())

	stdout, _, err := executeCommand(t, "list", "-m", "/repo", "-f", "json")
	require.NoError(t, err)

	var modules []moduleInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &modules))
	require.Len(t, modules, 2)
	assert.Equal(t, "base", modules[0].Name)
	assert.Equal(t, "site-config", modules[1].Name)
	assert.Equal(t, []string{"base"}, modules[1].After)
	assert.Equal(t, 1, modules[1].Sources)

	stdout, _, err = executeCommand(t, "list", "-m", "/repo", "-f", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[2], "site-config")

	stdout, _, err = executeCommand(t, "list", "-m", "/repo", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "- name: base\n")
}

func TestQueryCommand(t *testing.T) {
	useFixture(t, siteFiles())

	stdout, _, err := executeCommand(t, "query", "-m", "/repo", "--path", "/acme", "-r", ".properties.title")
	require.NoError(t, err)
	assert.Equal(t, "Acme\n", stdout)

	stdout, _, err = executeCommand(t, "query", "-m", "/repo", "--path", "/acme", "[.nodes[].name]")
	require.NoError(t, err)
	assert.JSONEq(t, `["settings"]`, stdout)

	_, stderr, err := executeCommand(t, "query", "-m", "/repo", ".[")
	require.Error(t, err)
	assert.Empty(t, stderr)
}

func TestDiffCommand(t *testing.T) {
	files := map[string]string{
		"/left/m/hcm-module.yaml":       baseDescriptor,
		"/left/m/hcm-config/main.yaml":  "definitions:\n  config:\n    /acme:\n      jcr:primaryType: nt:unstructured\n      title: A\n",
		"/right/m/hcm-module.yaml":      baseDescriptor,
		"/right/m/hcm-config/main.yaml": "definitions:\n  config:\n    /acme:\n      jcr:primaryType: nt:unstructured\n      title: B\n",
	}
	useFixture(t, files)

	stdout, _, err := executeCommand(t, "diff", "/left", "/right")
	require.NoError(t, err)
	assert.Contains(t, stdout, "--- a/\n+++ b/\n")
	assert.Contains(t, stdout, "-        title: A\n+        title: B\n")

	_, _, err = executeCommand(t, "diff", "--exit-code", "/left", "/right")
	assert.ErrorIs(t, err, errTreesDiffer)

	stdout, _, err = executeCommand(t, "diff", "--exit-code", "--path", "/acme", "/left", "/left")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestResolveCommand(t *testing.T) {
	useFixture(t, siteFiles())

	stdout, _, err := executeCommand(t, "resolve", "-m", "/repo", "-f", "json", "http://localhost/api/news")
	require.NoError(t, err)

	var r resolution
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.Equal(t, "localhost", r.Host)
	assert.Equal(t, "dev", r.Group)
	assert.Equal(t, "/api", r.Mount)
	assert.Equal(t, "rest", r.Type)
	assert.Equal(t, "/api", r.MatchedPath)
	assert.Equal(t, "/news", r.RemainingPath)

	stdout, _, err = executeCommand(t, "resolve", "-m", "/repo", "unknown.example.com/")
	require.NoError(t, err)
	assert.Contains(t, stdout, "localhost")
	assert.Contains(t, stdout, "/hst:hst/hst:sites/acme")

	_, _, err = executeCommand(t, "resolve", "-m", "/repo", "--hosts-path", "/nope", "http://localhost/")
	require.Error(t, err)
}

func TestNameCommands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"encode", []string{"name", "encode", "a/b"}, "a_x002f_b\n"},
		{"decode", []string{"name", "decode", "a_x002f_b"}, "a/b\n"},
		{"uri", []string{"name", "uri", "Café Menu"}, "cafe-menu\n"},
		{"copy", []string{"name", "copy", "News"}, "Copy of News\n"},
		{"copy taken", []string{"name", "copy", "News", "--existing", "copy-of-news"}, "Copy of News (2)\n"},
		{"copy prefix", []string{"name", "copy", "News", "--prefix", "Kopie van"}, "Kopie van News\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, stdout)
		})
	}

	stdout, _, err := executeCommand(t, "name", "validate", "hst:root", "bad/name")
	require.Error(t, err)
	assert.Contains(t, stdout, "✓ hst:root\n")
	assert.Contains(t, stdout, "✗ ")
}

func TestNameCopyFromParent(t *testing.T) {
	useFixture(t, siteFiles())

	stdout, _, err := executeCommand(t, "name", "copy", "-m", "/repo", "--prefix", "", "--parent", "/acme", "Settings")
	require.NoError(t, err)
	assert.Equal(t, "Settings (2)\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "hcm "))

	stdout, _, err = executeCommand(t, "version", "-f", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestValidateNodePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/", false},
		{"/hst:hst/hst:hosts", false},
		{"/a/b[2]", false},
		{"a", true},
		{"", true},
		{"/a//b", true},
		{"/a/b*", true},
		{"/a/:b", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validateNodePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRequestURL(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		port    int
		path    string
		wantErr bool
	}{
		{raw: "http://localhost/site", host: "localhost", port: 80, path: "/site"},
		{raw: "https://www.example.com", host: "www.example.com", port: 443, path: ""},
		{raw: "http://localhost:8080/a/b", host: "localhost", port: 8080, path: "/a/b"},
		{raw: "localhost:8081/x", host: "localhost", port: 8081, path: "/x"},
		{raw: "http:///nohost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, path, err := parseRequestURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestEnumValidator(t *testing.T) {
	validate := enumValidator([]string{"yaml", "json", "text"})

	assert.NoError(t, validate("json"))

	err := validate("JSNO")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean 'json'?")

	err = validate("csv")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")

	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 0, editDistance("", ""))
}
