// Package cmd provides the hcm command-line interface.
//
// The commands share one pipeline: discover module descriptors below the
// configured module paths, load their sources, order the modules by their
// declared dependencies and merge the definitions into a configuration
// model.
//
// # Available Commands
//
//   - build: print the merged configuration tree as YAML, JSON or text
//   - validate: report load errors, merge errors and merge warnings
//   - list: list modules in merge order
//   - query: run a jq expression over the merged tree
//   - diff: compare the trees built from two module directories
//   - resolve: find the virtual host and mount serving a URL
//   - name: encode, decode, validate and copy node names
//   - watch: rebuild the model whenever a module changes
//   - version: show build information
//
// # Configuration
//
// Settings come, highest precedence first, from flags, HCM_* environment
// variables (also read from a .env file), the .hcm.yml config file and
// built-in defaults:
//
//	modules:
//	  paths: [./repository-data]
//	  exclude: ["**/target/**"]
//	build:
//	  strict: true
//	  format: yaml
//	hst:
//	  hosts_path: /hst:hst/hst:hosts
//	watch:
//	  debounce: 300ms
//	log:
//	  level: info
//	  format: text
package cmd
