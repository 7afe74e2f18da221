package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Suggestion is a hint for fixing an error.
type Suggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

var suggestionsByCode = map[string][]Suggestion{
	ErrCodeMissingDependency: {
		{
			Title:       "Check the after list",
			Description: "A group, project or module names a dependency that no loaded module provides",
			Command:     "hcm list",
		},
		{
			Title:       "Add the module path",
			Description: "The module providing the dependency may live outside the configured module paths",
			Example:     "hcm validate -m ./site -m ./platform",
		},
	},
	ErrCodeCircularDependency: {
		{
			Title:       "Break the cycle",
			Description: "Remove one of the after entries that form the cycle",
			Example:     "project: site\nafter: []",
		},
	},
	ErrCodeConflictingModule: {
		{
			Title:       "Rename one of the modules",
			Description: "Two descriptors declare the same group/project/module",
			Command:     "hcm list -f json",
		},
		{
			Title:       "Exclude a copy",
			Description: "Build output directories often contain copies of module descriptors",
			Example:     "modules:\n  exclude: [\"**/target/**\"]",
		},
	},
	ErrCodeMissingParent: {
		{
			Title:       "Define the parent first",
			Description: "The parent node must be defined by this or an earlier module",
			Example:     "definitions:\n  config:\n    /parent:\n      jcr:primaryType: nt:unstructured\n      /child:\n        jcr:primaryType: nt:unstructured",
		},
		{
			Title:       "Order the modules",
			Description: "Make the module that defines the parent come first",
			Example:     "after: [module-defining-the-parent]",
		},
	},
	ErrCodeMissingPrimaryType: {
		{
			Title:       "Add a primary type",
			Description: "A node that is created must declare jcr:primaryType",
			Example:     "/node:\n  jcr:primaryType: nt:unstructured",
		},
	},
	ErrCodePrimaryTypeChange: {
		{
			Title:       "Override the primary type",
			Description: "Changing the primary type of an existing node must be explicit",
			Example:     "jcr:primaryType:\n  operation: override\n  value: hst:mount",
		},
	},
	ErrCodePropertyConflict: {
		{
			Title:       "Override the property",
			Description: "Changing the type or multiplicity of an existing property must be explicit",
			Example:     "title:\n  operation: override\n  type: string\n  value: [a, b]",
		},
	},
	ErrCodeDeleteMissing: {
		{
			Title:       "Check the path",
			Description: "The item to delete was never defined by an earlier module",
			Command:     "hcm build --origins -f text",
		},
	},
	ErrCodeInvalidOrderBefore: {
		{
			Title:       "Name an existing sibling",
			Description: "order-before must name a sibling of the node that is not the node itself",
			Example:     "/node:\n  .meta:order-before: sibling",
		},
	},
	ErrCodeDuplicateNamespace: {
		{
			Title:       "Define each namespace once",
			Description: "Only one module may register a namespace prefix",
		},
	},
	ErrCodeConfigInvalid: {
		{
			Title:       "Check the configuration file",
			Description: "Verify .hcm.yml and HCM_* environment variables",
			Example:     "modules:\n  paths: [.]\nbuild:\n  format: yaml",
		},
	},
	ErrCodeHostNotFound: {
		{
			Title:       "List the virtual hosts",
			Description: "No host name or wildcard matches the request",
			Command:     "hcm query --path /hst:hst/hst:hosts '[.. | objects | select(.primaryType == \"hst:virtualhost\") | .path]'",
		},
	},
	ErrCodeInvalidQuery: {
		{
			Title:       "Check the jq expression",
			Description: "Each node is an object with name, path, primaryType, properties and nodes",
			Example:     "hcm query '.nodes[].name'",
		},
	},
}

// Suggestions returns hints for the first HcmError in the chain of err.
func Suggestions(err error) []Suggestion {
	var he *HcmError
	if !errors.As(err, &he) {
		return nil
	}
	return suggestionsByCode[he.Code]
}

// FormatSuggestions formats suggestions as a numbered list, or returns ""
// when there are none.
func FormatSuggestions(suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}

	var output strings.Builder
	output.WriteString("Suggestions:\n")
	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString("     Example:\n")
			for _, line := range strings.Split(suggestion.Example, "\n") {
				output.WriteString("       " + line + "\n")
			}
		}
	}
	return output.String()
}
