package cmd

import (
	"fmt"
	"strings"

	"github.com/conneroisu/hcm/internal/definition"
	"github.com/conneroisu/hcm/internal/nodename"
)

// validateNodePath checks that an argument is an absolute node path with
// valid segment names.
func validateNodePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("node path '%s' must be absolute", path)
	}
	for _, seg := range definition.SplitPath(path) {
		if err := nodename.Validate(seg); err != nil {
			return fmt.Errorf("invalid node path '%s': %w", path, err)
		}
	}
	return nil
}
