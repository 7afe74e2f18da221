package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/model"
	"github.com/conneroisu/hcm/internal/nodename"
)

// DescriptorName is the file name that marks a module root.
const DescriptorName = "hcm-module.yaml"

// stringList accepts a single string or a sequence of strings.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: 'after' must be a string or a list of strings", value.Line)
	}
}

// orderableRef is a group, project or module entry: either a bare name or
// a mapping with name and after.
type orderableRef struct {
	Name  string
	After stringList
	line  int
	col   int
}

func (r *orderableRef) UnmarshalYAML(value *yaml.Node) error {
	r.line, r.col = value.Line, value.Column
	switch value.Kind {
	case yaml.ScalarNode:
		r.Name = value.Value
		return nil
	case yaml.MappingNode:
		var raw struct {
			Name  string     `yaml:"name"`
			After stringList `yaml:"after"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		r.Name, r.After = raw.Name, raw.After
		return nil
	default:
		return fmt.Errorf("line %d: expected a name or a mapping with 'name' and 'after'", value.Line)
	}
}

// descriptor is the content of an hcm-module.yaml file.
type descriptor struct {
	Group   orderableRef `yaml:"group"`
	Project orderableRef `yaml:"project"`
	Module  orderableRef `yaml:"module"`
}

// parseDescriptor reads a module descriptor and returns a module inside
// its own group and project.
func parseDescriptor(data []byte, path string) (*model.Module, error) {
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeParseFailed,
			fmt.Sprintf("failed to parse module descriptor: %v", err)).
			WithLocation(path, 0, 0)
	}

	for _, ref := range []struct {
		kind string
		ref  orderableRef
	}{
		{"group", d.Group},
		{"project", d.Project},
		{"module", d.Module},
	} {
		if ref.ref.Name == "" {
			return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeValidationFailed,
				fmt.Sprintf("module descriptor must name a %s", ref.kind)).
				WithLocation(path, ref.ref.line, ref.ref.col)
		}
		if err := nodename.Validate(ref.ref.Name); err != nil {
			return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeInvalidName,
				fmt.Sprintf("invalid %s name: %v", ref.kind, err)).
				WithLocation(path, ref.ref.line, ref.ref.col)
		}
	}

	m := model.NewGroup(d.Group.Name, d.Group.After...).
		AddProject(d.Project.Name, d.Project.After...).
		AddModule(d.Module.Name, d.Module.After...)
	m.DescriptorPath = path
	return m, nil
}
