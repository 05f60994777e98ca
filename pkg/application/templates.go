package application

// TemplateTask is one task a template lays out, its path relative to the
// project the template is applied to.
type TemplateTask struct {
	Path         string   `json:"path"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Template is a reusable task layout. Names and paths may reference
// variables as {{name}}.
type Template struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Variables   []string       `json:"variables"`
	Tasks       []TemplateTask `json:"tasks"`
}

// BuiltinTemplates returns the templates shipped with the server.
func BuiltinTemplates() []Template {
	return []Template{
		{
			Name:        "feature",
			Description: "Design, build and ship a feature",
			Variables:   []string{"feature"},
			Tasks: []TemplateTask{
				{Path: "{{feature}}", Name: "{{feature}}", Type: "milestone"},
				{Path: "{{feature}}/design", Name: "Design {{feature}}", Type: "task"},
				{Path: "{{feature}}/implement", Name: "Implement {{feature}}", Type: "task", Dependencies: []string{"{{feature}}/design"}},
				{Path: "{{feature}}/test", Name: "Test {{feature}}", Type: "task", Dependencies: []string{"{{feature}}/implement"}},
			},
		},
		{
			Name:        "bugfix",
			Description: "Reproduce, fix and verify a defect",
			Variables:   []string{"bug"},
			Tasks: []TemplateTask{
				{Path: "{{bug}}", Name: "Fix {{bug}}", Type: "group"},
				{Path: "{{bug}}/reproduce", Name: "Reproduce {{bug}}", Type: "task"},
				{Path: "{{bug}}/fix", Name: "Fix {{bug}}", Type: "task", Dependencies: []string{"{{bug}}/reproduce"}},
				{Path: "{{bug}}/verify", Name: "Verify {{bug}}", Type: "task", Dependencies: []string{"{{bug}}/fix"}},
			},
		},
		{
			Name:        "release",
			Description: "Cut and publish a release",
			Variables:   []string{"version"},
			Tasks: []TemplateTask{
				{Path: "release-{{version}}", Name: "Release {{version}}", Type: "milestone"},
				{Path: "release-{{version}}/changelog", Name: "Write changelog for {{version}}", Type: "task"},
				{Path: "release-{{version}}/tag", Name: "Tag {{version}}", Type: "task", Dependencies: []string{"release-{{version}}/changelog"}},
				{Path: "release-{{version}}/announce", Name: "Announce {{version}}", Type: "task", Dependencies: []string{"release-{{version}}/tag"}},
			},
		},
	}
}

// FindTemplate returns the builtin template called name, or nil.
func FindTemplate(name string) *Template {
	for _, t := range BuiltinTemplates() {
		if t.Name == name {
			return &t
		}
	}
	return nil
}
