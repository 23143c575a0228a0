package model

// Policy is the repository policy loaded from a TOML file. Events from
// repositories not listed here are ignored at intake.
type Policy struct {
	Repositories []RepoPolicy `toml:"repositories"`
}

// Repo looks up the policy entry for a repository full name
func (p *Policy) Repo(fullName string) *RepoPolicy {
	for i := range p.Repositories {
		if p.Repositories[i].Name == fullName {
			return &p.Repositories[i]
		}
	}
	return nil
}

// RepoPolicy configures orchestration for one repository
type RepoPolicy struct {
	// Name is the repository full name (owner/repo)
	Name string `toml:"name"`

	// Workflows restricts which workflow names may run for this
	// repository. Empty means all loaded workflows.
	Workflows []string `toml:"workflows,omitempty"`

	// SlackChannel overrides the notification channel for this repository
	SlackChannel string `toml:"slack_channel,omitempty"`

	// Secrets are injected into job environments as-is. Values are
	// redacted from logs.
	Secrets map[string]string `toml:"secrets,omitempty" masq:"secret"`
}

// AllowsWorkflow reports whether the workflow may run for this repository
func (p *RepoPolicy) AllowsWorkflow(name string) bool {
	if len(p.Workflows) == 0 {
		return true
	}
	for _, w := range p.Workflows {
		if w == name {
			return true
		}
	}
	return false
}
