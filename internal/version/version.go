// Package version carries the agent's build identity and the container
// label used to mark resources it owns.
package version

// Current is the agent version embedded in the foreign-resource label.
// Overridable at build time: -ldflags "-X github.com/pyrohost/alerion/internal/version.Current=1.2.3".
var Current = "dev"

// LabelKey is the Docker label key that marks a container or mount as
// owned by this agent. Any resource sharing our naming scheme but lacking
// this label (or carrying a mismatched value) is treated as foreign.
const LabelKey = "host.pyro.alerion-version"

// Label returns the {key: value} label pair to apply to agent-owned
// container resources.
func Label() map[string]string {
	return map[string]string{LabelKey: Current}
}
