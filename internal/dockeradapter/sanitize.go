package dockeradapter

import "strings"

// SanitizeOutput strips Unicode replacement characters, DEL, and ASCII
// control characters other than \t, \n and \r from a byte chunk read from a
// container stream before it is broadcast or logged (install pipeline
// invariant 6). Grounded on crates/alerion_core/src/docker/util.rs's
// sanitize_output.
func SanitizeOutput(chunk []byte) string {
	var b strings.Builder
	b.Grow(len(chunk))

	for _, r := range string(chunk) {
		if r == '�' {
			continue
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if r == 0x7f { // DEL
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// NormalizeScript replaces every \r with \n (install pipeline, invariant
// 5): the ash-compatible shell inside installer containers rejects
// carriage returns.
func NormalizeScript(script string) string {
	return strings.ReplaceAll(script, "\r", "\n")
}

// FormatEnvironment flattens a server's environment map into Docker's
// "KEY=VALUE" slice form, unquoting any value that happens to be a
// JSON-string literal (the panel sometimes sends quoted strings for
// values originating from its own JSON columns). Grounded on
// crates/alerion_core/src/docker/util.rs's format_environment_for_docker.
func FormatEnvironment(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+unquoteJSONString(v))
	}
	return out
}

func unquoteJSONString(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}
