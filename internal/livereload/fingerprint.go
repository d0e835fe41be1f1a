package livereload

import "github.com/inful/mdfp"

// Fingerprint hashes a build artifact for change notifications. The label keeps
// artifacts with identical content from different pipelines apart.
func Fingerprint(label string, content []byte) string {
	return mdfp.CalculateFingerprintFromParts(label, string(content))
}
