package git

import "strings"

// attributionPrefixes are trailer lines agents append to their commits.
// They are stripped before a result is squashed onto the default branch;
// the merged history should read as the depot's own.
var attributionPrefixes = []string{
	"co-authored-by:",
	"generated with",
	"generated-with:",
	"🤖 generated with",
}

// ScrubAttribution removes agent-attribution trailer lines from a commit
// message and trims any trailing blank lines left behind.
func ScrubAttribution(message string) string {
	lines := strings.Split(message, "\n")
	kept := lines[:0]
	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		drop := false
		for _, prefix := range attributionPrefixes {
			if strings.HasPrefix(lower, prefix) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	return strings.TrimRight(out, " \n\t") + "\n"
}
