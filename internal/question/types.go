package question

// Request guides pool resolution for one match.
type Request struct {
	// Subjects holds the requested subject names (Japanese display names or
	// catalog node keys). Empty means every known subject.
	Subjects []string
	// Count is the desired pool size; non-positive means "everything found".
	Count int
}

// subjectNodes maps the Japanese subject names used in match settings to the
// node keys the remote catalog and the curated table are grouped by.
var subjectNodes = map[string]string{
	"国語": "japanese",
	"数学": "mathematics",
	"理科": "science",
	"社会": "social",
	"英語": "english",
}

// Subjects returns every known subject display name.
func Subjects() []string {
	out := make([]string, 0, len(subjectNodes))
	for name := range subjectNodes {
		out = append(out, name)
	}
	return out
}

// subjectMatches reports whether a question subject (display name) is covered
// by the requested set, accepting either display names or node keys.
func subjectMatches(subject string, requested []string) bool {
	node := subjectNodes[subject]
	for _, want := range requested {
		if want == subject || (node != "" && want == node) {
			return true
		}
	}
	return false
}

// nodeSubject translates a catalog node key back to its display name, or
// returns the key itself for nodes outside the fixed table.
func nodeSubject(node string) string {
	for name, n := range subjectNodes {
		if n == node {
			return name
		}
	}
	return node
}
