package identity

// programSynonyms maps a canonical program name to the aliases commonly seen on
// credential documents. Membership in the same bucket floors the program score,
// it never lowers it.
var programSynonyms = map[string][]string{
	"computer science": {
		"cs", "cse", "computer engineering", "computer science and engineering",
		"information technology", "it", "software engineering",
		"btech computer science", "btech cse", "bsc computer science",
	},
	"electronics": {
		"ece", "electronics and communication", "electronics and communication engineering",
		"electronics engineering", "btech ece",
	},
	"electrical engineering": {
		"ee", "eee", "electrical and electronics engineering", "btech electrical",
	},
	"mechanical engineering": {
		"me", "mech", "btech mechanical",
	},
	"civil engineering": {
		"ce", "civil", "btech civil",
	},
	"business administration": {
		"mba", "bba", "management", "business management",
	},
	"commerce": {
		"bcom", "mcom",
	},
	"mathematics": {
		"maths", "math", "bsc mathematics", "msc mathematics",
	},
	"physics": {
		"bsc physics", "msc physics",
	},
}

// degreePrefixes are stripped before bucket lookup so "B.Tech Computer Science"
// and "CSE" land in the same bucket.
var degreePrefixes = []string{
	"btech", "b tech", "mtech", "m tech", "bsc", "b sc", "msc", "m sc",
	"be", "me", "ba", "ma", "bca", "mca", "bachelor of", "master of",
	"bachelors in", "masters in", "diploma in", "phd in", "phd",
}

// programBucket returns the canonical bucket for a normalized program string,
// or "" when it belongs to none.
func programBucket(normalized string) string {
	stripped := stripDegreePrefix(normalized)
	for canonical, aliases := range programSynonyms {
		if stripped == canonical {
			return canonical
		}
		for _, alias := range aliases {
			if stripped == alias {
				return canonical
			}
		}
	}
	return ""
}

func stripDegreePrefix(s string) string {
	for _, prefix := range degreePrefixes {
		if s == prefix {
			return s
		}
		if len(s) > len(prefix)+1 && s[:len(prefix)+1] == prefix+" " {
			return s[len(prefix)+1:]
		}
	}
	return s
}
