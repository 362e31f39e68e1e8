package intents

import (
	"regexp"
	"strings"
)

var whoIsRe = regexp.MustCompile(`^(?:who\s+is|who's)\s+(.+)$`)

// Leading words that make a short phrase a question rather than a name.
var nonNameLead = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true, "which": true,
	"who": true, "define": true, "is": true, "are": true, "does": true, "do": true,
	"can": true, "should": true, "list": true, "explain": true, "describe": true,
	"summarize": true, "summarise": true, "show": true, "give": true, "tell": true,
}

var commonSurnames = map[string]bool{
	"smith": true, "johnson": true, "williams": true, "brown": true, "jones": true,
	"garcia": true, "miller": true, "davis": true, "rodriguez": true, "martinez": true,
	"hernandez": true, "lopez": true, "gonzalez": true, "wilson": true, "anderson": true,
	"thomas": true, "taylor": true, "moore": true, "jackson": true, "martin": true,
	"lee": true, "perez": true, "thompson": true, "white": true, "harris": true,
	"sanchez": true, "clark": true, "ramirez": true, "lewis": true, "robinson": true,
	"walker": true, "young": true, "allen": true, "king": true, "wright": true,
	"scott": true, "hill": true, "green": true, "adams": true, "baker": true,
	"nelson": true, "carter": true, "mitchell": true, "roberts": true, "turner": true,
	"phillips": true, "campbell": true, "parker": true, "evans": true, "edwards": true,
	"collins": true, "stewart": true, "murphy": true, "cook": true, "rogers": true,
	"kumar": true, "singh": true, "sharma": true, "patel": true, "gupta": true,
	"khan": true, "ali": true, "ahmed": true, "wang": true, "li": true, "zhang": true,
	"liu": true, "chen": true, "yang": true, "huang": true, "zhao": true, "wu": true,
	"nguyen": true, "tran": true, "kim": true, "park": true, "choi": true,
	"müller": true, "mueller": true, "schmidt": true, "schneider": true, "fischer": true,
	"rossi": true, "silva": true, "santos": true, "oliveira": true, "costa": true,
}

// NamePhrase is a candidate person-name found in a question.
type NamePhrase struct {
	Phrase string
	Tokens []string
}

// Empty reports whether no name candidate was found.
func (n NamePhrase) Empty() bool { return len(n.Tokens) == 0 }

// Ambiguous reports a lone common surname that needs a full name.
func (n NamePhrase) Ambiguous() bool {
	return len(n.Tokens) == 1 && commonSurnames[n.Tokens[0]]
}

// ExtractNamePhrase finds "who is X" or a bare two-to-four word phrase.
// A bare single word only qualifies when it is a common surname, so the
// caller can ask for disambiguation. Case is ignored throughout.
func ExtractNamePhrase(question string) NamePhrase {
	q := strings.TrimRight(Normalize(question), " ?.!")
	if q == "" {
		return NamePhrase{}
	}

	if m := whoIsRe.FindStringSubmatch(q); m != nil {
		return newNamePhrase(m[1])
	}

	words := strings.Fields(stripPunct(q))
	if len(words) == 0 || nonNameLead[words[0]] {
		return NamePhrase{}
	}
	switch {
	case len(words) == 1 && commonSurnames[words[0]]:
		return newNamePhrase(words[0])
	case len(words) >= 2 && len(words) <= 4:
		return newNamePhrase(strings.Join(words, " "))
	}
	return NamePhrase{}
}

func newNamePhrase(s string) NamePhrase {
	tokens := strings.Fields(stripPunct(s))
	if len(tokens) == 0 {
		return NamePhrase{}
	}
	return NamePhrase{Phrase: strings.Join(tokens, " "), Tokens: tokens}
}
