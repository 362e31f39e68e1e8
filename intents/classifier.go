// Package intents classifies incoming questions before any retrieval happens.
//
// Every predicate is a plain function over the normalized question, so the
// phrase tables can be swapped or tested without the rest of the pipeline.
package intents

import (
	"regexp"
	"strings"
)

// Intent is the conversational purpose of a question.
type Intent int

const (
	QA Intent = iota
	Greeting
	Help
	Smalltalk
	About
	Definition
	Compound
)

func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case Help:
		return "help"
	case Smalltalk:
		return "smalltalk"
	case About:
		return "about"
	case Definition:
		return "definition"
	case Compound:
		return "compound"
	default:
		return "qa"
	}
}

// ShortCircuit reports whether the intent is answered without retrieval.
func (i Intent) ShortCircuit() bool {
	return i == Greeting || i == Help || i == Smalltalk
}

// Classification is the result of Classify.
type Classification struct {
	Intent Intent
	// Compound is set independently of Intent: a definition can also be compound.
	Compound bool
}

// Predicate decides whether a normalized question matches one intent.
type Predicate func(q string) bool

// Classifier applies its predicates in precedence order:
// Greeting > Help > Smalltalk > About > Definition > Compound > QA.
type Classifier struct {
	Greeting   Predicate
	Help       Predicate
	Smalltalk  Predicate
	About      Predicate
	Definition Predicate
	Compound   Predicate
}

// NewClassifier returns a classifier wired with the default phrase tables.
func NewClassifier() *Classifier {
	return &Classifier{
		Greeting:   IsGreeting,
		Help:       IsHelp,
		Smalltalk:  IsSmalltalk,
		About:      IsAbout,
		Definition: IsDefinition,
		Compound:   IsCompound,
	}
}

// Classify never fails; unmatched input is plain QA. Help only applies when
// the session has no recent turns, otherwise "help" is a real follow-up.
func (c *Classifier) Classify(question string, hasRecentContext bool) Classification {
	q := Normalize(question)
	if q == "" {
		return Classification{Intent: QA}
	}

	compound := c.Compound != nil && c.Compound(q)

	switch {
	case c.Greeting != nil && c.Greeting(q):
		return Classification{Intent: Greeting}
	case !hasRecentContext && c.Help != nil && c.Help(q):
		return Classification{Intent: Help}
	case c.Smalltalk != nil && c.Smalltalk(q):
		return Classification{Intent: Smalltalk}
	case c.About != nil && c.About(q):
		return Classification{Intent: About, Compound: compound}
	case c.Definition != nil && c.Definition(q):
		return Classification{Intent: Definition, Compound: compound}
	case compound:
		return Classification{Intent: Compound, Compound: true}
	}
	return Classification{Intent: QA}
}

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases, trims, and collapses whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

var (
	greetingPhrases = []string{
		"hi", "hello", "hey", "hiya", "greetings", "howdy",
		"good morning", "good afternoon", "good evening", "good day",
	}

	helpPhrases = []string{
		"?", "how to", "how does this work", "what can you do",
		"what can i ask", "i need help", "how do i use this",
	}

	smalltalkPhrases = []string{
		"thanks", "thank you", "thanks a lot", "thank you so much", "many thanks",
		"ok", "okay", "ok thanks", "okay thanks", "cool", "great", "nice", "got it",
		"how are you", "how are you doing", "are you there", "what's up", "whats up",
		"bye", "goodbye", "see you",
	}

	aboutPhrases = []string{
		"summarize", "summarise", "summary", "overview", "give me an overview",
		"what is this about", "what is the document about", "what is this document about",
		"what is the file about", "what is this file about", "what are these documents about",
		"what's this about", "what does this document say", "what does the document cover",
		"tell me about this document", "tell me about the document",
	}

	// Definition-shaped questions that are really summary requests.
	definitionExclusions = []string{
		"what is this about", "what is the document about", "what is this document about",
		"what is the file about", "what is this file about", "what is it about",
	}
)

// greetingFiller may follow a greeting without making it a question.
var greetingFiller = map[string]bool{
	"there": true, "bot": true, "assistant": true, "everyone": true, "all": true, "!": true,
}

// IsGreeting matches a greeting phrase as whole words at the start of a
// message that carries no further request.
func IsGreeting(q string) bool {
	words := strings.Fields(stripPunct(q))
	for _, phrase := range greetingPhrases {
		pw := strings.Fields(phrase)
		if len(words) < len(pw) || strings.Join(words[:len(pw)], " ") != phrase {
			continue
		}
		for _, w := range words[len(pw):] {
			if !greetingFiller[w] {
				return false
			}
		}
		return true
	}
	return false
}

var helpWordRe = regexp.MustCompile(`\bhelp\b`)

func IsHelp(q string) bool {
	if helpWordRe.MatchString(q) {
		return true
	}
	trimmed := strings.TrimRight(q, ".!")
	for _, p := range helpPhrases {
		if trimmed == p || trimmed == p+"?" {
			return true
		}
	}
	return false
}

// IsSmalltalk only matches a standalone acknowledgment. Anything after the
// phrase, or a question mark anywhere but the very end, falls through.
func IsSmalltalk(q string) bool {
	body := strings.TrimRight(q, " .!?")
	if strings.Contains(body, "?") {
		return false
	}
	body = strings.TrimSpace(strings.Trim(body, ","))
	for _, p := range smalltalkPhrases {
		if body == p {
			return true
		}
	}
	return false
}

func IsAbout(q string) bool {
	body := strings.TrimRight(q, " .!?")
	for _, p := range aboutPhrases {
		if body == p || strings.HasPrefix(body, p+" ") {
			return true
		}
	}
	return false
}

func IsDefinition(q string) bool {
	if !strings.HasPrefix(q, "define ") && !strings.HasPrefix(q, "what is ") {
		return false
	}
	body := strings.TrimRight(q, " .!?")
	for _, ex := range definitionExclusions {
		if body == ex || strings.HasPrefix(body, ex+" ") {
			return false
		}
	}
	return true
}

var (
	questionWordRe = regexp.MustCompile(`\b(who|what|which|where|when|how|why)\b`)
	clauseSepRe    = regexp.MustCompile(`[,;]|\band\b|\balso\b`)
	// "X is ... and Y is ..." with two distinct subjects.
	twoSubjectsRe = regexp.MustCompile(`\b(\w+)\s+(?:is|are|was|were)\b[^?]*?\band\s+(?:what\s+|how\s+)?(\w+)\s+(?:is|are|was|were|does|do)\b`)
)

// IsCompound flags questions that should be answered per sub-topic.
func IsCompound(q string) bool {
	if strings.Count(strings.TrimRight(q, " ?"), "?") >= 1 {
		return true
	}
	locs := questionWordRe.FindAllStringIndex(q, -1)
	if len(locs) >= 2 {
		between := q[locs[0][1]:locs[len(locs)-1][0]]
		if clauseSepRe.MatchString(between) {
			return true
		}
	}
	if m := twoSubjectsRe.FindStringSubmatch(q); m != nil && m[1] != m[2] {
		return true
	}
	return false
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s']+`)

func stripPunct(s string) string {
	return strings.TrimSpace(punctRe.ReplaceAllString(s, " "))
}
