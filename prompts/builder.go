// Package prompts builds the instruction text sent to the model and holds
// the fixed replies used when no model call is made.
package prompts

import (
	"fmt"
	"strings"
	"unicode"

	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/intents"
)

// Input is everything a prompt can depend on.
type Input struct {
	Intent   intents.Intent
	Compound bool
	Question string
	// Context is the assembled evidence block.
	Context string
	// Sources are display names, best first.
	Sources []string
	// History holds the previous turns, oldest first.
	History []conversation.Turn
}

// Prompt is the model input. Context is sent after the instruction text
// when non-empty; prompts that quote the evidence inline leave it empty.
type Prompt struct {
	Text    string
	Context string
}

const formattingRules = `Formatting rules:
- Plain text only. Do not use markdown emphasis such as ** or _.
- Do not use bullet or numbered lists, except one item per line when listing things.
- If the question covers several topics, answer each in its own short labeled paragraph, separated by one blank line.
- Do not mention sources or file names; they are appended automatically.
- Answer only from the provided context. If it does not contain the answer, say so.`

// Build picks the instruction for the intent. It is pure and deterministic.
func Build(in Input) Prompt {
	switch {
	case in.Intent == intents.About:
		return Prompt{Text: summary(in), Context: in.Context}
	case in.Intent == intents.Definition && !in.Compound:
		return Prompt{Text: definition(in), Context: in.Context}
	case len(in.History) > 0 && in.Intent == intents.QA:
		return Prompt{Text: followUp(in)}
	default:
		return Prompt{Text: general(in)}
	}
}

func summary(in Input) string {
	ref := ""
	if len(in.Sources) > 0 {
		ref = " of " + in.Sources[0]
	}
	return fmt.Sprintf(`Give a short overview%s in one or two paragraphs.
Cover the main topics it discusses and its key findings or recommendations.

%s`, ref, formattingRules)
}

func definition(in Input) string {
	return fmt.Sprintf(`Define the term asked about below in two or three sentences.
Start with a direct definition. Do not use lists or headings.

Question: %s

%s`, in.Question, formattingRules)
}

func followUp(in Input) string {
	return fmt.Sprintf(`This is a follow-up question in an ongoing conversation. Connect the answer to what was discussed before, and use the current context for new details.

Current question: %s

Previous context:
%s

Current context:
%s

%s`, in.Question, conversation.Summarize(in.History), in.Context, formattingRules)
}

func general(in Input) string {
	return fmt.Sprintf(`Answer the question using the context below. Be direct, clear and conversational.

Question: %s

Context:
%s

%s`, in.Question, in.Context, formattingRules)
}

// Fixed replies.
const (
	Greeting      = "Hello! I can answer questions about your uploaded documents and ingested web pages. What would you like to know?"
	Help          = "Upload PDF, text, markdown or CSV files, or add a web page by URL, then ask questions about them. Try \"summarize the document\", \"define <term>\", or ask several questions at once."
	NoEvidence    = "I couldn't find relevant information in the uploaded documents or web pages. Please try rephrasing your question."
	EmptyQuestion = "Please enter a question about your documents or ingested web pages."
	Apology       = "I'm sorry, I hit an unexpected error while answering. Please try again."

	smalltalkThanks = "You're welcome! If you have more questions about your documents or web sources, just ask."
	smalltalkAck    = "Got it. When you're ready, ask me about your uploaded documents or ingested web pages."
	smalltalkOther  = "I'm here and happy to help! Ask me about your uploaded documents or ingested web pages."
)

// Smalltalk returns the reply for a standalone smalltalk message.
func Smalltalk(question string) string {
	q := intents.Normalize(question)
	switch {
	case strings.Contains(q, "thank"):
		return smalltalkThanks
	case q == "ok" || q == "okay" || strings.HasPrefix(q, "ok ") || strings.HasPrefix(q, "okay ") ||
		strings.HasPrefix(q, "ok.") || strings.HasPrefix(q, "okay."):
		return smalltalkAck
	}
	return smalltalkOther
}

// Disambiguation asks for a full name instead of a lone surname.
func Disambiguation(surname string) string {
	if surname == "" {
		return "Several people could match that name. Please use their full name."
	}
	r := []rune(surname)
	name := string(unicode.ToUpper(r[0])) + string(r[1:])
	return fmt.Sprintf("Several people could be called %s. Please use their full name, for example \"who is <first name> %s\".", name, name)
}
