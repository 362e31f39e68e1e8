package services

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github/itish2003/ragqa/prompts"

	"go.uber.org/zap"
)

// SplitCompound splits a question on "?" and keeps the fragments of at
// least three words, each with its "?" restored. When none qualify the
// question is returned unchanged as the only element.
func SplitCompound(question string) []string {
	var subs []string
	for _, part := range strings.Split(question, "?") {
		part = strings.TrimSpace(part)
		if len(strings.Fields(part)) >= 3 {
			subs = append(subs, part+"?")
		}
	}
	if len(subs) == 0 {
		return []string{question}
	}
	return subs
}

// Responder is the transport-facing entry point. It fans a multi-question
// input out to one pipeline run per sub-question.
type Responder struct {
	rag    RAGService
	logger *zap.Logger
}

func NewResponder(rag RAGService, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{rag: rag, logger: logger.Named("responder")}
}

// Respond yields the reply body in pieces. A single question yields its
// answer and then its "Sources:" block. Several questions yield numbered
// answers, each with its own sources, separated by a blank line. A panic
// in the pipeline ends the body with one apology fragment.
func (s *Responder) Respond(ctx context.Context, sessionID, question string) iter.Seq[string] {
	return func(yield func(string) bool) {
		subs := SplitCompound(question)
		if len(subs) <= 1 {
			a, ok := s.safeAsk(ctx, sessionID, question)
			if !ok {
				yield(prompts.Apology)
				return
			}
			if !yield(a.Text) {
				return
			}
			if c := a.Citation(); c != "" {
				yield("\n\nSources: " + c)
			}
			return
		}

		for i, sq := range subs {
			if ctx.Err() != nil {
				return
			}
			var b strings.Builder
			if i > 0 {
				b.WriteString("\n\n")
			}
			a, ok := s.safeAsk(ctx, sessionID, sq)
			if !ok {
				b.WriteString(prompts.Apology)
				yield(b.String())
				return
			}
			fmt.Fprintf(&b, "%d) %s", i+1, strings.TrimRight(a.Text, " \n"))
			if c := a.Citation(); c != "" {
				b.WriteString("\nSources: " + c)
			}
			if !yield(b.String()) {
				return
			}
		}
	}
}

// safeAsk reports false when the pipeline panicked.
func (s *Responder) safeAsk(ctx context.Context, sessionID, question string) (a Answer, ok bool) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("panic while answering", zap.Any("panic", v), zap.Stack("stack"))
			a, ok = Answer{}, false
		}
	}()
	return s.rag.Ask(ctx, sessionID, question), true
}

// Collect runs Respond to completion and returns the whole body.
func (s *Responder) Collect(ctx context.Context, sessionID, question string) string {
	var b strings.Builder
	for part := range s.Respond(ctx, sessionID, question) {
		b.WriteString(part)
	}
	return b.String()
}
