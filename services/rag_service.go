package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github/itish2003/ragqa/answer"
	"github/itish2003/ragqa/conversation"
	"github/itish2003/ragqa/intents"
	"github/itish2003/ragqa/llm"
	"github/itish2003/ragqa/metrics"
	"github/itish2003/ragqa/models"
	"github/itish2003/ragqa/prompts"
	"github/itish2003/ragqa/retrieval"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RAGService interface defines the question answering operations.
type RAGService interface {
	Ask(ctx context.Context, sessionID, question string) Answer
	NewSession(sessionID string) string
	ResetAll()
}

// EntertainmentLookup answers movie questions; false means fall through.
type EntertainmentLookup interface {
	Answer(ctx context.Context, sessionID, question string) (string, bool)
}

// Answer is one finished reply. Sources and Pages are empty for replies
// that did not come from retrieved evidence.
type Answer struct {
	Intent  intents.Intent
	Text    string
	Sources []string
	Pages   map[string][]string
}

// Citation formats the sources as "a.pdf (p. 1, 3), b.pdf", or "".
func (a Answer) Citation() string {
	if len(a.Sources) == 0 {
		return ""
	}
	return answer.FormatSources(a.Sources, a.Pages)
}

// Render is the text plus its "Sources:" block.
func (a Answer) Render() string {
	return a.Text + answer.SourcesBlock(a.Sources, a.Pages)
}

// RAGOptions tunes the pipeline.
type RAGOptions struct {
	Limits       answer.Limits
	HistoryTurns int
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	classifier    *intents.Classifier
	retriever     *retrieval.Retriever
	generator     llm.Generator
	streamer      *answer.Streamer
	sessions      *conversation.Store
	entertainment EntertainmentLookup
	metrics       *metrics.Metrics
	opts          RAGOptions
	logger        *zap.Logger
}

// NewRAGService creates a new RAG service instance. entertainment and m may be nil.
func NewRAGService(
	classifier *intents.Classifier,
	retriever *retrieval.Retriever,
	generator llm.Generator,
	streamer *answer.Streamer,
	sessions *conversation.Store,
	entertainment EntertainmentLookup,
	m *metrics.Metrics,
	opts RAGOptions,
	logger *zap.Logger,
) RAGService {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 2
	}
	if opts.Limits == (answer.Limits{}) {
		opts.Limits = answer.DefaultLimits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ragServiceImpl{
		classifier:    classifier,
		retriever:     retriever,
		generator:     generator,
		streamer:      streamer,
		sessions:      sessions,
		entertainment: entertainment,
		metrics:       m,
		opts:          opts,
		logger:        logger.Named("rag"),
	}
}

// Ask answers one question. Every failure becomes reply text; nothing is
// returned as an error.
func (r *ragServiceImpl) Ask(ctx context.Context, sessionID, question string) Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		r.metrics.ShortCircuit("empty")
		return Answer{Text: prompts.EmptyQuestion}
	}

	session := r.sessions.Get(sessionID)
	cls := r.classifier.Classify(question, session.HasRecent())
	r.metrics.Ask(cls.Intent.String())
	r.logger.Debug("classified question",
		zap.String("session", session.ID()),
		zap.Stringer("intent", cls.Intent),
		zap.Bool("compound", cls.Compound),
	)

	// 1. Replies that need no evidence
	switch cls.Intent {
	case intents.Greeting:
		r.metrics.ShortCircuit("greeting")
		return Answer{Intent: cls.Intent, Text: prompts.Greeting}
	case intents.Help:
		r.metrics.ShortCircuit("help")
		return Answer{Intent: cls.Intent, Text: prompts.Help}
	case intents.Smalltalk:
		r.metrics.ShortCircuit("smalltalk")
		return Answer{Intent: cls.Intent, Text: prompts.Smalltalk(question)}
	}

	// 2. Optional movie lookup
	if r.entertainment != nil && !cls.Compound {
		if text, ok := r.entertainment.Answer(ctx, session.ID(), question); ok {
			r.metrics.ShortCircuit("entertainment")
			return Answer{Intent: cls.Intent, Text: answer.Finalize(text, r.opts.Limits.Entertainment)}
		}
	}

	// 3. Evidence
	start := time.Now()
	res, err := r.retriever.Retrieve(ctx, question, cls)
	r.metrics.ObserveRetrieval(time.Since(start))
	switch {
	case errors.Is(err, retrieval.ErrAmbiguousName):
		r.metrics.ShortCircuit("ambiguous_name")
		return Answer{Intent: cls.Intent, Text: prompts.Disambiguation(res.Name.Phrase)}
	case errors.Is(err, retrieval.ErrNoEvidence):
		r.metrics.ShortCircuit("no_evidence")
		return Answer{Intent: cls.Intent, Text: prompts.NoEvidence}
	case err != nil:
		r.logger.Warn("retrieval failed", zap.Error(err))
		return Answer{Intent: cls.Intent, Text: prompts.NoEvidence}
	}

	display := make([]string, len(res.Sources))
	for i, s := range res.Sources {
		display[i] = models.DisplayName(s)
	}

	// 4. History is read before this turn is recorded
	history := session.Recent(r.opts.HistoryTurns)
	session.Add(question, res.Context, display)

	prompt := prompts.Build(prompts.Input{
		Intent:   cls.Intent,
		Compound: cls.Compound,
		Question: question,
		Context:  res.Context,
		Sources:  display,
		History:  history,
	})

	// 5. Generate
	start = time.Now()
	stream := r.generator.GenerateStream(ctx, prompt.Text, prompt.Context)
	text, err := r.streamer.Stream(ctx, stream, r.opts.Limits.For(cls), prompts.Apology)
	r.metrics.ObserveGeneration(time.Since(start))
	if err != nil {
		r.logger.Warn("generation incomplete", zap.Error(err))
	}

	if text == "" || text == prompts.Apology {
		if text == "" {
			text = prompts.Apology
		}
		return Answer{Intent: cls.Intent, Text: text}
	}
	return Answer{Intent: cls.Intent, Text: text, Sources: res.Sources, Pages: res.Pages}
}

// NewSession clears the named session, or creates a fresh one when id is
// empty, and returns its id.
func (r *ragServiceImpl) NewSession(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	r.sessions.Reset(sessionID)
	return sessionID
}

func (r *ragServiceImpl) ResetAll() {
	r.sessions.ResetAll()
}
