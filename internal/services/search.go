package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

const (
	DefaultPageSize       = 20
	MaxPageSize           = 100
	MaxQueryLength        = 200
	DefaultContextSize    = 5
	MaxContextSize        = 50
	defaultStoreTimeout   = 3 * time.Second
	defaultContextStep    = time.Minute
	strippedQueryRunes    = "\"'\\"
	strategyIndexed       = "indexed"
	strategyLiteral       = "literal"
	strategyNone          = "none"
	searchOutcomeOK       = "ok"
	searchOutcomeDegraded = "degraded"
	searchOutcomeFailed   = "failed"
)

// AccessChecker decides whether a user may read a conversation.
type AccessChecker interface {
	HasUserAccess(ctx context.Context, userID, conversationID string) bool
}

// SearchService queries message history. It never returns store errors:
// failures degrade to a fallback strategy or to an empty result.
type SearchService interface {
	SearchMessages(ctx context.Context, conversationID, query, actorID string, page, size int) models.SearchResultPage
	GetMessageContext(ctx context.Context, messageID, actorID string, contextSize int) []models.Message
}

// SearchOptions tunes store timeouts and the context window.
type SearchOptions struct {
	StoreTimeout time.Duration
	ContextStep  time.Duration
}

type searchService struct {
	messages     repositories.MessageRepository
	access       AccessChecker
	log          *log.Logger
	storeTimeout time.Duration
	contextStep  time.Duration
}

// NewSearchService builds a SearchService. Zero options fall back to defaults.
func NewSearchService(messages repositories.MessageRepository, access AccessChecker, logger *log.Logger, opts SearchOptions) SearchService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.ContextStep <= 0 {
		opts.ContextStep = defaultContextStep
	}
	return &searchService{
		messages:     messages,
		access:       access,
		log:          logger,
		storeTimeout: opts.StoreTimeout,
		contextStep:  opts.ContextStep,
	}
}

func (s *searchService) hasAccess(ctx context.Context, actorID, conversationID string) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.access.HasUserAccess(callCtx, actorID, conversationID)
}

// searchOutcome is the result of one strategy. A non-nil err marks it degraded.
type searchOutcome struct {
	strategy string
	messages []models.Message
	total    int64
	err      error
}

func (o searchOutcome) degraded() bool {
	return o.err != nil
}

func (s *searchService) SearchMessages(ctx context.Context, conversationID, query, actorID string, page, size int) models.SearchResultPage {
	ctx, span := otel.Tracer("conversation-service/search").Start(ctx, "search.messages")
	defer span.End()
	start := time.Now()

	pageReq := NormalizePage(page, size)
	result := emptyPage(conversationID, pageReq)

	if !s.hasAccess(ctx, actorID, conversationID) {
		observability.ObserveSearch(strategyNone, "denied", time.Since(start))
		return result
	}

	sanitized := SanitizeQuery(query)
	if sanitized == "" {
		observability.ObserveSearch(strategyNone, "empty_query", time.Since(start))
		return result
	}
	result.Query = sanitized
	span.SetAttributes(attribute.String("conversation.id", conversationID), attribute.Int("search.page", pageReq.Page))

	outcome := s.searchIndexed(ctx, conversationID, sanitized, pageReq)
	if outcome.degraded() {
		s.log.Warn("indexed search failed, using literal fallback", "conversation_id", conversationID, "query", sanitized, "err", outcome.err)
		observability.IncSearchFallback()
		outcome = s.searchLiteral(ctx, conversationID, sanitized, pageReq)
	}
	if outcome.degraded() {
		s.log.Error("literal search failed", "conversation_id", conversationID, "query", sanitized, "err", outcome.err)
		observability.ObserveSearch(outcome.strategy, searchOutcomeFailed, time.Since(start))
		return result
	}

	span.SetAttributes(attribute.String("search.strategy", outcome.strategy))
	s.log.Debug("search served", "conversation_id", conversationID, "query", sanitized, "strategy", outcome.strategy, "total", outcome.total)

	hl := newHighlighter(sanitized)
	for _, m := range outcome.messages {
		highlighted, changed := hl.apply(m.Content)
		result.Messages = append(result.Messages, models.SearchResultMessage{
			ID:                 m.ID,
			ConversationID:     m.ConversationID,
			SenderID:           m.SenderID,
			SenderUsername:     m.SenderUsername,
			Content:            m.Content,
			HighlightedContent: highlighted,
			Highlighted:        changed,
			Timestamp:          m.Timestamp,
		})
	}
	result.TotalCount = outcome.total
	result.HasMore = int64(pageReq.Page+1)*int64(pageReq.Size) < outcome.total
	if result.HasMore {
		next := pageReq.Page + 1
		result.NextPage = &next
	}

	status := searchOutcomeOK
	if outcome.strategy == strategyLiteral {
		status = searchOutcomeDegraded
	}
	observability.ObserveSearch(outcome.strategy, status, time.Since(start))
	return result
}

func (s *searchService) searchIndexed(ctx context.Context, conversationID, query string, page repositories.PageRequest) searchOutcome {
	out := searchOutcome{strategy: strategyIndexed}

	callCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if out.messages, out.err = s.messages.SearchText(callCtx, conversationID, query, page); out.err != nil {
		return out
	}
	out.total, out.err = s.messages.CountText(callCtx, conversationID, query)
	return out
}

func (s *searchService) searchLiteral(ctx context.Context, conversationID, query string, page repositories.PageRequest) searchOutcome {
	out := searchOutcome{strategy: strategyLiteral}
	pattern := regexp.QuoteMeta(query)

	callCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if out.messages, out.err = s.messages.SearchPattern(callCtx, conversationID, pattern, page); out.err != nil {
		return out
	}
	out.total, out.err = s.messages.CountPattern(callCtx, conversationID, pattern)
	return out
}

func (s *searchService) GetMessageContext(ctx context.Context, messageID, actorID string, contextSize int) []models.Message {
	ctx, span := otel.Tracer("conversation-service/search").Start(ctx, "search.context")
	defer span.End()

	empty := []models.Message{}

	callCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	anchor, err := s.messages.GetMessage(callCtx, messageID)
	cancel()
	if err != nil {
		if !errors.Is(err, repositories.ErrMessageNotFound) {
			s.log.Warn("context anchor lookup failed", "message_id", messageID, "err", err)
		}
		return empty
	}

	if !s.hasAccess(ctx, actorID, anchor.ConversationID) {
		return empty
	}

	size := clampContextSize(contextSize)
	window := time.Duration(size) * s.contextStep

	callCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	msgs, err := s.messages.ListInRange(callCtx, anchor.ConversationID, anchor.Timestamp.Add(-window), anchor.Timestamp.Add(window))
	if err != nil {
		s.log.Warn("context window lookup failed", "message_id", messageID, "conversation_id", anchor.ConversationID, "err", err)
		return empty
	}
	return trimAround(msgs, anchor, size)
}

// NormalizePage clamps page to >= 0 and size to [1, MaxPageSize].
func NormalizePage(page, size int) repositories.PageRequest {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return repositories.PageRequest{Page: page, Size: size}
}

// SanitizeQuery trims the query, drops quotes and backslashes and caps it at MaxQueryLength runes.
func SanitizeQuery(query string) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedQueryRunes, r) {
			return -1
		}
		return r
	}, query))
	if utf8.RuneCountInString(cleaned) > MaxQueryLength {
		cleaned = string([]rune(cleaned)[:MaxQueryLength])
	}
	return cleaned
}

func emptyPage(conversationID string, page repositories.PageRequest) models.SearchResultPage {
	return models.SearchResultPage{
		ConversationID: conversationID,
		Messages:       []models.SearchResultMessage{},
		CurrentPage:    page.Page,
		PageSize:       page.Size,
	}
}

func clampContextSize(size int) int {
	if size <= 0 {
		return DefaultContextSize
	}
	if size > MaxContextSize {
		return MaxContextSize
	}
	return size
}

// trimAround keeps at most size messages on each side of the anchor.
// msgs must be ordered by timestamp ascending.
func trimAround(msgs []models.Message, anchor models.Message, size int) []models.Message {
	idx := -1
	for i, m := range msgs {
		if m.ID == anchor.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(msgs)
		for i, m := range msgs {
			if m.Timestamp.After(anchor.Timestamp) {
				idx = i
				break
			}
		}
		msgs = append(msgs[:idx:idx], append([]models.Message{anchor}, msgs[idx:]...)...)
	}

	from := idx - size
	if from < 0 {
		from = 0
	}
	to := idx + size + 1
	if to > len(msgs) {
		to = len(msgs)
	}
	return msgs[from:to]
}
