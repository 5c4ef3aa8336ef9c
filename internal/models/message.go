package models

import "time"

// Message is a persisted chat message. The search paths only read it.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	SenderUsername string    `db:"sender_username" json:"sender_username"`
	Content        string    `db:"content" json:"content"`
	Timestamp      time.Time `db:"created_at" json:"timestamp"`
}

// SearchResultMessage is a search hit with its highlighted rendering.
type SearchResultMessage struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	SenderID           string    `json:"sender_id"`
	SenderUsername     string    `json:"sender_username"`
	Content            string    `json:"content"`
	HighlightedContent string    `json:"highlighted_content"`
	Highlighted        bool      `json:"highlighted"`
	Timestamp          time.Time `json:"timestamp"`
}

// SearchResultPage is one page of search hits. NextPage is set only when HasMore is true.
type SearchResultPage struct {
	Query          string                `json:"query"`
	ConversationID string                `json:"conversation_id"`
	Messages       []SearchResultMessage `json:"messages"`
	TotalCount     int64                 `json:"total_count"`
	CurrentPage    int                   `json:"current_page"`
	PageSize       int                   `json:"page_size"`
	HasMore        bool                  `json:"has_more"`
	NextPage       *int                  `json:"next_page,omitempty"`
}
