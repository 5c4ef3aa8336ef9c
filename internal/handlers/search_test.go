package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/middleware"
	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/services"
)

func setupSearchRouter(handler *SearchHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "alice")
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages/search", handler.Search)
	r.GET("/messages/:message_id/context", handler.Context)
	return r
}

func TestSearchPassesQueryParams(t *testing.T) {
	search := new(mocks.SearchServiceMock)
	router := setupSearchRouter(NewSearchHandler(search))
	next := 3
	search.On("SearchMessages", mock.Anything, "c1", "hello world", "alice", 2, 5).Return(models.SearchResultPage{
		Query:          "hello world",
		ConversationID: "c1",
		Messages:       []models.SearchResultMessage{{ID: "m1", HighlightedContent: "<mark>hello</mark>"}},
		TotalCount:     16,
		CurrentPage:    2,
		PageSize:       5,
		HasMore:        true,
		NextPage:       &next,
	}).Once()

	rec := doRequest(router, http.MethodGet, "/conversations/c1/messages/search?q=hello+world&page=2&size=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SearchResultPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(16), resp.TotalCount)
	require.NotNil(t, resp.NextPage)
	assert.Equal(t, 3, *resp.NextPage)
	search.AssertExpectations(t)
}

func TestSearchDefaultsMalformedParams(t *testing.T) {
	search := new(mocks.SearchServiceMock)
	router := setupSearchRouter(NewSearchHandler(search))
	search.On("SearchMessages", mock.Anything, "c1", "", "alice", 0, services.DefaultPageSize).
		Return(models.SearchResultPage{ConversationID: "c1", Messages: []models.SearchResultMessage{}}).Once()

	rec := doRequest(router, http.MethodGet, "/conversations/c1/messages/search?page=abc&size=", "")

	require.Equal(t, http.StatusOK, rec.Code)
	search.AssertExpectations(t)
}

func TestMessageContext(t *testing.T) {
	search := new(mocks.SearchServiceMock)
	router := setupSearchRouter(NewSearchHandler(search))
	search.On("GetMessageContext", mock.Anything, "m1", "alice", 3).
		Return([]models.Message{{ID: "m0"}, {ID: "m1"}, {ID: "m2"}}).Once()

	rec := doRequest(router, http.MethodGet, "/messages/m1/context?size=3", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 3)
	search.AssertExpectations(t)
}
