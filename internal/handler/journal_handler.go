package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type journalRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Mood    string `json:"mood"`
}

// ListJournals 返回自己的日记，最新在前
func (a *API) ListJournals(c *gin.Context) {
	entries, err := a.journals.List(currentUserID(c))
	if err != nil {
		a.handleJournalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"journals": entries})
}

// CreateJournal 新建日记
func (a *API) CreateJournal(c *gin.Context) {
	var payload journalRequest
	if !bindJSON(c, &payload, "Invalid journal payload") {
		return
	}

	entry, err := a.journals.Create(currentUserID(c), service.JournalInput{
		Title:   payload.Title,
		Content: payload.Content,
		Mood:    payload.Mood,
	})
	if err != nil {
		a.handleJournalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"journal": entry})
}

// GetJournal 返回单篇日记
func (a *API) GetJournal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid journal id")
		return
	}

	entry, err := a.journals.Get(currentUserID(c), id)
	if err != nil {
		a.handleJournalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"journal": entry})
}

// DeleteJournal 删除单篇日记
func (a *API) DeleteJournal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid journal id")
		return
	}

	if err := a.journals.Delete(currentUserID(c), id); err != nil {
		a.handleJournalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleJournalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJournalInvalidInput):
		respondError(c, http.StatusBadRequest, "Title and content are required")
	case errors.Is(err, service.ErrJournalNotFound):
		respondError(c, http.StatusNotFound, "Journal not found")
	default:
		a.logger.Error("journal request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
