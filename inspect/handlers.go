package inspect

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/acksell/stash/entity"
	"github.com/acksell/stash/examples/snippets"
	"github.com/acksell/stash/kv"
)

// APIHandler provides REST endpoints over raw keys and the snippet
// collection.
type APIHandler struct {
	store    kv.Store
	snippets *entity.Manager[snippets.Snippet]
}

func NewAPIHandler(store kv.Store, snips *entity.Manager[snippets.Snippet]) *APIHandler {
	return &APIHandler{
		store:    store,
		snippets: snips,
	}
}

// RegisterRoutes registers all API routes on the given router.
func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/keys", h.listKeys)
	// Keys may contain slashes (fetch:https://...), so they are matched as a
	// catch-all.
	r.GET("/api/keys/*key", h.getKey)
	r.PUT("/api/keys/*key", h.putKey)
	r.DELETE("/api/keys/*key", h.deleteKey)

	if h.snippets == nil {
		return
	}
	r.GET("/api/snippets", h.listSnippets)
	r.POST("/api/snippets", h.addSnippet)
	r.GET("/api/snippets/:id", h.getSnippet)
	r.PATCH("/api/snippets/:id", h.updateSnippet)
	r.DELETE("/api/snippets/:id", h.deleteSnippet)
}

// =============================================================================
// Raw keys
// =============================================================================

func (h *APIHandler) listKeys(c *gin.Context) {
	lister, ok := h.store.(kv.Lister)
	if !ok {
		writeError(c, http.StatusNotImplemented, "store does not support listing keys")
		return
	}
	keys, err := lister.Keys(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "list keys failed: "+err.Error())
		return
	}
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

// keyParam returns the key of a /api/keys/*key route. It writes a 400 and
// reports false when the key is empty.
func keyParam(c *gin.Context) (string, bool) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		writeError(c, http.StatusBadRequest, "key is required")
		return "", false
	}
	return key, true
}

func (h *APIHandler) getKey(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	value, ok, err := h.store.GetItem(c.Request.Context(), key)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "get failed: "+err.Error())
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "key not found: "+key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// putKey stores the raw request body under the key.
func (h *APIHandler) putKey(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if err := h.store.SetItem(c.Request.Context(), key, string(body)); err != nil {
		writeError(c, http.StatusInternalServerError, "put failed: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) deleteKey(c *gin.Context) {
	key, ok := keyParam(c)
	if !ok {
		return
	}
	if err := h.store.RemoveItem(c.Request.Context(), key); err != nil {
		writeError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Snippets
// =============================================================================

type snippetRequest struct {
	Name  *string   `json:"name"`
	Value *string   `json:"value"`
	Tags  *[]string `json:"tags"`
}

func (h *APIHandler) listSnippets(c *gin.Context) {
	list, err := h.snippets.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "list snippets failed: "+err.Error())
		return
	}
	list = snippets.Search(list, c.Query("q"))
	if list == nil {
		list = []entity.Entity[snippets.Snippet]{}
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
}

func (h *APIHandler) getSnippet(c *gin.Context) {
	id := c.Param("id")
	e, ok, err := h.snippets.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "get snippet failed: "+err.Error())
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "snippet not found: "+id)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *APIHandler) addSnippet(c *gin.Context) {
	var req snippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	s := snippets.New(deref(req.Name), deref(req.Value), derefTags(req.Tags))
	e, err := h.snippets.Add(c.Request.Context(), s)
	if err != nil {
		writeEntityError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *APIHandler) updateSnippet(c *gin.Context) {
	var req snippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	patch := snippets.SnippetPatch{Name: req.Name, Value: req.Value, Tags: req.Tags}
	e, err := h.snippets.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeEntityError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *APIHandler) deleteSnippet(c *gin.Context) {
	if err := h.snippets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeEntityError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeEntityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrBuiltIn):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, entity.ErrInvalidPatch),
		errors.Is(err, snippets.ErrEmptyName),
		errors.Is(err, snippets.ErrEmptyValue),
		errors.Is(err, snippets.ErrNameLength):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, err.Error())
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTags(t *[]string) []string {
	if t == nil {
		return nil
	}
	return *t
}
