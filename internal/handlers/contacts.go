package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contactly/contactly/internal/middleware"
	"github.com/contactly/contactly/internal/services"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/response"
)

// ContactHandler exposes contact CRUD and the birthday lookahead.
type ContactHandler struct {
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func ownerID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.CtxUserIDKey)
	if id == "" {
		response.Error(c, appErrors.ErrUnauthenticated)
		return "", false
	}
	return id, true
}

// Create stores a new contact.
// POST /api/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req services.CreateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	contact, err := h.contacts.Create(c.Request.Context(), owner, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, contact)
}

// List returns a filtered, paginated page of the owner's contacts.
// GET /api/contacts?q=&first_name=&last_name=&email=&limit=&offset=
func (h *ContactHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	limit, err := intQuery(c, "limit", services.DefaultPageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	if limit < 1 || limit > services.MaxPageSize {
		response.Error(c, appErrors.NewBadRequest("limit must be between 1 and 500"))
		return
	}
	if offset < 0 {
		response.Error(c, appErrors.NewBadRequest("offset must not be negative"))
		return
	}

	query := services.ListContactsQuery{
		Q:         c.Query("q"),
		FirstName: c.Query("first_name"),
		LastName:  c.Query("last_name"),
		Email:     c.Query("email"),
		Limit:     limit,
		Offset:    offset,
	}

	contacts, total, err := h.contacts.List(c.Request.Context(), owner, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, contacts, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Count:  int(total),
	})
}

// Get returns one contact by id.
// GET /api/contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contact)
}

// Replace swaps out every field of one contact. The body must be complete,
// the same shape as creation.
// PUT /api/contacts/:id
func (h *ContactHandler) Replace(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req services.CreateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	update := services.UpdateContactRequest{
		FirstName: &req.FirstName,
		LastName:  &req.LastName,
		Email:     &req.Email,
		Phone:     &req.Phone,
		Birthday:  &req.Birthday,
		Note:      &req.Note,
	}

	contact, err := h.contacts.Update(c.Request.Context(), owner, c.Param("id"), update)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contact)
}

// Update applies a partial update, touching only the fields present in the
// body.
// PATCH /api/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req services.UpdateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	contact, err := h.contacts.Update(c.Request.Context(), owner, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contact)
}

// Delete removes one contact.
// DELETE /api/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpcomingBirthdays lists contacts whose birthday falls within the next
// `days` days.
// GET /api/contacts/upcoming-birthdays?days=7
func (h *ContactHandler) UpcomingBirthdays(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	days, err := intQuery(c, "days", 7)
	if err != nil {
		response.Error(c, err)
		return
	}

	contacts, err := h.contacts.UpcomingBirthdays(c.Request.Context(), owner, days)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contacts)
}
