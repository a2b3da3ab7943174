package handler

import (
	"errors"
	"io"
	"net/http"

	"cardcircle/internal/domain/group"
	"cardcircle/internal/services"
	"cardcircle/internal/transport/httpdto"
	"cardcircle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupHandler struct {
	service       *services.MembershipService
	photoMaxBytes int64
	logger        *logger.Logger
}

func NewGroupHandler(service *services.MembershipService, photoMaxBytes int64, l *logger.Logger) *GroupHandler {
	return &GroupHandler{service: service, photoMaxBytes: photoMaxBytes, logger: l}
}

func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	groups, err := h.service.ListMyGroups(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"groups": httpdto.FromGroupSlice(groups, userID)}))
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}
	g, err := h.service.CreateGroup(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) Join(c *gin.Context) {
	var req httpdto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}
	g, err := h.service.JoinByCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) Get(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	g, err := h.service.GetGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) Members(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	view, err := h.service.GetMembers(c.Request.Context(), userID, groupID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMembersView(view, userID)))
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	res, err := h.service.AddMemberByIdentifier(c.Request.Context(), userID, groupID, req.Identifier)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AddMemberResponse{
		User:  httpdto.MemberDTO{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email, Phone: res.User.Phone, Role: res.Role.String()},
		Added: res.Added,
	}))
}

func (h *GroupHandler) AddMembersBulk(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	var req httpdto.AddMembersBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	res, err := h.service.AddMembersBulk(c.Request.Context(), userID, groupID, req.Identifiers)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	unmatched := res.Unmatched
	if unmatched == nil {
		unmatched = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.BulkAddResponse{
		Added:     res.Added,
		Matched:   res.Matched,
		Unmatched: unmatched,
	}))
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	var req httpdto.RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	g, err := h.service.RemoveMember(c.Request.Context(), userID, groupID, targetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) ModifyAdmin(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	var req httpdto.ModifyAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	g, err := h.service.ModifyAdmin(c.Request.Context(), userID, groupID, targetID, services.AdminAction(req.Action))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) UpdateSettings(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	var req httpdto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	g, err := h.service.UpdateSettings(c.Request.Context(), userID, groupID, group.SettingsPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) UploadPhoto(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	// multipart framing gets 1 MiB on top of the photo cap
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.photoMaxBytes+1<<20)
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, httpdto.NewErrorResponse("photo too large", "PAYLOAD_TOO_LARGE"))
			return
		}
		badRequest(c, "photo file is required")
		return
	}
	defer file.Close()

	// one byte over the cap lets the service report the size error
	data, err := io.ReadAll(io.LimitReader(file, h.photoMaxBytes+1))
	if err != nil {
		badRequest(c, "could not read photo")
		return
	}
	g, err := h.service.UpdateGroupPhoto(c.Request.Context(), userID, groupID, data)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) RegenerateJoinCode(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	g, err := h.service.RegenerateJoinCode(c.Request.Context(), userID, groupID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g, userID)))
}

func (h *GroupHandler) Leave(c *gin.Context) {
	userID, groupID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.service.LeaveGroup(c.Request.Context(), userID, groupID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *GroupHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := callerID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	groupID, ok := pathID(c, "group")
	return userID, groupID, ok
}
