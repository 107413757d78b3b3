package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
)

type CommentsController struct {
	Forum    *forum.Service
	Settings *settings.Service
	Storage  *utils.Storage
}

func NewCommentsController(f *forum.Service, s *settings.Service, storage *utils.Storage) *CommentsController {
	return &CommentsController{Forum: f, Settings: s, Storage: storage}
}

// GetTopicComments godoc
// @Summary Get topic comments
// @Description Returns the comments of a topic oldest first, 20 per page
// @Tags comments
// @Produce json
// @Param id path int true "Topic ID"
// @Param offset query int false "Page offset, a multiple of 20"
// @Success 200 {object} utils.PaginatedResponse{data=[]CommentResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Router /topics/{id}/comments [get]
func (cc *CommentsController) GetTopicComments(c *fiber.Ctx) error {
	id, err := topicID(c)
	if err != nil {
		return err
	}

	page, err := cc.Forum.Comments(c.UserContext(), id, c.Query("offset"))
	if err != nil {
		return err
	}

	p := newPresenter(c, cc.Settings, cc.Storage)
	return utils.Paginate(c, p.comments(page.Comments), page.Total, page.Page.Offset, forum.PageSize, page.Page.Next, page.Page.Back)
}

// AddComment godoc
// @Summary Add comment to topic
// @Tags comments
// @Accept mpfd
// @Produce json
// @Param topic formData int true "Topic ID"
// @Param comment formData string true "Comment, 5 to 2048 characters"
// @Param upload formData file false "Image attachment"
// @Success 201 {object} utils.SuccessResponse{data=CommentResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /addcomment [post]
func (cc *CommentsController) AddComment(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(data.Value("topic"), 10, 64)
	if err != nil || id == 0 {
		return errmsg.FromField(errmsg.Topics, "topic")
	}

	comment, err := cc.Forum.CreateComment(c.UserContext(), utils.CurrentUserID(c), uint(id), "", data, forms.SourceAPI)
	if err != nil {
		return err
	}

	return utils.Created(c, newPresenter(c, cc.Settings, cc.Storage).comment(*comment))
}
