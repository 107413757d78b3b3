package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
)

type TopicsController struct {
	Forum    *forum.Service
	Settings *settings.Service
	Storage  *utils.Storage
}

func NewTopicsController(f *forum.Service, s *settings.Service, storage *utils.Storage) *TopicsController {
	return &TopicsController{Forum: f, Settings: s, Storage: storage}
}

// SectionsResponse lists every section with its statistics
type SectionsResponse struct {
	Sections []forum.SectionInfo `json:"sections"`
	Info     forum.Info          `json:"info"`
}

func topicID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "Topic not found")
	}
	return uint(id), nil
}

// searchParams reads the search query and its field flags from the query string.
func searchParams(c *fiber.Ctx) (forum.SearchParams, error) {
	data := utils.NewFormData()
	for k, v := range c.Queries() {
		data.Values[k] = v
	}
	var f forms.SearchForm
	if res := forms.Run(&f, data); !res.Valid {
		return forum.SearchParams{}, fiber.NewError(fiber.StatusBadRequest, "Invalid search query")
	}
	return forum.SearchParams{
		Query:      f.Query,
		InTitle:    f.InTitle,
		InQuestion: f.InQuestion,
		InUsername: f.InUsername,
	}, nil
}

func (tc *TopicsController) list(c *fiber.Ctx, section string) error {
	search, err := searchParams(c)
	if err != nil {
		return err
	}

	page, err := tc.Forum.Topics(c.UserContext(), forum.TopicQuery{
		Section:   section,
		Search:    search,
		SearchAll: true,
		Offset:    c.Query("offset"),
	})
	if err != nil {
		return err
	}

	p := newPresenter(c, tc.Settings, tc.Storage)
	return utils.Paginate(c, p.topics(page.Topics), page.Total, page.Page.Offset, forum.PageSize, page.Page.Next, page.Page.Back)
}

// GetTopics godoc
// @Summary List topics
// @Description Returns topics newest first, 20 per page. Without field flags the search matches title, question and author.
// @Tags topics
// @Produce json
// @Param search query string false "Search query"
// @Param search_in_title query bool false "Match titles"
// @Param search_in_question query bool false "Match questions"
// @Param search_in_username query bool false "Match author usernames"
// @Param offset query int false "Page offset, a multiple of 20"
// @Success 200 {object} utils.PaginatedResponse{data=[]TopicResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /topics [get]
func (tc *TopicsController) GetTopics(c *fiber.Ctx) error {
	return tc.list(c, "")
}

// GetSectionTopics godoc
// @Summary List topics of a section
// @Tags sections
// @Produce json
// @Param section path string true "Section alias"
// @Param search query string false "Search query"
// @Param offset query int false "Page offset, a multiple of 20"
// @Success 200 {object} utils.PaginatedResponse{data=[]TopicResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Router /sections/{section} [get]
func (tc *TopicsController) GetSectionTopics(c *fiber.Ctx) error {
	return tc.list(c, c.Params("section"))
}

// GetSections godoc
// @Summary List sections
// @Description Returns every section with its topic count and the general forum statistics
// @Tags sections
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=SectionsResponse}
// @Router /sections [get]
func (tc *TopicsController) GetSections(c *fiber.Ctx) error {
	sections, err := tc.Forum.Sections(c.UserContext())
	if err != nil {
		return err
	}
	info, err := tc.Forum.Info(c.UserContext())
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, SectionsResponse{Sections: sections, Info: info})
}

// GetTopic godoc
// @Summary Get topic
// @Description Returns a topic and counts the view
// @Tags topics
// @Produce json
// @Param id path int true "Topic ID"
// @Success 200 {object} utils.SuccessResponse{data=TopicDetailResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Router /topics/{id} [get]
func (tc *TopicsController) GetTopic(c *fiber.Ctx) error {
	id, err := topicID(c)
	if err != nil {
		return err
	}

	topic, err := tc.Forum.Topic(c.UserContext(), id, "")
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, newPresenter(c, tc.Settings, tc.Storage).topicDetail(*topic))
}

// CreateTopic godoc
// @Summary Create topic
// @Tags topics
// @Accept mpfd
// @Produce json
// @Param title formData string true "Title, 8 to 100 characters"
// @Param question formData string true "Question, 5 to 2048 characters"
// @Param section formData string false "Section alias, general by default"
// @Param upload formData file false "Image attachment"
// @Success 201 {object} utils.SuccessResponse{data=TopicDetailResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /topics [post]
func (tc *TopicsController) CreateTopic(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	topic, err := tc.Forum.CreateTopic(c.UserContext(), utils.CurrentUserID(c), data, forms.SourceAPI)
	if err != nil {
		return err
	}

	topic, err = tc.Forum.FindTopic(c.UserContext(), topic.ID, "")
	if err != nil {
		return err
	}
	return utils.Created(c, newPresenter(c, tc.Settings, tc.Storage).topicDetail(*topic))
}

// DeleteTopic godoc
// @Summary Delete topic
// @Description Deletes a topic with its comments. Only the author or a superuser may delete.
// @Tags topics
// @Param id path int true "Topic ID"
// @Success 204
// @Failure 401 {object} utils.ErrorResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /topics/{id} [delete]
func (tc *TopicsController) DeleteTopic(c *fiber.Ctx) error {
	id, err := topicID(c)
	if err != nil {
		return err
	}

	if err := tc.Forum.DeleteTopic(c.UserContext(), utils.CurrentUserID(c), id, ""); err != nil {
		return err
	}
	return utils.NoContent(c)
}
