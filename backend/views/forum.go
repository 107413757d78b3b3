package views

import (
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/utils"
)

// post is a topic or comment prepared for a template.
type post struct {
	Position  int
	ID        uint
	AuthorID  uint
	Author    string
	Avatar    string
	Signature string
	Body      string
	Upload    string
	TimeAdded string
}

func (s *Site) post(c *fiber.Ctx, id uint, author models.User, body, upload, added string) post {
	p := post{
		ID:        id,
		AuthorID:  author.ID,
		Author:    author.Username,
		Body:      body,
		Upload:    upload,
		TimeAdded: added,
	}
	if us, err := s.Settings.Get(c.UserContext(), author.ID); err == nil {
		p.Avatar = s.Settings.AvatarURL(us)
		p.Signature = us.Signature
	}
	return p
}

func topicURL(t *models.Topic) string {
	return fmt.Sprintf("/forum/%s/%d/", t.Section, t.ID)
}

func (s *Site) ForumHome(c *fiber.Ctx) error {
	sections, err := s.Forum.Sections(c.UserContext())
	if err != nil {
		return err
	}
	info, err := s.Forum.Info(c.UserContext())
	if err != nil {
		return err
	}
	return s.render(c, "forum/home", fiber.Map{"SectionStats": sections, "Info": info})
}

// listing renders a topic list page with the site search form applied.
func (s *Site) listing(c *fiber.Ctx, title string, q forum.TopicQuery) error {
	data := utils.NewFormData()
	for k, v := range c.Queries() {
		data.Values[k] = v
	}
	var f forms.SearchForm
	if res := forms.Run(&f, data); !res.Valid {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid search query")
	}
	q.Search = forum.SearchParams{Query: f.Query, InTitle: f.InTitle, InQuestion: f.InQuestion, InUsername: f.InUsername}
	q.Offset = c.Query("offset")

	page, err := s.Forum.Topics(c.UserContext(), q)
	if err != nil {
		return err
	}
	return s.render(c, "forum/topics", fiber.Map{
		"Title":       title,
		"Section":     q.Section,
		"Topics":      page.Topics,
		"Pager":       pager(c, page.Page, page.Total),
		"Search":      f,
		"ShowSuccess": c.Query("success_updated") != "",
	})
}

func (s *Site) Search(c *fiber.Ctx) error {
	return s.listing(c, "Search", forum.TopicQuery{})
}

func (s *Site) MyTopics(c *fiber.Ctx) error {
	return s.listing(c, "My topics", forum.TopicQuery{AuthorID: utils.CurrentUserID(c)})
}

func (s *Site) Section(c *fiber.Ctx) error {
	section := c.Params("section")
	name, ok := models.SectionName(section)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Section not found")
	}
	return s.listing(c, name, forum.TopicQuery{Section: section})
}

func (s *Site) Topic(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}
	topic, err := s.Forum.Topic(c.UserContext(), id, c.Params("section"))
	if err != nil {
		return err
	}
	page, err := s.Forum.Comments(c.UserContext(), id, c.Query("offset"))
	if err != nil {
		return err
	}

	v := s.viewer(c)
	head := s.post(c, topic.ID, topic.Author, topic.Question, topic.Upload, v.Time(topic.TimeAdded))
	comments := make([]post, 0, len(page.Comments))
	for i, cm := range page.Comments {
		p := s.post(c, cm.ID, cm.Author, cm.Comment, cm.Upload, v.Time(cm.TimeAdded))
		p.Position = page.Page.Offset + i + 1
		comments = append(comments, p)
	}

	return s.render(c, "forum/topic", fiber.Map{
		"Topic":     topic,
		"Head":      head,
		"Comments":  comments,
		"Pager":     pager(c, page.Page, page.Total),
		"CanDelete": v.Authenticated() && (v.ID == topic.AuthorID || v.Superuser),
	})
}

func (s *Site) AddTopicPage(c *fiber.Ctx) error {
	return s.render(c, "forum/add_topic", fiber.Map{"Selected": c.Query("section", models.SectionGeneral)})
}

func (s *Site) AddTopic(c *fiber.Ctx) error {
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	topic, err := s.Forum.CreateTopic(c.UserContext(), utils.CurrentUserID(c), data, forms.SourceSite)
	if err != nil {
		msg := message(c, err)
		if msg == "" {
			return err
		}
		c.Status(fiber.StatusBadRequest)
		return s.render(c, "forum/add_topic", fiber.Map{
			"Error":    msg,
			"Title":    data.Value("title"),
			"Question": data.Value("question"),
			"Selected": data.Value("section"),
		})
	}
	return c.Redirect("/forum/"+topic.Section+"/?success_updated=1", fiber.StatusFound)
}

func (s *Site) AddCommentPage(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}
	topic, err := s.Forum.FindTopic(c.UserContext(), id, c.Params("section"))
	if err != nil {
		return err
	}
	return s.render(c, "forum/add_comment", fiber.Map{"Topic": topic})
}

func (s *Site) AddComment(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}
	data, err := utils.ReadForm(c)
	if err != nil {
		return err
	}

	section := c.Params("section")
	if _, err := s.Forum.CreateComment(c.UserContext(), utils.CurrentUserID(c), id, section, data, forms.SourceSite); err != nil {
		msg := message(c, err)
		if msg == "" {
			return err
		}
		topic, ferr := s.Forum.FindTopic(c.UserContext(), id, section)
		if ferr != nil {
			return ferr
		}
		c.Status(fiber.StatusBadRequest)
		return s.render(c, "forum/add_comment", fiber.Map{
			"Topic":   topic,
			"Error":   msg,
			"Comment": data.Value("comment"),
		})
	}

	offset, err := s.Forum.LastCommentOffset(c.UserContext(), id)
	if err != nil {
		return err
	}
	target := fmt.Sprintf("/forum/%s/%d/", url.PathEscape(section), id)
	if offset > 0 {
		target += fmt.Sprintf("?offset=%d", offset)
	}
	return c.Redirect(target, fiber.StatusFound)
}

func (s *Site) DeletePage(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}
	topic, err := s.Forum.FindTopic(c.UserContext(), id, c.Params("section"))
	if err != nil {
		return err
	}
	if v := s.viewer(c); topic.AuthorID != v.ID && !v.Superuser {
		return fiber.NewError(fiber.StatusForbidden, "Only the author can delete this topic")
	}
	return s.render(c, "forum/delete", fiber.Map{"Topic": topic, "Back": topicURL(topic)})
}

func (s *Site) Delete(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return err
	}
	section := c.Params("section")
	if err := s.Forum.DeleteTopic(c.UserContext(), utils.CurrentUserID(c), id, section); err != nil {
		return err
	}
	return c.Redirect("/forum/"+url.PathEscape(section)+"/?success_updated=1", fiber.StatusFound)
}
