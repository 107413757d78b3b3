package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/utils"
)

// AuthorResponse is the public part of a post author.
type AuthorResponse struct {
	ID       uint   `json:"id" example:"1"`
	Username string `json:"username" example:"gopher"`
	Avatar   string `json:"avatar" example:"/media/avatars/1/1_crop.png"`
}

// TopicResponse is a topic in listings.
type TopicResponse struct {
	ID        uint            `json:"id" example:"1"`
	Title     string          `json:"title" example:"How do I use select_related?"`
	Views     uint            `json:"views" example:"10"`
	Author    AuthorResponse  `json:"author"`
	Section   string          `json:"section" example:"orm"`
	TimeAdded utils.LocalTime `json:"timeAdded"`
}

// TopicDetailResponse is a single topic with its body.
type TopicDetailResponse struct {
	TopicResponse
	Question        string `json:"question"`
	Upload          string `json:"upload"`
	UploadCrop      string `json:"uploadCrop"`
	AuthorSignature string `json:"authorSignature"`
}

// CommentResponse is a comment on a topic.
type CommentResponse struct {
	ID              uint            `json:"id" example:"1"`
	Topic           uint            `json:"topic" example:"1"`
	Comment         string          `json:"comment"`
	Author          AuthorResponse  `json:"author"`
	Upload          string          `json:"upload"`
	UploadCrop      string          `json:"uploadCrop"`
	AuthorSignature string          `json:"authorSignature"`
	TimeAdded       utils.LocalTime `json:"timeAdded"`
}

// UserResponse is a public profile.
type UserResponse struct {
	ID           uint             `json:"id" example:"1"`
	Username     string           `json:"username" example:"gopher"`
	Avatar       string           `json:"avatar"`
	DateJoined   utils.LocalTime  `json:"dateJoined"`
	LastLogin    *utils.LocalTime `json:"lastLogin"`
	Rating       int              `json:"rating" example:"3"`
	ReviewsCount int64            `json:"reviewsCount" example:"5"`
	Feedback     *bool            `json:"feedback"`
	Signature    string           `json:"signature"`
}

// presenter renders models for one viewer.
type presenter struct {
	ctx      context.Context
	settings *settings.Service
	storage  *utils.Storage
	zone     string
	authors  map[uint]*models.UserSettings
}

func newPresenter(c *fiber.Ctx, s *settings.Service, storage *utils.Storage) *presenter {
	ctx := c.UserContext()
	return &presenter{
		ctx:      ctx,
		settings: s,
		storage:  storage,
		zone:     s.Timezone(ctx, utils.CurrentUserID(c)),
		authors:  make(map[uint]*models.UserSettings),
	}
}

func (p *presenter) authorSettings(userID uint) *models.UserSettings {
	if us, ok := p.authors[userID]; ok {
		return us
	}
	us, err := p.settings.Get(p.ctx, userID)
	if err != nil {
		us = nil
	}
	p.authors[userID] = us
	return us
}

func (p *presenter) author(u models.User) AuthorResponse {
	return AuthorResponse{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   p.settings.AvatarURL(p.authorSettings(u.ID)),
	}
}

func (p *presenter) signature(userID uint) string {
	if us := p.authorSettings(userID); us != nil {
		return us.Signature
	}
	return ""
}

func (p *presenter) upload(rel string) (string, string) {
	if rel == "" {
		return "", ""
	}
	return p.storage.FileURL(rel), p.storage.FileURL(utils.CropPath(rel))
}

func (p *presenter) topic(t models.Topic) TopicResponse {
	return TopicResponse{
		ID:        t.ID,
		Title:     t.Title,
		Views:     t.Views,
		Author:    p.author(t.Author),
		Section:   t.Section,
		TimeAdded: utils.InZone(t.TimeAdded, p.zone),
	}
}

func (p *presenter) topics(ts []models.Topic) []TopicResponse {
	out := make([]TopicResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, p.topic(t))
	}
	return out
}

func (p *presenter) topicDetail(t models.Topic) TopicDetailResponse {
	upload, crop := p.upload(t.Upload)
	return TopicDetailResponse{
		TopicResponse:   p.topic(t),
		Question:        t.Question,
		Upload:          upload,
		UploadCrop:      crop,
		AuthorSignature: p.signature(t.AuthorID),
	}
}

func (p *presenter) comment(cm models.Comment) CommentResponse {
	upload, crop := p.upload(cm.Upload)
	return CommentResponse{
		ID:              cm.ID,
		Topic:           cm.TopicID,
		Comment:         cm.Comment,
		Author:          p.author(cm.Author),
		Upload:          upload,
		UploadCrop:      crop,
		AuthorSignature: p.signature(cm.AuthorID),
		TimeAdded:       utils.InZone(cm.TimeAdded, p.zone),
	}
}

func (p *presenter) comments(cs []models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(cs))
	for _, cm := range cs {
		out = append(out, p.comment(cm))
	}
	return out
}

func (p *presenter) user(u models.User, info rating.Info) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		Avatar:       p.settings.AvatarURL(p.authorSettings(u.ID)),
		DateJoined:   utils.InZone(u.CreatedAt, p.zone),
		LastLogin:    utils.InZonePtr(u.LastLogin, p.zone),
		Rating:       info.Rating,
		ReviewsCount: info.Reviews,
		Feedback:     info.Feedback,
		Signature:    p.signature(u.ID),
	}
}
