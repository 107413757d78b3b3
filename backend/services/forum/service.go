// Package forum serves sections, topics and comments.
package forum

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/waflawe/Omenforcer/backend/cache"
	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	infoCacheKey     = "forum:info"
	sectionsCacheKey = "forum:sections"
)

// CropQueue schedules the square crop of a stored image.
type CropQueue interface {
	Enqueue(ctx context.Context, path string) error
}

type Service struct {
	db       *gorm.DB
	cache    *cache.Cache
	statsTTL time.Duration
	storage  *utils.Storage
	crops    CropQueue
	logger   *zap.Logger
}

func NewService(db *gorm.DB, c *cache.Cache, statsTTL time.Duration, storage *utils.Storage, crops CropQueue, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		cache:    c,
		statsTTL: statsTTL,
		storage:  storage,
		crops:    crops,
		logger:   logger.Named("forum"),
	}
}

// SectionInfo is a section with its topic count and latest activity.
type SectionInfo struct {
	Alias       string     `json:"alias"`
	Name        string     `json:"name"`
	Topics      int64      `json:"topics"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Info is the general forum statistics block.
type Info struct {
	Users          int64  `json:"users"`
	Topics         int64  `json:"topics"`
	Comments       int64  `json:"comments"`
	LastJoinedUser string `json:"lastJoinedUser"`
}

// TopicPage is one page of a topic listing.
type TopicPage struct {
	Topics []models.Topic
	Total  int64
	Page   Page
}

// CommentPage is one page of a topic's comments.
type CommentPage struct {
	Comments []models.Comment
	Total    int64
	Page     Page
}

// TopicQuery filters a topic listing. Zero fields are ignored.
type TopicQuery struct {
	Section  string
	AuthorID uint
	Search   SearchParams
	// SearchAll matches every field when no search flag is set.
	SearchAll bool
	Offset    string
}

func (s *Service) Sections(ctx context.Context) ([]SectionInfo, error) {
	if s.cache == nil {
		return s.loadSections(ctx)
	}
	return cache.Remember(ctx, s.cache, sectionsCacheKey, s.statsTTL, func() ([]SectionInfo, error) {
		return s.loadSections(ctx)
	})
}

type sectionRow struct {
	Section string
	Total   int64
}

func (s *Service) loadSections(ctx context.Context) ([]SectionInfo, error) {
	var rows []sectionRow
	err := s.db.WithContext(ctx).Model(&models.Topic{}).
		Select("section, COUNT(*) AS total").
		Group("section").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count topics: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Section] = r.Total
	}

	out := make([]SectionInfo, 0, len(models.Sections))
	for _, sec := range models.Sections {
		info := SectionInfo{Alias: sec.Alias, Name: sec.Name, Topics: counts[sec.Alias]}
		if info.Topics > 0 {
			var last models.Topic
			err := s.db.WithContext(ctx).Where("section = ?", sec.Alias).
				Order("time_added DESC").Select("time_added").First(&last).Error
			if err == nil {
				t := last.TimeAdded
				info.LastUpdated = &t
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Service) Info(ctx context.Context) (Info, error) {
	if s.cache == nil {
		return s.loadInfo(ctx)
	}
	return cache.Remember(ctx, s.cache, infoCacheKey, s.statsTTL, func() (Info, error) {
		return s.loadInfo(ctx)
	})
}

func (s *Service) loadInfo(ctx context.Context) (Info, error) {
	var info Info
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&info.Users).Error; err != nil {
		return info, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.Topic{}).Count(&info.Topics).Error; err != nil {
		return info, fmt.Errorf("failed to count topics: %w", err)
	}
	if err := db.Model(&models.Comment{}).Count(&info.Comments).Error; err != nil {
		return info, fmt.Errorf("failed to count comments: %w", err)
	}
	var last models.User
	if err := db.Order("created_at DESC").Order("id DESC").First(&last).Error; err == nil {
		info.LastJoinedUser = last.Username
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return info, fmt.Errorf("failed to load last user: %w", err)
	}
	return info, nil
}

// RefreshStats recomputes the cached section and forum statistics.
func (s *Service) RefreshStats(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	info, err := s.loadInfo(ctx)
	if err != nil {
		return err
	}
	sections, err := s.loadSections(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, infoCacheKey, info, s.statsTTL); err != nil {
		return err
	}
	return s.cache.Set(ctx, sectionsCacheKey, sections, s.statsTTL)
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, infoCacheKey, sectionsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate forum stats", zap.Error(err))
	}
}

// Topics lists topics newest first.
func (s *Service) Topics(ctx context.Context, q TopicQuery) (TopicPage, error) {
	if q.Section != "" {
		if _, ok := models.SectionName(q.Section); !ok {
			return TopicPage{}, fiber.NewError(fiber.StatusNotFound, "Section not found")
		}
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.Topic{})
		if q.Section != "" {
			db = db.Where("topics.section = ?", q.Section)
		}
		if q.AuthorID != 0 {
			db = db.Where("topics.author_id = ?", q.AuthorID)
		}
		return q.Search.Apply(db, q.SearchAll)
	}

	var page TopicPage
	if err := s.db.WithContext(ctx).Scopes(scope).Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("failed to count topics: %w", err)
	}

	offset := NormalizeOffset(q.Offset, page.Total)
	page.Page = Paginate(offset, page.Total)

	err := s.db.WithContext(ctx).Scopes(scope).
		Select("topics.*").
		Preload("Author").
		Order("topics.time_added DESC").Order("topics.id DESC").
		Offset(offset).Limit(PageSize).
		Find(&page.Topics).Error
	if err != nil {
		return page, fmt.Errorf("failed to list topics: %w", err)
	}
	return page, nil
}

// Topic loads a topic and counts the view. A non-empty section must match the topic's.
func (s *Service) Topic(ctx context.Context, id uint, section string) (*models.Topic, error) {
	topic, err := s.FindTopic(ctx, id, section)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count view: %w", err)
	}
	topic.Views++
	return topic, nil
}

// FindTopic loads a topic without counting a view. A non-empty section must match the topic's.
func (s *Service) FindTopic(ctx context.Context, id uint, section string) (*models.Topic, error) {
	if section != "" {
		if _, ok := models.SectionName(section); !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, "Section not found")
		}
	}

	var topic models.Topic
	if err := s.db.WithContext(ctx).Preload("Author").First(&topic, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Topic not found")
		}
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	if section != "" && topic.Section != section {
		return nil, fiber.NewError(fiber.StatusNotFound, "Topic not found")
	}
	return &topic, nil
}

// Comments lists the comments of a topic oldest first.
func (s *Service) Comments(ctx context.Context, topicID uint, rawOffset string) (CommentPage, error) {
	var page CommentPage
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Topic{}).Where("id = ?", topicID).Count(&exists).Error; err != nil {
		return page, fmt.Errorf("failed to load topic: %w", err)
	}
	if exists == 0 {
		return page, fiber.NewError(fiber.StatusNotFound, "Topic not found")
	}

	db := s.db.WithContext(ctx).Model(&models.Comment{}).Where("topic_id = ?", topicID)
	if err := db.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("failed to count comments: %w", err)
	}

	offset := NormalizeOffset(rawOffset, page.Total)
	page.Page = Paginate(offset, page.Total)

	err := s.db.WithContext(ctx).Where("topic_id = ?", topicID).
		Preload("Author").
		Order("time_added ASC").Order("id ASC").
		Offset(offset).Limit(PageSize).
		Find(&page.Comments).Error
	if err != nil {
		return page, fmt.Errorf("failed to list comments: %w", err)
	}
	return page, nil
}

// CreateTopic validates and stores a new topic with its optional image.
func (s *Service) CreateTopic(ctx context.Context, authorID uint, data utils.FormData, src forms.Source) (*models.Topic, error) {
	res := forms.Run(forms.Pick(src, &forms.TopicForm{}, &forms.TopicSerializer{}), data)
	if !res.Valid {
		return nil, errmsg.FromField(errmsg.Topics, res.Field)
	}

	topic := models.Topic{
		AuthorID: authorID,
		Title:    res.Cleaned.Value("title"),
		Question: res.Cleaned.Value("question"),
		Section:  res.Cleaned.Value("section"),
	}
	if topic.Section == "" {
		topic.Section = models.SectionGeneral
	}

	var dup int64
	if err := s.db.WithContext(ctx).Model(&models.Topic{}).Where("title = ?", topic.Title).Count(&dup).Error; err != nil {
		return nil, fmt.Errorf("failed to check title: %w", err)
	}
	if dup > 0 {
		return nil, errmsg.FromField(errmsg.Topics, "title")
	}
	if err := s.db.WithContext(ctx).Model(&models.Topic{}).Where("question = ?", topic.Question).Count(&dup).Error; err != nil {
		return nil, fmt.Errorf("failed to check question: %w", err)
	}
	if dup > 0 {
		return nil, errmsg.FromField(errmsg.Topics, "question")
	}

	fh := res.Cleaned.File("upload")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&topic).Error; err != nil {
			return fmt.Errorf("failed to create topic: %w", err)
		}
		if fh == nil {
			return nil
		}
		rel, err := s.attach(tx, &models.Topic{ID: topic.ID}, fh, func(ext string) string {
			return utils.TopicUploadPath(topic.ID, ext)
		})
		topic.Upload = rel
		return err
	})
	if err != nil {
		s.discard(topic.Upload)
		return nil, err
	}

	s.enqueueCrop(ctx, topic.Upload)
	s.invalidateStats(ctx)
	s.logger.Info("Topic created", zap.Uint("topicID", topic.ID), zap.Uint("authorID", authorID), zap.String("section", topic.Section))
	return &topic, nil
}

// CreateComment validates and stores a comment on topicID.
// A non-empty section must match the topic's.
func (s *Service) CreateComment(ctx context.Context, authorID, topicID uint, section string, data utils.FormData, src forms.Source) (*models.Comment, error) {
	if _, err := s.FindTopic(ctx, topicID, section); err != nil {
		var fe *fiber.Error
		if src == forms.SourceAPI && errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
			return nil, errmsg.FromField(errmsg.Topics, "topic")
		}
		return nil, err
	}

	res := forms.Run(forms.Pick(src, &forms.CommentForm{}, &forms.CommentSerializer{}), data)
	if !res.Valid {
		return nil, errmsg.FromField(errmsg.Comments, res.Field)
	}

	comment := models.Comment{
		TopicID:  topicID,
		AuthorID: authorID,
		Comment:  res.Cleaned.Value("comment"),
	}
	fh := res.Cleaned.File("upload")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		if fh == nil {
			return nil
		}
		rel, err := s.attach(tx, &models.Comment{ID: comment.ID}, fh, func(ext string) string {
			return utils.CommentUploadPath(comment.ID, ext)
		})
		comment.Upload = rel
		return err
	})
	if err != nil {
		s.discard(comment.Upload)
		return nil, err
	}

	s.enqueueCrop(ctx, comment.Upload)
	if err := s.db.WithContext(ctx).First(&comment.Author, authorID).Error; err != nil {
		return nil, fmt.Errorf("failed to load comment author: %w", err)
	}

	s.invalidateStats(ctx)
	return &comment, nil
}

// attach stores the upload under the path built from its sniffed extension and records it on row.
// It returns the stored path once the file is on disk, even when recording fails.
func (s *Service) attach(tx *gorm.DB, row interface{}, fh *multipart.FileHeader, path func(ext string) string) (string, error) {
	ext, err := utils.ImageExt(fh)
	if err != nil {
		return "", err
	}
	rel := path(ext)
	if err := s.storage.Save(fh, rel); err != nil {
		return "", err
	}
	if err := tx.Model(row).Update("upload", rel).Error; err != nil {
		return rel, fmt.Errorf("failed to record upload: %w", err)
	}
	return rel, nil
}

// discard removes an upload whose row was rolled back.
func (s *Service) discard(rel string) {
	if err := s.storage.Remove(rel); err != nil {
		s.logger.Warn("Failed to remove orphaned upload", zap.String("path", rel), zap.Error(err))
	}
}

func (s *Service) enqueueCrop(ctx context.Context, rel string) {
	if rel == "" || s.crops == nil {
		return
	}
	if err := s.crops.Enqueue(ctx, rel); err != nil {
		s.logger.Warn("Failed to enqueue crop", zap.String("path", rel), zap.Error(err))
	}
}

// LastCommentOffset is the page offset showing the newest comment of topicID.
func (s *Service) LastCommentOffset(ctx context.Context, topicID uint) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("topic_id = ?", topicID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return LastPageOffset(count), nil
}

// DeleteTopic removes a topic with its comments and their images.
// Only the author or a superuser may delete.
func (s *Service) DeleteTopic(ctx context.Context, actorID, id uint, section string) error {
	topic, err := s.FindTopic(ctx, id, section)
	if err != nil {
		return err
	}

	if topic.AuthorID != actorID {
		var actor models.User
		if err := s.db.WithContext(ctx).First(&actor, actorID).Error; err != nil || !actor.IsSuperuser {
			return fiber.NewError(fiber.StatusForbidden, "Only the author can delete this topic")
		}
	}

	var comments []models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ?", id).Find(&comments).Error; err != nil {
			return err
		}
		if err := tx.Where("topic_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Topic{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete topic %d: %w", id, err)
	}

	uploads := []string{topic.Upload}
	for _, c := range comments {
		uploads = append(uploads, c.Upload)
	}
	for _, rel := range uploads {
		if err := s.storage.Remove(rel); err != nil {
			s.logger.Warn("Failed to remove upload", zap.String("path", rel), zap.Error(err))
		}
	}

	s.invalidateStats(ctx)
	s.logger.Info("Topic deleted", zap.Uint("topicID", id), zap.Uint("actorID", actorID))
	return nil
}
