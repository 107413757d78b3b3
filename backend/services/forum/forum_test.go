package forum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waflawe/Omenforcer/backend/cache"
	"github.com/waflawe/Omenforcer/backend/errmsg"
	"github.com/waflawe/Omenforcer/backend/forms"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/testutil"
	"github.com/waflawe/Omenforcer/backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeCrops struct {
	paths []string
}

func (f *fakeCrops) Enqueue(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return nil
}

func newService(t *testing.T) (*Service, *gorm.DB, *fakeCrops) {
	t.Helper()
	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)
	crops := &fakeCrops{}
	svc := NewService(db, cache.New(client, ""), time.Hour, utils.NewStorage(t.TempDir(), "/media/"), crops, zap.NewNop())
	return svc, db, crops
}

func topicData(title, question, section string) utils.FormData {
	data := utils.NewFormData()
	data.Values["title"] = title
	data.Values["question"] = question
	if section != "" {
		data.Values["section"] = section
	}
	return data
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

func TestNormalizeOffset(t *testing.T) {
	tests := []struct {
		raw   string
		total int64
		want  int
	}{
		{"", 100, 0},
		{"0", 100, 0},
		{"20", 100, 20},
		{"80", 100, 80},
		{"100", 100, 0},
		{"120", 100, 0},
		{"15", 100, 0},
		{"-20", 100, 0},
		{"abc", 100, 0},
		{"20", 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeOffset(tt.raw, tt.total), "raw=%q total=%d", tt.raw, tt.total)
	}
}

func TestPaginate(t *testing.T) {
	first := Paginate(0, 45)
	require.NotNil(t, first.Next)
	assert.Equal(t, 20, *first.Next)
	assert.Nil(t, first.Back)

	last := Paginate(40, 45)
	assert.Nil(t, last.Next)
	require.NotNil(t, last.Back)
	assert.Equal(t, 20, *last.Back)

	exact := Paginate(0, 20)
	assert.Nil(t, exact.Next)
}

func TestLastPageOffset(t *testing.T) {
	assert.Equal(t, 0, LastPageOffset(0))
	assert.Equal(t, 0, LastPageOffset(1))
	assert.Equal(t, 0, LastPageOffset(20))
	assert.Equal(t, 20, LastPageOffset(21))
	assert.Equal(t, 20, LastPageOffset(40))
	assert.Equal(t, 40, LastPageOffset(41))
}

func TestCreateTopicAndRead(t *testing.T) {
	svc, db, crops := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	data := topicData("Testing class views", "How do I test class based views?", "testing")
	data.Files["upload"] = testutil.FileHeader(t, "upload", "shot.png", testutil.PNG(t, 8, 4))

	topic, err := svc.CreateTopic(ctx, alice.ID, data, forms.SourceSite)
	require.NoError(t, err)
	assert.Equal(t, "testing", topic.Section)
	assert.Equal(t, fmt.Sprintf("t_images/%d.png", topic.ID), topic.Upload)
	assert.Equal(t, []string{topic.Upload}, crops.paths)

	got, err := svc.Topic(ctx, topic.ID, "testing")
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.Views)
	assert.Equal(t, "alice", got.Author.Username)

	_, err = svc.Topic(ctx, topic.ID, "orm")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))
	_, err = svc.Topic(ctx, topic.ID, "cooking")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))
	_, err = svc.Topic(ctx, 999, "")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	again, err := svc.Topic(ctx, topic.ID, "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), again.Views)
}

func TestCreateTopicValidation(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	_, err := svc.CreateTopic(ctx, alice.ID, topicData("short", "valid question", ""), forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidTitle))

	_, err = svc.CreateTopic(ctx, alice.ID, topicData("valid title here", "valid question", "nowhere"), forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidSection))

	topic, err := svc.CreateTopic(ctx, alice.ID, topicData("valid title here", "valid question", ""), forms.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, models.SectionGeneral, topic.Section)

	_, err = svc.CreateTopic(ctx, alice.ID, topicData("valid title here", "another question", ""), forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidTitle))
	_, err = svc.CreateTopic(ctx, alice.ID, topicData("another title here", "valid question", ""), forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidQuestion))
}

func TestTopicsPaginationAndSearch(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bobby")

	for i := 0; i < 25; i++ {
		author := alice.ID
		if i%5 == 0 {
			author = bob.ID
		}
		_, err := svc.CreateTopic(ctx, author, topicData(
			fmt.Sprintf("Topic number %02d", i),
			fmt.Sprintf("Question body %02d", i),
			"orm",
		), forms.SourceSite)
		require.NoError(t, err)
	}
	_, err := svc.CreateTopic(ctx, alice.ID, topicData("Deploying with 100% uptime", "Any tips on gunicorn?", "deploy"), forms.SourceSite)
	require.NoError(t, err)

	page, err := svc.Topics(ctx, TopicQuery{Section: "orm"})
	require.NoError(t, err)
	assert.EqualValues(t, 25, page.Total)
	assert.Len(t, page.Topics, PageSize)
	assert.Equal(t, "Topic number 24", page.Topics[0].Title)
	require.NotNil(t, page.Page.Next)

	second, err := svc.Topics(ctx, TopicQuery{Section: "orm", Offset: "20"})
	require.NoError(t, err)
	assert.Len(t, second.Topics, 5)
	assert.Nil(t, second.Page.Next)

	misaligned, err := svc.Topics(ctx, TopicQuery{Section: "orm", Offset: "7"})
	require.NoError(t, err)
	assert.Equal(t, 0, misaligned.Page.Offset)

	mine, err := svc.Topics(ctx, TopicQuery{AuthorID: bob.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 5, mine.Total)

	byTitle, err := svc.Topics(ctx, TopicQuery{Search: SearchParams{Query: "NUMBER 1", InTitle: true}})
	require.NoError(t, err)
	assert.EqualValues(t, 10, byTitle.Total)

	byUser, err := svc.Topics(ctx, TopicQuery{Search: SearchParams{Query: "BOBBY", InUsername: true}})
	require.NoError(t, err)
	assert.EqualValues(t, 5, byUser.Total)
	assert.Equal(t, "bobby", byUser.Topics[0].Author.Username)

	percent, err := svc.Topics(ctx, TopicQuery{Search: SearchParams{Query: "100%", InTitle: true, InQuestion: true}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, percent.Total)

	noFlagsSite, err := svc.Topics(ctx, TopicQuery{Search: SearchParams{Query: "gunicorn"}})
	require.NoError(t, err)
	assert.EqualValues(t, 26, noFlagsSite.Total)

	noFlagsAPI, err := svc.Topics(ctx, TopicQuery{Search: SearchParams{Query: "gunicorn"}, SearchAll: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, noFlagsAPI.Total)

	_, err = svc.Topics(ctx, TopicQuery{Section: "cooking"})
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))
}

func TestCommentsAndStats(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bobby")

	info, err := svc.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, info.Topics)

	topic, err := svc.CreateTopic(ctx, alice.ID, topicData("Channels and redis", "Which layer backend?", "channels"), forms.SourceSite)
	require.NoError(t, err)

	comment := utils.NewFormData()
	comment.Values["comment"] = "Use the redis layer."
	for i := 0; i < 21; i++ {
		_, err := svc.CreateComment(ctx, bob.ID, topic.ID, "channels", comment, forms.SourceSite)
		require.NoError(t, err)
	}

	offset, err := svc.LastCommentOffset(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, offset)

	page, err := svc.Comments(ctx, topic.ID, "20")
	require.NoError(t, err)
	assert.EqualValues(t, 21, page.Total)
	assert.Len(t, page.Comments, 1)
	assert.Equal(t, "bobby", page.Comments[0].Author.Username)

	_, err = svc.Comments(ctx, 999, "")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	_, err = svc.CreateComment(ctx, bob.ID, topic.ID, "orm", comment, forms.SourceSite)
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	_, err = svc.CreateComment(ctx, bob.ID, 999, "", comment, forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidID))

	short := utils.NewFormData()
	short.Values["comment"] = "hey"
	_, err = svc.CreateComment(ctx, bob.ID, topic.ID, "", short, forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Comments, errmsg.CommentInvalidComment))

	info, err = svc.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Users)
	assert.EqualValues(t, 1, info.Topics)
	assert.EqualValues(t, 21, info.Comments)
	assert.Equal(t, "bobby", info.LastJoinedUser)

	sections, err := svc.Sections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, len(models.Sections))
	for _, s := range sections {
		if s.Alias == "channels" {
			assert.EqualValues(t, 1, s.Topics)
			assert.NotNil(t, s.LastUpdated)
		} else {
			assert.Zero(t, s.Topics)
		}
	}

	require.NoError(t, svc.RefreshStats(ctx))
}

func TestCreateRollsBackOnUploadFailure(t *testing.T) {
	svc, db, crops := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	good := svc.storage
	blocked := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))
	svc.storage = utils.NewStorage(blocked, "/media/")

	data := topicData("Signals in transactions", "Do signals fire before commit?", "orm")
	data.Files["upload"] = testutil.FileHeader(t, "upload", "tx.png", testutil.PNG(t, 4, 4))
	_, err := svc.CreateTopic(ctx, alice.ID, data, forms.SourceSite)
	require.Error(t, err)

	var topics int64
	require.NoError(t, db.Model(&models.Topic{}).Count(&topics).Error)
	assert.Zero(t, topics)
	assert.Empty(t, crops.paths)

	svc.storage = good
	topic, err := svc.CreateTopic(ctx, alice.ID, data, forms.SourceSite)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("t_images/%d.png", topic.ID), topic.Upload)

	svc.storage = utils.NewStorage(blocked, "/media/")
	comment := utils.NewFormData()
	comment.Values["comment"] = "Only after commit."
	comment.Files["upload"] = testutil.FileHeader(t, "upload", "c.png", testutil.PNG(t, 4, 4))
	_, err = svc.CreateComment(ctx, alice.ID, topic.ID, "orm", comment, forms.SourceSite)
	require.Error(t, err)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	assert.Zero(t, comments)
	assert.Equal(t, []string{topic.Upload}, crops.paths)
}

func TestUploadExtensionFromContent(t *testing.T) {
	svc, db, _ := newService(t)
	alice := testutil.CreateUser(t, db, "alice")

	data := topicData("Static files in production", "Which server should serve media?", "")
	data.Files["upload"] = testutil.FileHeader(t, "upload", "shot.jpg", testutil.PNG(t, 4, 4))
	topic, err := svc.CreateTopic(context.Background(), alice.ID, data, forms.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("t_images/%d.png", topic.ID), topic.Upload)

	data = topicData("Serving uploads as pages", "Can an upload become a page?", "")
	data.Files["upload"] = testutil.FileHeader(t, "upload", "x.html", testutil.PNG(t, 4, 4))
	_, err = svc.CreateTopic(context.Background(), alice.ID, data, forms.SourceAPI)
	assert.True(t, errmsg.Is(err, errmsg.Topics, errmsg.TopicInvalidUpload))
}

func TestDeleteTopic(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bobby")
	admin := testutil.CreateUser(t, db, "admin")
	require.NoError(t, db.Model(&admin).Update("is_superuser", true).Error)

	data := topicData("Celery beat schedule", "How to schedule tasks?", "celery")
	data.Files["upload"] = testutil.FileHeader(t, "upload", "beat.png", testutil.PNG(t, 4, 4))
	topic, err := svc.CreateTopic(ctx, alice.ID, data, forms.SourceSite)
	require.NoError(t, err)

	comment := utils.NewFormData()
	comment.Values["comment"] = "Use django-celery-beat."
	_, err = svc.CreateComment(ctx, bob.ID, topic.ID, "celery", comment, forms.SourceSite)
	require.NoError(t, err)

	err = svc.DeleteTopic(ctx, bob.ID, topic.ID, "celery")
	assert.Equal(t, fiber.StatusForbidden, statusOf(err))

	err = svc.DeleteTopic(ctx, alice.ID, topic.ID, "orm")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	require.NoError(t, svc.DeleteTopic(ctx, alice.ID, topic.ID, "celery"))

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Where("topic_id = ?", topic.ID).Count(&comments).Error)
	assert.Zero(t, comments)
	_, statErr := os.Stat(svc.storage.Abs(topic.Upload))
	assert.True(t, os.IsNotExist(statErr))

	other, err := svc.CreateTopic(ctx, alice.ID, topicData("Another celery topic", "Another question", "celery"), forms.SourceSite)
	require.NoError(t, err)
	assert.NoError(t, svc.DeleteTopic(ctx, admin.ID, other.ID, ""))
}
