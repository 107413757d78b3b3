package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waflawe/Omenforcer/backend/cache"
	"github.com/waflawe/Omenforcer/backend/config"
	"github.com/waflawe/Omenforcer/backend/middleware"
	"github.com/waflawe/Omenforcer/backend/models"
	"github.com/waflawe/Omenforcer/backend/services/accounts"
	"github.com/waflawe/Omenforcer/backend/services/forum"
	"github.com/waflawe/Omenforcer/backend/services/rating"
	"github.com/waflawe/Omenforcer/backend/services/settings"
	"github.com/waflawe/Omenforcer/backend/tasks"
	"github.com/waflawe/Omenforcer/backend/testutil"
	"github.com/waflawe/Omenforcer/backend/utils"
	"github.com/waflawe/Omenforcer/backend/views"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:        "testsecret",
		JWTTTL:           time.Hour,
		MediaRoot:        t.TempDir(),
		MediaURL:         "/media/",
		DefaultAvatar:    "default-user-icon.jpg",
		DefaultTimezone:  "UTC",
		SettingsCacheTTL: time.Hour,
		StatsCacheTTL:    time.Hour,
	}
	logger := zap.NewNop()

	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)
	c := cache.New(client, "test:")
	storage := utils.NewStorage(cfg.MediaRoot, cfg.MediaURL)
	queue := tasks.NewQueue(client, logger)

	registry, err := settings.DefaultRegistry(settings.Deps{
		Persister:     settings.GormPersister{DB: db},
		Storage:       storage,
		Crops:         queue,
		DefaultAvatar: cfg.DefaultAvatar,
		Logger:        logger,
	})
	require.NoError(t, err)

	s := Services{
		Accounts: accounts.NewService(db, cfg.DefaultAvatar, logger),
		Forum:    forum.NewService(db, c, cfg.StatsCacheTTL, storage, queue, logger),
		Settings: settings.NewService(db, registry, c, storage, settings.Options{
			CacheTTL:        cfg.SettingsCacheTTL,
			DefaultTimezone: cfg.DefaultTimezone,
			DefaultAvatar:   cfg.DefaultAvatar,
		}, logger),
		Rating:  rating.NewService(db, logger),
		Storage: storage,
	}
	site := views.NewSite(s.Accounts, s.Forum, s.Settings, s.Rating, storage, cfg, logger)

	app := fiber.New(fiber.Config{Views: site.Engine(), ErrorHandler: site.ErrorHandler})
	app.Use(middleware.LoggingMiddleware(logger))
	SetupRoutes(app, site, s, cfg)

	return &testEnv{app: app, db: db, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)

	var result map[string]interface{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	}
	return resp, result
}

func (e *testEnv) token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateJWTToken(user.ID, e.cfg)
	require.NoError(t, err)
	return token
}

func jsonRequest(method, target string, body interface{}, token string) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func formRequest(target string, values url.Values, cookie string) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.Header.Set("Cookie", utils.TokenCookie+"="+cookie)
	}
	return req
}

func pageRequest(target, cookie string) *http.Request {
	req := httptest.NewRequest("GET", target, nil)
	if cookie != "" {
		req.Header.Set("Cookie", utils.TokenCookie+"="+cookie)
	}
	return req
}

func data(result map[string]interface{}) map[string]interface{} {
	d, _ := result["data"].(map[string]interface{})
	return d
}

func details(result map[string]interface{}) map[string]interface{} {
	d, _ := result["details"].(map[string]interface{})
	return d
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestRegister(t *testing.T) {
	env := setup(t)
	registerData := map[string]string{
		"username":  "newuser",
		"password":  "password123",
		"password2": "password123",
	}

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/auth/register", registerData, ""))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, data(result)["token"])

	var count int64
	env.db.Model(&models.UserSettings{}).Count(&count)
	assert.Equal(t, int64(1), count)

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/auth/register", registerData, ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "auth", details(result)["domain"])
	assert.EqualValues(t, 5, details(result)["code"])

	registerData["username"] = "12345678"
	resp, result = env.do(t, jsonRequest("POST", "/api/v1/auth/register", registerData, ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "username", details(result)["field"])
}

func TestLogin(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.db, "testuser")

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/auth/login", map[string]string{
		"username": "testuser",
		"password": "password123",
	}, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	token, _ := data(result)["token"].(string)
	require.NotEmpty(t, token)

	var user models.User
	require.NoError(t, env.db.Where("username = ?", "testuser").First(&user).Error)
	assert.NotNil(t, user.LastLogin)

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/auth/login", map[string]string{
		"username": "testuser",
		"password": "wrong",
	}, ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, details(result)["code"])

	resp, result = env.do(t, jsonRequest("GET", "/api/v1/user/"+fmt.Sprint(user.ID), nil, token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "testuser", data(result)["username"])
}

func TestTopicLifecycle(t *testing.T) {
	env := setup(t)
	author := testutil.CreateUser(t, env.db, "author")
	other := testutil.CreateUser(t, env.db, "other")
	authorToken := env.token(t, author)

	topic := map[string]string{
		"title":    "How do I paginate?",
		"question": "Looking for **offset** pagination",
		"section":  "orm",
	}
	resp, _ := env.do(t, jsonRequest("POST", "/api/v1/topics", topic, ""))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/topics", topic, authorToken))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := data(result)
	assert.Equal(t, "orm", created["section"])
	assert.Equal(t, "author", created["author"].(map[string]interface{})["username"])
	id := fmt.Sprint(created["id"])

	resp, result = env.do(t, jsonRequest("GET", "/api/v1/topics", nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, result["total"])

	resp, result = env.do(t, jsonRequest("GET", "/api/v1/sections/orm?search=PAGINATE", nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, result["total"])

	resp, result = env.do(t, jsonRequest("GET", "/api/v1/topics/"+id, nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, data(result)["views"])

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/addcomment", map[string]string{
		"topic":   id,
		"comment": "Use limit and offset",
	}, env.token(t, other)))
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "other", data(result)["author"].(map[string]interface{})["username"])

	resp, result = env.do(t, jsonRequest("GET", "/api/v1/topics/"+id+"/comments", nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, result["total"])
	assert.Nil(t, result["next"])

	resp, result = env.do(t, jsonRequest("DELETE", "/api/v1/topics/"+id, nil, env.token(t, other)))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "Forbidden", result["error"])
	assert.Equal(t, "Only the author can delete this topic", result["message"])

	resp, _ = env.do(t, jsonRequest("DELETE", "/api/v1/topics/"+id, nil, authorToken))
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, jsonRequest("GET", "/api/v1/topics/"+id, nil, ""))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCreateTopicValidation(t *testing.T) {
	env := setup(t)
	token := env.token(t, testutil.CreateUser(t, env.db, "author"))

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/topics", map[string]string{
		"title":    "short",
		"question": "Long enough question",
	}, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "topics", details(result)["domain"])
	assert.Equal(t, "title", details(result)["field"])

	resp, _ = env.do(t, jsonRequest("POST", "/api/v1/addcomment", map[string]string{
		"topic":   "abc",
		"comment": "Some comment",
	}, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSections(t *testing.T) {
	env := setup(t)

	resp, result := env.do(t, jsonRequest("GET", "/api/v1/sections", nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, data(result)["sections"], len(models.Sections))

	resp, _ = env.do(t, jsonRequest("GET", "/api/v1/sections/nosuch", nil, ""))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReviews(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bobby")
	token := env.token(t, alice)
	bobID := fmt.Sprint(bob.ID)

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/reviewuser/like/"+fmt.Sprint(alice.ID), nil, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, details(result)["code"])

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/reviewuser/like/"+bobID, nil, token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, data(result)["rating"])
	assert.Equal(t, true, data(result)["feedback"])

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/reviewuser/like/"+bobID, nil, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 3, details(result)["code"])

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/reviewuser/dislike/"+bobID, nil, token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, -1, data(result)["rating"])

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/reviewuser/drop/"+bobID, nil, token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, data(result)["rating"])
	assert.Nil(t, data(result)["feedback"])

	resp, _ = env.do(t, jsonRequest("POST", "/api/v1/reviewuser/like/999", nil, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateSettings(t *testing.T) {
	env := setup(t)
	user := testutil.CreateUser(t, env.db, "settler")
	token := env.token(t, user)

	resp, result := env.do(t, jsonRequest("POST", "/api/v1/updatesettings", map[string]string{
		"timezone":  "Europe/Moscow",
		"signature": "Go all the way",
	}, token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data(result)["updated"])

	var us models.UserSettings
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&us).Error)
	assert.Equal(t, "Europe/Moscow", us.Timezone)
	assert.Equal(t, "Go all the way", us.Signature)

	resp, result = env.do(t, jsonRequest("POST", "/api/v1/updatesettings", map[string]string{"timezone": "Mars/Base"}, token))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "settings", details(result)["domain"])
	assert.EqualValues(t, 3, details(result)["code"])
}

func TestSchema(t *testing.T) {
	env := setup(t)

	resp, result := env.do(t, jsonRequest("GET", "/api/v1/schema", nil, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	info, _ := result["info"].(map[string]interface{})
	assert.Equal(t, "Omenforcer API", info["title"])

	resp, _ = env.do(t, jsonRequest("GET", "/api/v1/nothing", nil, ""))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSiteAuth(t *testing.T) {
	env := setup(t)

	resp, _ := env.do(t, pageRequest("/settings/", ""))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/?next=%2Fsettings%2F", resp.Header.Get("Location"))

	resp, _ = env.do(t, formRequest("/register/", url.Values{
		"username":  {"siteuser"},
		"password1": {"password123"},
		"password2": {"password123"},
	}, ""))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/?show_success=1", resp.Header.Get("Location"))

	resp, _ = env.do(t, formRequest("/auth/?next=/settings/", url.Values{
		"username": {"siteuser"},
		"password": {"nope"},
	}, ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, formRequest("/auth/?next=/settings/", url.Values{
		"username": {"siteuser"},
		"password": {"password123"},
	}, ""))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/settings/", resp.Header.Get("Location"))

	var token string
	for _, ck := range resp.Cookies() {
		if ck.Name == utils.TokenCookie {
			token = ck.Value
		}
	}
	require.NotEmpty(t, token)

	resp, _ = env.do(t, pageRequest("/settings/", token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Europe/Moscow")

	resp, _ = env.do(t, formRequest("/settings/", url.Values{"timezone": {"Asia/Tokyo"}}, token))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/settings/?show_success=1", resp.Header.Get("Location"))
}

func TestSiteForum(t *testing.T) {
	env := setup(t)
	author := testutil.CreateUser(t, env.db, "author")
	reader := testutil.CreateUser(t, env.db, "reader")
	authorToken := env.token(t, author)

	resp, _ := env.do(t, pageRequest("/", ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Users: 2")

	resp, _ = env.do(t, formRequest("/forum/add_topic/", url.Values{
		"title":    {"Rendering markdown"},
		"question": {"Is **bold** supported?"},
		"section":  {"templates"},
	}, authorToken))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/forum/templates/?success_updated=1", resp.Header.Get("Location"))

	var topic models.Topic
	require.NoError(t, env.db.First(&topic).Error)
	topicURL := fmt.Sprintf("/forum/templates/%d/", topic.ID)

	resp, _ = env.do(t, pageRequest("/forum/templates/", ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Rendering markdown")

	resp, _ = env.do(t, pageRequest(topicURL, ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "<strong>bold</strong>")
	assert.NotContains(t, page, "Delete topic")

	resp, _ = env.do(t, formRequest(topicURL+"add_comment/", url.Values{"comment": {"Yes, via goldmark"}}, env.token(t, reader)))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, topicURL, resp.Header.Get("Location"))

	resp, _ = env.do(t, pageRequest("/forum/orm/"+fmt.Sprint(topic.ID)+"/", ""))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, pageRequest(topicURL+"delete/", env.token(t, reader)))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, pageRequest(topicURL+"delete/", authorToken))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, formRequest(topicURL+"delete/", url.Values{}, authorToken))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	var count int64
	env.db.Model(&models.Comment{}).Count(&count)
	assert.Zero(t, count)
}

func TestSiteAccount(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.db, "target")
	fan := testutil.CreateUser(t, env.db, "fanatic")
	token := env.token(t, fan)

	resp, _ := env.do(t, pageRequest("/account/target/", ""))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Rating: 0")

	resp, _ = env.do(t, formRequest("/account/like/target/", url.Values{}, token))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/account/target/?show_success=1", resp.Header.Get("Location"))

	resp, _ = env.do(t, formRequest("/account/like/target/", url.Values{}, token))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "error=")

	resp, _ = env.do(t, formRequest("/account/like/ghost/", url.Values{}, token))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, pageRequest("/account/ghost/", ""))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "User not found")
}
