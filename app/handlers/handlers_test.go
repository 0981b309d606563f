package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/middleware"
	businessflow "github.com/treebio/treebio/business_flow"
	"github.com/treebio/treebio/models"
)

// newTestApp builds a fiber app whose requests carry userID in Locals when non-zero
func newTestApp(userID uint) *fiber.App {
	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal})
	if userID > 0 {
		app.Use(func(c fiber.Ctx) error {
			c.Locals(middleware.LocalUserID, userID)
			return c.Next()
		})
	}
	return app
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Details any    `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out apiResponse
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// ---- fake flows ----

type fakeClickFlow struct {
	mu       sync.Mutex
	result   *businessflow.ClickResult
	err      error
	resolved *models.Link
	resolveE error
	logged   int
	resolves int
	lastCtx  context.Context
}

func (f *fakeClickFlow) LogLinkClick(ctx context.Context, linkID uint, clickerIP *string) (*businessflow.ClickResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged++
	f.lastCtx = ctx
	return f.result, f.err
}

func (f *fakeClickFlow) ResolveLink(ctx context.Context, linkID uint) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	return f.resolved, f.resolveE
}

type fakeVisitFlow struct {
	calls chan uint
}

func (f *fakeVisitFlow) LogProfileVisit(ctx context.Context, userID uint, visitorIP *string) (*models.ProfileVisit, error) {
	f.calls <- userID
	return &models.ProfileVisit{UserID: userID}, nil
}

type fakeProfileFlow struct {
	profile   *dto.PublicProfileResponse
	profErr   error
	updated   *dto.UserResponse
	updateErr error
}

func (f *fakeProfileFlow) Onboard(ctx context.Context, claims *dto.IdentityClaims) (*dto.UserResponse, error) {
	return &dto.UserResponse{Email: claims.Email}, nil
}

func (f *fakeProfileFlow) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	return &dto.UserResponse{ID: userID}, nil
}

func (f *fakeProfileFlow) UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	return f.updated, f.updateErr
}

func (f *fakeProfileFlow) PublicProfile(ctx context.Context, username string) (*dto.PublicProfileResponse, error) {
	return f.profile, f.profErr
}

type fakeAnalyticsFlow struct {
	summary   *dto.AnalyticsSummary
	overview  *dto.UserAnalytics
	daily     []dto.DailyCount
	recent    []dto.RecentVisitor
	top       []dto.TopLink
	link      *dto.LinkClickAnalytics
	err       error
	lastDays  int
	lastLimit int
	deadline  time.Time
}

func (f *fakeAnalyticsFlow) VisitCounts(ctx context.Context, userID uint) (*dto.VisitCounts, error) {
	return &dto.VisitCounts{TotalFormatted: "0"}, f.err
}

func (f *fakeAnalyticsFlow) DailyVisits(ctx context.Context, userID uint, days int) ([]dto.DailyCount, error) {
	f.lastDays = days
	return f.daily, f.err
}

func (f *fakeAnalyticsFlow) RecentVisitors(ctx context.Context, userID uint, limit int) ([]dto.RecentVisitor, error) {
	f.lastLimit = limit
	return f.recent, f.err
}

func (f *fakeAnalyticsFlow) ClickAnalytics(ctx context.Context, linkID uint) (*dto.ClickAnalytics, error) {
	return &dto.ClickAnalytics{LinkID: linkID, RecentClicks: []dto.RecentClick{}}, f.err
}

func (f *fakeAnalyticsFlow) DailyClicks(ctx context.Context, linkID uint, days int) ([]dto.DailyCount, error) {
	return []dto.DailyCount{}, f.err
}

func (f *fakeAnalyticsFlow) TopLinks(ctx context.Context, userID uint, limit int) ([]dto.TopLink, error) {
	f.lastLimit = limit
	return f.top, f.err
}

func (f *fakeAnalyticsFlow) AnalyticsSummary(ctx context.Context, userID uint) (*dto.AnalyticsSummary, error) {
	f.deadline, _ = ctx.Deadline()
	return f.summary, f.err
}

func (f *fakeAnalyticsFlow) UserAnalytics(ctx context.Context, userID uint) (*dto.UserAnalytics, error) {
	return f.overview, f.err
}

func (f *fakeAnalyticsFlow) LinkAnalytics(ctx context.Context, userID, linkID uint, days int) (*dto.LinkClickAnalytics, error) {
	f.lastDays = days
	return f.link, f.err
}

type fakeExportFlow struct {
	name string
	data []byte
	err  error
}

func (f *fakeExportFlow) ExportUserAnalytics(ctx context.Context, userID uint, days int) (string, []byte, error) {
	return f.name, f.data, f.err
}
