package businessflow

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the database shared by the fake repositories.
// Operations listed in failures return the configured error.
type memStore struct {
	mu       sync.Mutex
	nextID   uint
	users    map[uint]models.User
	links    map[uint]models.Link
	socials  map[uint]models.SocialLink
	visits   []models.ProfileVisit
	clicks   []models.LinkClick
	failures map[string]error
	// hooks run under the store lock once the named operation has read its data
	hooks map[string]func(*memStore)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint]models.User{},
		links:    map[uint]models.Link{},
		socials:  map[uint]models.SocialLink{},
		failures: map[string]error{},
		hooks:    map[string]func(*memStore){},
	}
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) failure(op string) error {
	return s.failures[op]
}

func (s *memStore) onAfter(op string, fn func(*memStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[op] = fn
}

func (s *memStore) runHook(op string) {
	if fn := s.hooks[op]; fn != nil {
		fn(s)
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	nextID  uint
	users   map[uint]models.User
	links   map[uint]models.Link
	socials map[uint]models.SocialLink
	visits  []models.ProfileVisit
	clicks  []models.LinkClick
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		nextID:  s.nextID,
		users:   maps.Clone(s.users),
		links:   maps.Clone(s.links),
		socials: maps.Clone(s.socials),
		visits:  slices.Clone(s.visits),
		clicks:  slices.Clone(s.clicks),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.users = snap.users
	s.links = snap.links
	s.socials = snap.socials
	s.visits = snap.visits
	s.clicks = snap.clicks
}

// memTransactor rolls the store back when fn fails
type memTransactor struct {
	store *memStore
	err   error
}

func (t *memTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	if t.err != nil {
		return t.err
	}
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ---- users ----

type memUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.ByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUserRepo) match(u models.User, f models.UserFilter) bool {
	return (f.ID == nil || u.ID == *f.ID) &&
		(f.ExternalID == nil || u.ExternalID == *f.ExternalID) &&
		(f.Username == nil || (u.Username != nil && *u.Username == *f.Username))
}

func (r *memUserRepo) ByFilter(ctx context.Context, f models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.User
	for _, id := range sortedKeys(r.s.users) {
		u := r.s.users[id]
		if r.match(u, f) {
			out = append(out, &u)
		}
	}
	return page(out, limit, offset), nil
}

func (r *memUserRepo) Save(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.Save"); err != nil {
		return err
	}
	if u.ID == 0 {
		u.ID = r.s.id()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) Count(ctx context.Context, f models.UserFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memUserRepo) Exists(ctx context.Context, f models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

func (r *memUserRepo) first(ctx context.Context, f models.UserFilter) (*models.User, error) {
	rows, err := r.ByFilter(ctx, f, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *memUserRepo) ByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.first(ctx, models.UserFilter{ExternalID: &externalID})
}

func (r *memUserRepo) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, models.UserFilter{Username: &username})
}

func (r *memUserRepo) UpsertByExternalID(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.Upsert"); err != nil {
		return err
	}
	now := utils.UTCNow()
	for id, existing := range r.s.users {
		if existing.ExternalID == u.ExternalID {
			existing.Email, existing.FirstName, existing.LastName = u.Email, u.FirstName, u.LastName
			existing.ImageURL = u.ImageURL
			existing.UpdatedAt = now
			r.s.users[id] = existing
			u.ID = id
			return nil
		}
	}
	u.ID = r.s.id()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) UpdateProfile(ctx context.Context, userID uint, username, bio *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.UpdateProfile"); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if username != nil {
		v := *username
		u.Username = &v
	}
	if bio != nil {
		v := *bio
		u.Bio = &v
	}
	r.s.users[userID] = u
	return nil
}

// ---- links ----

type memLinkRepo struct{ s *memStore }

var _ repository.LinkRepository = (*memLinkRepo)(nil)

func (r *memLinkRepo) ByID(ctx context.Context, id uint) (*models.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.ByID"); err != nil {
		return nil, err
	}
	l, ok := r.s.links[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *memLinkRepo) ByFilter(ctx context.Context, f models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.Link
	for _, id := range sortedKeys(r.s.links) {
		l := r.s.links[id]
		if f.ID != nil && l.ID != *f.ID {
			continue
		}
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		out = append(out, &l)
	}
	switch orderBy {
	case "click_count DESC, id ASC":
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].ClickCount != out[j].ClickCount {
				return out[i].ClickCount > out[j].ClickCount
			}
			return out[i].ID < out[j].ID
		})
	case "created_at DESC, id DESC":
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	return page(out, limit, offset), nil
}

func (r *memLinkRepo) Save(ctx context.Context, l *models.Link) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.Save"); err != nil {
		return err
	}
	if l.ID == 0 {
		l.ID = r.s.id()
	}
	r.s.links[l.ID] = *l
	return nil
}

func (r *memLinkRepo) Count(ctx context.Context, f models.LinkFilter) (int64, error) {
	if err := r.s.failure("links.Count"); err != nil {
		return 0, err
	}
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memLinkRepo) Exists(ctx context.Context, f models.LinkFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

func (r *memLinkRepo) Update(ctx context.Context, l *models.Link) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.links[l.ID]
	if !ok || stored.UserID != l.UserID {
		return gorm.ErrRecordNotFound
	}
	stored.Title, stored.URL, stored.Description = l.Title, l.URL, l.Description
	r.s.links[l.ID] = stored
	return nil
}

func (r *memLinkRepo) DeleteByOwner(ctx context.Context, id, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok || l.UserID != userID {
		return false, nil
	}
	delete(r.s.links, id)
	r.s.clicks = slices.DeleteFunc(r.s.clicks, func(c models.LinkClick) bool { return c.LinkID == id })
	return true, nil
}

func (r *memLinkRepo) IncrementClickCount(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.Increment"); err != nil {
		return err
	}
	l, ok := r.s.links[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.ClickCount++
	r.s.links[id] = l
	return nil
}

func (r *memLinkRepo) RaiseClickCount(ctx context.Context, id uint, count int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.RaiseClickCount"); err != nil {
		return false, err
	}
	l, ok := r.s.links[id]
	if !ok || l.ClickCount >= count {
		return false, nil
	}
	l.ClickCount = count
	r.s.links[id] = l
	return true, nil
}

func (r *memLinkRepo) SumClickCount(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("links.Sum"); err != nil {
		return 0, err
	}
	var sum int64
	for _, l := range r.s.links {
		if l.UserID == userID {
			sum += l.ClickCount
		}
	}
	return sum, nil
}

// ---- social links ----

type memSocialLinkRepo struct{ s *memStore }

var _ repository.SocialLinkRepository = (*memSocialLinkRepo)(nil)

func (r *memSocialLinkRepo) ByID(ctx context.Context, id uint) (*models.SocialLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.socials[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *memSocialLinkRepo) ByFilter(ctx context.Context, f models.SocialLinkFilter, orderBy string, limit, offset int) ([]*models.SocialLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("socials.ByFilter"); err != nil {
		return nil, err
	}
	var out []*models.SocialLink
	for _, id := range sortedKeys(r.s.socials) {
		l := r.s.socials[id]
		if (f.ID == nil || l.ID == *f.ID) && (f.UserID == nil || l.UserID == *f.UserID) {
			out = append(out, &l)
		}
	}
	return page(out, limit, offset), nil
}

func (r *memSocialLinkRepo) Save(ctx context.Context, l *models.SocialLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == 0 {
		l.ID = r.s.id()
	}
	r.s.socials[l.ID] = *l
	return nil
}

func (r *memSocialLinkRepo) Count(ctx context.Context, f models.SocialLinkFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memSocialLinkRepo) Exists(ctx context.Context, f models.SocialLinkFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

func (r *memSocialLinkRepo) Update(ctx context.Context, l *models.SocialLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.socials[l.ID]
	if !ok || stored.UserID != l.UserID {
		return gorm.ErrRecordNotFound
	}
	r.s.socials[l.ID] = *l
	return nil
}

func (r *memSocialLinkRepo) DeleteByOwner(ctx context.Context, id, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.socials[id]
	if !ok || l.UserID != userID {
		return false, nil
	}
	delete(r.s.socials, id)
	return true, nil
}

// ---- visits ----

type memVisitRepo struct{ s *memStore }

var _ repository.ProfileVisitRepository = (*memVisitRepo)(nil)

func (r *memVisitRepo) ByID(ctx context.Context, id uint) (*models.ProfileVisit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.visits {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *memVisitRepo) filter(f models.ProfileVisitFilter) []*models.ProfileVisit {
	var out []*models.ProfileVisit
	for _, v := range r.s.visits {
		if f.UserID != nil && v.UserID != *f.UserID {
			continue
		}
		if f.VisitorIP != nil && v.VisitorIP != *f.VisitorIP {
			continue
		}
		if f.VisitedAfter != nil && v.VisitedAt.Before(*f.VisitedAfter) {
			continue
		}
		out = append(out, &v)
	}
	return out
}

func (r *memVisitRepo) ByFilter(ctx context.Context, f models.ProfileVisitFilter, orderBy string, limit, offset int) ([]*models.ProfileVisit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("visits.ByFilter"); err != nil {
		return nil, err
	}
	out := r.filter(f)
	if orderBy == "visited_at DESC, id DESC" {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].VisitedAt.Equal(out[j].VisitedAt) {
				return out[i].VisitedAt.After(out[j].VisitedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	return page(out, limit, offset), nil
}

func (r *memVisitRepo) Save(ctx context.Context, v *models.ProfileVisit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("visits.Save"); err != nil {
		return err
	}
	v.ID = r.s.id()
	r.s.visits = append(r.s.visits, *v)
	return nil
}

func (r *memVisitRepo) Count(ctx context.Context, f models.ProfileVisitFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("visits.Count"); err != nil {
		return 0, err
	}
	return int64(len(r.filter(f))), nil
}

func (r *memVisitRepo) Exists(ctx context.Context, f models.ProfileVisitFilter) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("visits.Exists"); err != nil {
		return false, err
	}
	return len(r.filter(f)) > 0, nil
}

func (r *memVisitRepo) CountDistinctVisitors(ctx context.Context, userID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	for _, v := range r.filter(models.ProfileVisitFilter{UserID: &userID}) {
		seen[v.VisitorIP] = true
	}
	return int64(len(seen)), nil
}

func (r *memVisitRepo) DailyCounts(ctx context.Context, userID uint, since time.Time) ([]*repository.DailyCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("visits.DailyCounts"); err != nil {
		return nil, err
	}
	var times []time.Time
	for _, v := range r.filter(models.ProfileVisitFilter{UserID: &userID, VisitedAfter: &since}) {
		times = append(times, v.VisitedAt)
	}
	return dailyBuckets(times), nil
}

// ---- clicks ----

type memClickRepo struct{ s *memStore }

var _ repository.LinkClickRepository = (*memClickRepo)(nil)

func (r *memClickRepo) ByID(ctx context.Context, id uint) (*models.LinkClick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clicks {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memClickRepo) filter(f models.LinkClickFilter) []*models.LinkClick {
	var out []*models.LinkClick
	for _, c := range r.s.clicks {
		if f.LinkID != nil && c.LinkID != *f.LinkID {
			continue
		}
		if f.ClickedAfter != nil && c.ClickedAt.Before(*f.ClickedAfter) {
			continue
		}
		out = append(out, &c)
	}
	return out
}

func (r *memClickRepo) ByFilter(ctx context.Context, f models.LinkClickFilter, orderBy string, limit, offset int) ([]*models.LinkClick, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("clicks.ByFilter"); err != nil {
		return nil, err
	}
	out := r.filter(f)
	if orderBy == "clicked_at DESC, id DESC" {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].ClickedAt.Equal(out[j].ClickedAt) {
				return out[i].ClickedAt.After(out[j].ClickedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	return page(out, limit, offset), nil
}

func (r *memClickRepo) Save(ctx context.Context, c *models.LinkClick) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("clicks.Save"); err != nil {
		return err
	}
	c.ID = r.s.id()
	r.s.clicks = append(r.s.clicks, *c)
	return nil
}

func (r *memClickRepo) Count(ctx context.Context, f models.LinkClickFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("clicks.Count"); err != nil {
		return 0, err
	}
	return int64(len(r.filter(f))), nil
}

func (r *memClickRepo) Exists(ctx context.Context, f models.LinkClickFilter) (bool, error) {
	c, err := r.Count(ctx, f)
	return c > 0, err
}

func (r *memClickRepo) CountDistinctClickers(ctx context.Context, linkID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	for _, c := range r.filter(models.LinkClickFilter{LinkID: &linkID}) {
		seen[c.ClickerIP] = true
	}
	return int64(len(seen)), nil
}

func (r *memClickRepo) DailyCounts(ctx context.Context, linkID uint, since time.Time) ([]*repository.DailyCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("clicks.DailyCounts"); err != nil {
		return nil, err
	}
	var times []time.Time
	for _, c := range r.filter(models.LinkClickFilter{LinkID: &linkID, ClickedAfter: &since}) {
		times = append(times, c.ClickedAt)
	}
	return dailyBuckets(times), nil
}

func (r *memClickRepo) CountByLinks(ctx context.Context, linkIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("clicks.CountByLinks"); err != nil {
		return nil, err
	}
	out := map[uint]int64{}
	for _, c := range r.s.clicks {
		if slices.Contains(linkIDs, c.LinkID) {
			out[c.LinkID]++
		}
	}
	r.s.runHook("clicks.CountByLinks")
	return out, nil
}

// ---- cache ----

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.data, key)
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

type recordingInvalidator struct {
	mu    sync.Mutex
	users []uint
}

func (r *recordingInvalidator) InvalidateSummary(ctx context.Context, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

// ---- helpers ----

func sortedKeys[V any](m map[uint]V) []uint {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset >= len(rows) {
		return []*T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func dailyBuckets(times []time.Time) []*repository.DailyCount {
	counts := map[string]int64{}
	for _, t := range times {
		counts[utils.UTCDate(t)]++
	}
	days := slices.Sorted(maps.Keys(counts))
	out := make([]*repository.DailyCount, 0, len(days))
	for _, d := range days {
		out = append(out, &repository.DailyCount{Day: d, Count: counts[d]})
	}
	return out
}

// fixedClock returns a Clock pinned to t
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// seedLink inserts a link directly into the store
func seedLink(s *memStore, userID uint, title string, clicks int64, createdAt time.Time) models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := models.Link{
		ID:         s.id(),
		UserID:     userID,
		Title:      title,
		URL:        "https://example.com/" + title,
		ClickCount: clicks,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	s.links[l.ID] = l
	return l
}

func seedVisit(s *memStore, userID uint, key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, models.ProfileVisit{ID: s.id(), UserID: userID, VisitorIP: key, VisitedAt: at})
}

func seedClick(s *memStore, linkID uint, key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, models.LinkClick{ID: s.id(), LinkID: linkID, ClickerIP: key, ClickedAt: at})
}
