// Package feed serves the community posts shown on the storefront.
package feed

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

var (
	ErrNotFound    = errors.New("feed: post not found")
	ErrInvalidPost = errors.New("feed: author and content are required")
)

// Post is a single feed entry.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Tags      []string  `json:"tags"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Query filters and pages the feed. Page is 1-based.
type Query struct {
	Tag    string
	Author string
	Page   int
	Limit  int
}

// Page is one slice of the feed. NextPage is zero on the last page.
type Page struct {
	Posts    []Post `json:"posts"`
	Page     int    `json:"page"`
	Total    int    `json:"total"`
	NextPage int    `json:"nextPage,omitempty"`
}

// Store holds posts in memory.
type Store struct {
	mu    sync.RWMutex
	posts []Post
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// NewSeededStore returns a store preloaded with demo posts spaced an hour apart before now.
func NewSeededStore(now time.Time) *Store {
	s := NewStore()
	for i, p := range demoPosts {
		p.CreatedAt = now.Add(-time.Duration(i+1) * time.Hour).UTC()
		s.posts = append(s.posts, p)
	}
	return s
}

// List returns posts newest first.
func (s *Store) List(_ context.Context, q Query) Page {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	page := max(q.Page, 1)

	s.mu.RLock()
	matched := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if q.Author != "" && !strings.EqualFold(p.Author, q.Author) {
			continue
		}
		if q.Tag != "" && !hasTag(p.Tags, q.Tag) {
			continue
		}
		matched = append(matched, clonePost(p))
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := Page{Posts: []Post{}, Page: page, Total: len(matched)}
	// Bound-check before multiplying; page may be near MaxInt.
	if page-1 >= (len(matched)+limit-1)/limit {
		return out
	}
	start := (page - 1) * limit
	end := min(start+limit, len(matched))
	out.Posts = matched[start:end]
	if end < len(matched) {
		out.NextPage = page + 1
	}
	return out
}

// Create stores a new post and returns it with its id and timestamp set.
func (s *Store) Create(_ context.Context, p Post) (Post, error) {
	p.Author = strings.TrimSpace(p.Author)
	p.Content = strings.TrimSpace(p.Content)
	if p.Author == "" || p.Content == "" {
		return Post{}, ErrInvalidPost
	}
	p.ID = uuid.NewString()
	p.Likes = 0
	p.Tags = normalizeTags(p.Tags)

	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = s.now().UTC()
	s.posts = append(s.posts, p)
	return clonePost(p), nil
}

// Like increments a post's like count.
func (s *Store) Like(_ context.Context, postID string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].Likes++
			return clonePost(s.posts[i]), nil
		}
	}
	return Post{}, ErrNotFound
}

func hasTag(tags []string, tag string) bool {
	return slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func clonePost(p Post) Post {
	p.Tags = slices.Clone(p.Tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

var demoPosts = []Post{
	{ID: "demo-1", Author: "Skin Clinic", Content: "Our winter hydration facial is back for the season.", Tags: []string{"facials", "hydration"}, Likes: 24},
	{ID: "demo-2", Author: "Mia", Content: "Week three of my 30 day SPF challenge and my skin has never looked better.", Tags: []string{"spf", "challenge"}, Likes: 12},
	{ID: "demo-3", Author: "Skin Clinic", Content: "LED therapy now available at all Perth locations.", Tags: []string{"led", "treatments"}, Likes: 31},
	{ID: "demo-4", Author: "Jordan", Content: "Night routine: gentle cleanse, retinol, barrier cream.", Tags: []string{"routine", "retinol"}, Likes: 8},
	{ID: "demo-5", Author: "Skin Clinic", Content: "Double points on every serum purchase this weekend.", Tags: []string{"rewards", "serums"}, Likes: 17},
}
