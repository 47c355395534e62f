package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedTime = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func ids(posts []Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestStore_ListNewestFirstWithPaging(t *testing.T) {
	s := NewSeededStore(seedTime)
	ctx := context.Background()

	first := s.List(ctx, Query{Limit: 2})
	assert.Equal(t, []string{"demo-1", "demo-2"}, ids(first.Posts))
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.NextPage)
	assert.Equal(t, 5, first.Total)

	last := s.List(ctx, Query{Limit: 2, Page: 3})
	assert.Equal(t, []string{"demo-5"}, ids(last.Posts))
	assert.Zero(t, last.NextPage)

	past := s.List(ctx, Query{Limit: 2, Page: 9})
	assert.Empty(t, past.Posts)
	assert.NotNil(t, past.Posts)
}

func TestStore_ListLimits(t *testing.T) {
	s := NewStore()
	base := seedTime
	s.now = func() time.Time { base = base.Add(time.Minute); return base }
	for i := 0; i < 60; i++ {
		_, err := s.Create(context.Background(), Post{Author: "a", Content: "c"})
		require.NoError(t, err)
	}

	assert.Len(t, s.List(context.Background(), Query{}).Posts, DefaultPageSize)
	assert.Len(t, s.List(context.Background(), Query{Limit: 500}).Posts, MaxPageSize)
}

func TestStore_ListFilters(t *testing.T) {
	s := NewSeededStore(seedTime)
	ctx := context.Background()

	assert.Equal(t, []string{"demo-1", "demo-3", "demo-5"}, ids(s.List(ctx, Query{Author: "skin clinic"}).Posts))
	assert.Equal(t, []string{"demo-3"}, ids(s.List(ctx, Query{Tag: "LED"}).Posts))
	assert.Equal(t, []string{"demo-5"}, ids(s.List(ctx, Query{Tag: "rewards", Author: "Skin Clinic"}).Posts))
	assert.Empty(t, s.List(ctx, Query{Tag: "rewards", Author: "Mia"}).Posts)
}

func TestStore_CreateAndLike(t *testing.T) {
	s := NewSeededStore(seedTime)
	s.now = func() time.Time { return seedTime }
	ctx := context.Background()

	post, err := s.Create(ctx, Post{Author: " Ava ", Content: "Loving the new toner", Tags: []string{"#Toner", "toner", " "}, Likes: 99})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "Ava", post.Author)
	assert.Equal(t, []string{"toner"}, post.Tags)
	assert.Zero(t, post.Likes)
	assert.Equal(t, post.ID, s.List(ctx, Query{}).Posts[0].ID)

	liked, err := s.Like(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)

	_, err = s.Like(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Create(ctx, Post{Author: "x"})
	assert.ErrorIs(t, err, ErrInvalidPost)
}

func TestStore_ConcurrentLikes(t *testing.T) {
	s := NewSeededStore(seedTime)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Like(context.Background(), "demo-4")
		}()
	}
	wg.Wait()

	for _, p := range s.List(context.Background(), Query{Limit: MaxPageSize}).Posts {
		if p.ID == "demo-4" {
			assert.Equal(t, 58, p.Likes)
		}
	}
}

func TestStore_ListReturnsCopies(t *testing.T) {
	s := NewSeededStore(seedTime)
	page := s.List(context.Background(), Query{Limit: 1})
	page.Posts[0].Tags[0] = "mutated"

	again := s.List(context.Background(), Query{Limit: 1})
	assert.Equal(t, "facials", again.Posts[0].Tags[0])
}

func TestStore_ListHugePageIsEmpty(t *testing.T) {
	s := NewSeededStore(seedTime)

	for _, page := range []int{1<<62 + 1, int(^uint(0) >> 1)} {
		var got Page
		require.NotPanics(t, func() {
			got = s.List(context.Background(), Query{Page: page, Limit: 10})
		})
		assert.Empty(t, got.Posts)
		assert.Equal(t, 5, got.Total)
		assert.Zero(t, got.NextPage)
	}
}
