package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/pattern"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		params   []string
		literals int
		dynamics int
	}{
		{"root", "/", []string{}, 0, 0},
		{"static", "/users/profile", []string{}, 2, 0},
		{"single param", "/users/:id", []string{"id"}, 1, 1},
		{"two params", "/users/:id/posts/:postId", []string{"id", "postId"}, 2, 2},
		{"trailing slash ignored in count", "/api/v1/", []string{}, 2, 0},
		{"malformed token is literal", "/price/:9dollars", []string{}, 2, 0},
		{"bare colon is literal", "/a/:/b", []string{}, 3, 0},
		{"underscore identifier", "/x/:_under_score1", []string{"_under_score1"}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := pattern.Compile(tt.template)
			assert.Equal(t, tt.template, p.String())
			assert.Equal(t, tt.params, p.Params())
			assert.Equal(t, tt.literals, p.Literals())
			assert.Equal(t, tt.dynamics, p.Dynamics())
		})
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	t.Run("static match is anchored", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/users")
		_, ok := p.Match("/users")
		assert.True(t, ok)
		_, ok = p.Match("/users/1")
		assert.False(t, ok)
		_, ok = p.Match("/api/users")
		assert.False(t, ok)
	})

	t.Run("middle parameter does not cross slash", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/users/:id/posts/:postId")
		params, ok := p.Extract("/users/42/posts/7")
		require.True(t, ok)
		assert.Equal(t, map[string]string{"id": "42", "postId": "7"}, params)

		_, ok = p.Extract("/users/4/2/posts/7")
		assert.False(t, ok)
	})

	t.Run("last parameter is greedy across slashes", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/files/:path")
		params, ok := p.Extract("/files/a/b/c.txt")
		require.True(t, ok)
		assert.Equal(t, "a/b/c.txt", params["path"])
	})

	t.Run("literal regex metacharacters are escaped", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/v1.0/items(all)")
		_, ok := p.Match("/v1.0/items(all)")
		assert.True(t, ok)
		_, ok = p.Match("/v1x0/items(all)")
		assert.False(t, ok)
	})

	t.Run("malformed token matches literally", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/price/:9dollars")
		_, ok := p.Match("/price/:9dollars")
		assert.True(t, ok)
		_, ok = p.Match("/price/10")
		assert.False(t, ok)
	})

	t.Run("values align with params", func(t *testing.T) {
		t.Parallel()

		p := pattern.Compile("/a/:x/b/:y")
		values, ok := p.Match("/a/1/b/2/3")
		require.True(t, ok)
		assert.Equal(t, []string{"1", "2/3"}, values)
	})
}

func TestMoreSpecific(t *testing.T) {
	t.Parallel()

	literal := pattern.Compile("/users/profile")
	dynamic := pattern.Compile("/users/:id")
	twoDyn := pattern.Compile("/:a/:b")
	oneDyn := pattern.Compile("/:a")

	assert.True(t, pattern.MoreSpecific(literal, dynamic))
	assert.False(t, pattern.MoreSpecific(dynamic, literal))
	assert.True(t, pattern.MoreSpecific(oneDyn, twoDyn))
	assert.False(t, pattern.MoreSpecific(twoDyn, oneDyn))
	assert.False(t, pattern.MoreSpecific(dynamic, dynamic))
}
