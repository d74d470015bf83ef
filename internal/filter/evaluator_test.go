package filter_test

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *evalctx.Context {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &evalctx.Context{
		Kind:    enum.EventKindReactionAdd,
		GuildID: 1,
		Message: evalctx.Message{
			ID:        1234567890123456789,
			Known:     true,
			Content:   "Look at this Cat picture",
			Length:    24,
			HasImage:  true,
			CreatedAt: now.Add(-90 * time.Second),
		},
		Author: &evalctx.Member{ID: 10, Roles: []snowflake.ID{111, 222}},
		Channel: evalctx.Channel{
			ID:         50,
			Type:       enum.ChannelTypeText,
			ParentID:   60,
			CategoryID: 60,
		},
		Voter:     &evalctx.Member{ID: 20, Bot: true},
		Emoji:     "⭐",
		Timestamp: now,
	}
}

func TestEvaluateComparators(t *testing.T) {
	t.Parallel()

	e := filter.NewEvaluator(nil, 0)
	ctx := testContext()

	tests := []struct {
		name string
		node *filter.Node
		want bool
	}{
		{"eq string id", filter.Leaf(filter.FieldChannelID, filter.OpEqual, "50"), true},
		{"eq numeric id", filter.Leaf(filter.FieldChannelID, filter.OpEqual, float64(50)), true},
		{"eq large id as string", filter.Leaf(filter.FieldMessageID, filter.OpEqual, "1234567890123456789"), true},
		{"ne", filter.Leaf(filter.FieldChannelID, filter.OpNotEqual, "51"), true},
		{"ne type mismatch", filter.Leaf(filter.FieldMessageHasImage, filter.OpNotEqual, "yes"), false},
		{"eq bool", filter.Leaf(filter.FieldMessageHasImage, filter.OpEqual, true), true},
		{"lt", filter.Leaf(filter.FieldMessageLength, filter.OpLessThan, 25), true},
		{"lte", filter.Leaf(filter.FieldMessageLength, filter.OpLessEqual, 24), true},
		{"gt", filter.Leaf(filter.FieldMessageLength, filter.OpGreaterThan, 24), false},
		{"gte", filter.Leaf(filter.FieldMessageLength, filter.OpGreaterEqual, 24), true},
		{"between", filter.Leaf(filter.FieldMessageAgeSeconds, filter.OpBetween, []any{60.0, 120.0}), true},
		{"between outside", filter.Leaf(filter.FieldMessageAgeSeconds, filter.OpBetween, []any{0, 30}), false},
		{"in", filter.Leaf(filter.FieldChannelType, filter.OpIn, []string{"text", "forum"}), true},
		{"not_in", filter.Leaf(filter.FieldChannelType, filter.OpNotIn, []string{"forum"}), true},
		{"has_any roles", filter.Leaf(filter.FieldAuthorRoles, filter.OpHasAny, []snowflake.ID{222, 333}), true},
		{"has_none roles", filter.Leaf(filter.FieldAuthorRoles, filter.OpHasNone, []any{"333"}), true},
		{"has_none hit", filter.Leaf(filter.FieldAuthorRoles, filter.OpHasNone, []any{"111"}), false},
		{"contains is case-insensitive", filter.Leaf(filter.FieldMessageContent, filter.OpContains, "cat"), true},
		{"contains list", filter.Leaf(filter.FieldAuthorRoles, filter.OpContains, "111"), true},
		{"regex", filter.Leaf(filter.FieldMessageContent, filter.OpRegex, `(?i)\bcat\b`), true},
		{"regex invalid", filter.Leaf(filter.FieldMessageContent, filter.OpRegex, `(unclosed`), false},
		{"regex too long", filter.Leaf(filter.FieldMessageContent, filter.OpRegex, strings.Repeat("a", 1001)), false},
		{"unknown comparator", filter.Leaf(filter.FieldMessageLength, "approx", 24), false},
		{"unknown field", filter.Leaf("message.sentiment", filter.OpEqual, "happy"), false},
		{"voter bot", filter.Leaf(filter.FieldVoterIsBot, filter.OpEqual, true), true},
		{"emoji", filter.Leaf(filter.FieldReactionEmoji, filter.OpEqual, "⭐"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Evaluate(tt.node, ctx))
		})
	}
}

func TestEvaluateLogic(t *testing.T) {
	t.Parallel()

	e := filter.NewEvaluator(nil, 0)
	ctx := testContext()

	yes := filter.Leaf(filter.FieldMessageHasImage, filter.OpEqual, true)
	no := filter.Leaf(filter.FieldMessageHasLink, filter.OpEqual, true)

	t.Run("empty identities", func(t *testing.T) {
		t.Parallel()
		assert.True(t, e.Evaluate(filter.And(), ctx))
		assert.False(t, e.Evaluate(filter.Or(), ctx))
		assert.True(t, e.Evaluate(nil, ctx))
	})

	t.Run("and or", func(t *testing.T) {
		t.Parallel()
		assert.True(t, e.Evaluate(filter.And(yes, yes), ctx))
		assert.False(t, e.Evaluate(filter.And(yes, no), ctx))
		assert.True(t, e.Evaluate(filter.Or(no, yes), ctx))
		assert.False(t, e.Evaluate(filter.Or(no, no), ctx))
	})

	t.Run("not negates every tree", func(t *testing.T) {
		t.Parallel()

		trees := []*filter.Node{
			yes,
			no,
			filter.And(),
			filter.Or(),
			filter.And(yes, filter.Or(no, yes)),
			filter.Leaf(filter.FieldVoterRoles, filter.OpHasAny, []string{"1"}),
			filter.Leaf("does.not.exist", filter.OpEqual, 1),
		}
		for _, tree := range trees {
			assert.Equal(t, !e.Evaluate(tree, ctx), e.Evaluate(filter.Not(tree), ctx))
		}
	})

	t.Run("missing field is false", func(t *testing.T) {
		t.Parallel()

		msgCtx := testContext()
		msgCtx.Voter = nil
		leaf := filter.Leaf(filter.FieldVoterID, filter.OpEqual, "20")
		assert.False(t, e.Evaluate(leaf, msgCtx))
		assert.True(t, e.Evaluate(filter.Not(leaf), msgCtx))
	})

	t.Run("unknown message body", func(t *testing.T) {
		t.Parallel()

		bare := testContext()
		bare.Message = evalctx.Message{ID: 5}
		assert.False(t, e.Evaluate(filter.Leaf(filter.FieldMessageLength, filter.OpGreaterEqual, 0), bare))
	})
}

func TestEvaluateShortCircuit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	registry := filter.NewRegistry()
	require.NoError(t, registry.Register(filter.Field{
		Path: "test.constant",
		Kind: filter.ValueBool,
		Get: func(*evalctx.Context) (any, bool) {
			return false, true
		},
	}))
	require.NoError(t, registry.Register(filter.Field{
		Path: "test.counted",
		Kind: filter.ValueBool,
		Get: func(*evalctx.Context) (any, bool) {
			calls.Add(1)
			return true, true
		},
	}))
	require.Error(t, registry.Register(filter.Field{Path: "test.counted", Get: func(*evalctx.Context) (any, bool) { return nil, false }}))

	e := filter.NewEvaluator(registry, 0)
	falseLeaf := filter.Leaf("test.constant", filter.OpEqual, true)
	trueLeaf := filter.Leaf("test.constant", filter.OpEqual, false)
	counted := filter.Leaf("test.counted", filter.OpEqual, true)

	assert.False(t, e.Evaluate(filter.And(falseLeaf, counted), testContext()))
	assert.True(t, e.Evaluate(filter.Or(trueLeaf, counted), testContext()))
	assert.Equal(t, int32(0), calls.Load())

	assert.True(t, e.Evaluate(filter.And(trueLeaf, counted), testContext()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEvaluateDecodedTree(t *testing.T) {
	t.Parallel()

	raw := `{
		"kind": "and",
		"children": [
			{"kind": "leaf", "field": "author.roles", "op": "has_any", "value": ["222"]},
			{"kind": "not", "children": [
				{"kind": "leaf", "field": "channel.nsfw", "op": "eq", "value": true}
			]},
			{"kind": "leaf", "field": "message.length", "op": "between", "value": [10, 100]}
		]
	}`

	var node filter.Node
	require.NoError(t, sonic.UnmarshalString(raw, &node))
	require.NoError(t, filter.Validate(&node, filter.DefaultLimits))

	e := filter.NewEvaluator(nil, 0)
	assert.True(t, e.Evaluate(&node, testContext()))
	assert.Equal(t, []string{"author.roles", "channel.nsfw", "message.length"}, filter.Fields(&node))
	assert.False(t, filter.Default().IsStable(&node))
	assert.True(t, filter.Default().IsStable(node.Children[0]))
}
