package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		o := Some("abc")
		assert.True(t, o.IsPresent())

		v, ok := o.Get()
		assert.True(t, ok)
		assert.Equal(t, "abc", v)

		v, err := o.Value()
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
		assert.Equal(t, "abc", o.OrElse("x"))
	})

	t.Run("absent", func(t *testing.T) {
		o := None[string]()
		assert.False(t, o.IsPresent())

		_, err := o.Value()
		assert.ErrorIs(t, err, ErrNotPresent)
		assert.Equal(t, "x", o.OrElse("x"))
	})

	t.Run("present nil differs from absent", func(t *testing.T) {
		assert.True(t, Some[any](nil).IsPresent())
		assert.NotEqual(t, Some[any](nil), None[any]())
	})
}

func TestConnect(t *testing.T) {
	t.Run("preferred version removed from support", func(t *testing.T) {
		m := NewConnect("1", Some([]string{"1", "2"}), None[string]())
		support, err := m.Support().Value()
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, support)
	})

	t.Run("support with only the preferred version is absent", func(t *testing.T) {
		m := NewConnect("1", Some([]string{"1"}), None[string]())
		assert.False(t, m.Support().IsPresent())
	})

	t.Run("empty support is absent", func(t *testing.T) {
		m := NewConnect("1", Some([]string{}), None[string]())
		assert.False(t, m.Support().IsPresent())
	})

	t.Run("session", func(t *testing.T) {
		m := NewConnect("1", None[[]string](), Some("resume-me"))
		session, err := m.Session().Value()
		require.NoError(t, err)
		assert.Equal(t, "resume-me", session)

		_, err = NewConnect("1", None[[]string](), None[string]()).Session().Value()
		assert.ErrorIs(t, err, ErrNotPresent)
	})

	t.Run("caller slice is not retained", func(t *testing.T) {
		support := []string{"2", "3"}
		m := NewConnect("1", Some(support), None[string]())
		support[0] = "changed"

		got, _ := m.Support().Get()
		assert.Equal(t, []string{"2", "3"}, got)
	})
}

func TestResult(t *testing.T) {
	t.Run("both error and result is invalid", func(t *testing.T) {
		_, err := NewResult("1", Some[any]("boom"), Some[any](42))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("neither error nor result is invalid", func(t *testing.T) {
		_, err := NewResult("1", None[any](), None[any]())
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("result only", func(t *testing.T) {
		m, err := NewResult("1", None[any](), Some[any](42))
		require.NoError(t, err)

		v, err := m.Result().Value()
		require.NoError(t, err)
		assert.Equal(t, 42, v)

		_, err = m.Error().Value()
		assert.ErrorIs(t, err, ErrNotPresent)
	})

	t.Run("error only", func(t *testing.T) {
		m, err := NewResult("1", Some[any]("boom"), None[any]())
		require.NoError(t, err)
		assert.True(t, m.Error().IsPresent())

		_, err = m.Result().Value()
		assert.ErrorIs(t, err, ErrNotPresent)
	})

	t.Run("helpers", func(t *testing.T) {
		ok, _ := NewResult("1", None[any](), Some[any]("v"))
		assert.True(t, Equal(ok, NewResultValue("1", "v")))

		failed, _ := NewResult("1", Some[any]("e"), None[any]())
		assert.True(t, Equal(failed, NewResultError("1", "e")))
	})
}

func TestCopyOnAccess(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		fields := map[string]any{"tags": []any{"a"}, "nested": map[string]any{"n": 1}}
		m := NewAdded("tasks", "1", Some(fields))

		fields["tags"] = "replaced"
		got, _ := m.Fields().Get()
		assert.Equal(t, []any{"a"}, got["tags"])

		got["nested"].(map[string]any)["n"] = 2
		again, _ := m.Fields().Get()
		assert.Equal(t, 1, again["nested"].(map[string]any)["n"])
	})

	t.Run("params", func(t *testing.T) {
		m := NewMethod("1", "m", []any{[]any{1}})
		params := m.Params()
		params[0].([]any)[0] = 2
		assert.Equal(t, []any{[]any{1}}, m.Params())
	})

	t.Run("id lists", func(t *testing.T) {
		ready := NewReady([]string{"1"})
		ready.Subs()[0] = "x"
		assert.Equal(t, []string{"1"}, ready.Subs())

		updated := NewUpdated([]string{"1"})
		updated.Methods()[0] = "x"
		assert.Equal(t, []string{"1"}, updated.Methods())
	})

	t.Run("offending pod", func(t *testing.T) {
		m := NewError("bad", map[string]any{"msg": "x"})
		m.OffendingPod()["msg"] = "y"
		assert.Equal(t, map[string]any{"msg": "x"}, m.OffendingPod())
	})

	t.Run("nil offending pod is an empty object", func(t *testing.T) {
		m := NewError("bad", nil)
		assert.NotNil(t, m.OffendingPod())
		assert.Empty(t, m.OffendingPod())
	})
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(NewUnsub("1"), NewUnsub("1")))
	assert.False(t, Equal(NewUnsub("1"), NewUnsub("2")))
	assert.False(t, Equal(NewRemoved("c", "1"), NewAdded("c", "1", None[map[string]any]())))
	assert.False(t, Equal(
		NewAdded("c", "1", None[map[string]any]()),
		NewAdded("c", "1", Some(map[string]any{})),
	))
	assert.True(t, Equal(
		NewSub("1", "tasks", Some([]any{"a", map[string]any{"b": 1.0}})),
		NewSub("1", "tasks", Some([]any{"a", map[string]any{"b": 1.0}})),
	))
}

func TestKinds(t *testing.T) {
	client := []ClientMessage{
		NewConnect("1", None[[]string](), None[string]()),
		NewMethod("1", "m", nil),
		NewSub("1", "s", None[[]any]()),
		NewUnsub("1"),
		NewPing(None[string]()),
		NewPong(None[string]()),
	}
	server := []ServerMessage{
		NewConnected("s"),
		NewFailed("1"),
		NewReady(nil),
		NewUpdated(nil),
		NewPing(None[string]()),
	}

	assert.Equal(t, KindConnect, client[0].Kind())
	assert.Equal(t, KindPong, client[5].Kind())
	assert.Equal(t, KindConnected, server[0].Kind())
	assert.Equal(t, KindPing, server[4].Kind())
}

func TestDiffChanged(t *testing.T) {
	before := map[string]any{"title": "a", "done": false, "owner": "me"}
	after := map[string]any{"title": "b", "done": false, "priority": 1.0}

	m, err := DiffChanged("tasks", "t1", before, after)
	require.NoError(t, err)

	assert.Equal(t, "tasks", m.Collection())
	assert.Equal(t, "t1", m.ID())

	fields, ok := m.Fields().Get()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"title": "b", "priority": 1.0}, fields)

	cleared, ok := m.Cleared().Get()
	require.True(t, ok)
	assert.Equal(t, []string{"owner"}, cleared)

	t.Run("identical documents", func(t *testing.T) {
		m, err := DiffChanged("tasks", "t1", before, before)
		require.NoError(t, err)
		assert.False(t, m.Fields().IsPresent())
		assert.False(t, m.Cleared().IsPresent())
	})

	t.Run("nested change carries the whole new value", func(t *testing.T) {
		before := map[string]any{"meta": map[string]any{"tags": "x", "rank": 1.0}}
		after := map[string]any{"meta": map[string]any{"tags": "y", "rank": 1.0}}

		m, err := DiffChanged("tasks", "t1", before, after)
		require.NoError(t, err)

		fields, ok := m.Fields().Get()
		require.True(t, ok)
		assert.Equal(t, map[string]any{"meta": map[string]any{"tags": "y", "rank": 1.0}}, fields)
		assert.False(t, m.Cleared().IsPresent())
	})
}
