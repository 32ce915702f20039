package substitute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapping(t *testing.T, pairs ...string) *AliasMapping {
	t.Helper()
	m := NewAliasMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		_, err := m.Bind(pairs[i], pairs[i+1])
		require.NoError(t, err)
	}
	return m
}

func TestSubstitute(t *testing.T) {
	t.Parallel()

	m := mapping(t, "foo", "pkg.mod.foo", "baz", "pkg.mod.bar")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "Call", in: "foo()", want: "pkg.mod.foo()"},
		{name: "Alias", in: "x = baz(foo)", want: "x = pkg.mod.bar(pkg.mod.foo)"},
		{name: "WholeWordOnly", in: "foobar = foo_x + xfoo", want: "foobar = foo_x + xfoo"},
		{name: "AttributeAccessSkipped", in: "obj.foo()", want: "obj.foo()"},
		{name: "AttributeOfMatch", in: "foo.baz", want: "pkg.mod.foo.baz"},
		{name: "StringUntouched", in: `print("foo", 'baz')`, want: `print("foo", 'baz')`},
		{name: "CommentUntouched", in: "foo()  # foo here", want: "pkg.mod.foo()  # foo here"},
		{name: "FStringUntouched", in: `f"{foo}"`, want: `f"{foo}"`},
		{name: "NumberNotName", in: "x = 1foo", want: "x = 1foo"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Substitute(tc.in, m))
		})
	}
}

func TestSubstitute_TripleQuotedBlock(t *testing.T) {
	t.Parallel()

	m := mapping(t, "foo", "pkg.foo")
	in := "doc = \"\"\"\nfoo is documented\n\"\"\"\nfoo()"
	want := "doc = \"\"\"\nfoo is documented\n\"\"\"\npkg.foo()"
	assert.Equal(t, want, Substitute(in, m))
}

func TestSubstitute_NoDoubleSubstitution(t *testing.T) {
	t.Parallel()

	// pkg is mapped too, but the output of the first entry is not rescanned
	m := mapping(t, "foo", "pkg.foo", "pkg", "vendor.pkg")
	assert.Equal(t, "pkg.foo() + vendor.pkg", Substitute("foo() + pkg", m))
}

func TestSubstitute_IdentityEntriesIgnored(t *testing.T) {
	t.Parallel()

	m := mapping(t, "pkg", "pkg")
	assert.False(t, m.Substitutable())
	assert.Equal(t, "pkg.x", Substitute("pkg.x", m))
}

func TestReverse(t *testing.T) {
	t.Parallel()

	m := mapping(t, "mod", "pkg.mod", "foo", "pkg.mod.foo")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "MostQualifiedFirst", in: "pkg.mod.foo()", want: "foo()"},
		{name: "Prefix", in: "pkg.mod.other", want: "mod.other"},
		{name: "SegmentBoundary", in: "pkg.module.x", want: "pkg.module.x"},
		{name: "AttributeChain", in: "obj.pkg.mod.foo", want: "obj.pkg.mod.foo"},
		{name: "StringUntouched", in: `"pkg.mod.foo"`, want: `"pkg.mod.foo"`},
		{name: "CommentUntouched", in: "# pkg.mod.foo", want: "# pkg.mod.foo"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Reverse(tc.in, m))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	m := mapping(t, "foo", "pkg.mod.foo", "baz", "pkg.mod.bar", "mod", "pkg.mod")
	src := "x = foo(baz) + mod.thing\ns = 'foo' # baz\ny = [foo.attr, obj.foo]"
	assert.Equal(t, src, Reverse(Substitute(src, m), m))
}

func TestAliasMapping_Bind(t *testing.T) {
	t.Parallel()

	m := NewAliasMapping()
	added, err := m.Bind("foo", "pkg.foo")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.Bind("foo", "pkg.foo")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = m.Bind("foo", "other.foo")
	var conflict *ErrAliasConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "pkg.foo", conflict.Existing)

	_, err = m.Bind("bar", "pkg.bar")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Local: "foo", Qualified: "pkg.foo"}, {Local: "bar", Qualified: "pkg.bar"}}, m.Entries())
}

func TestAliasMapping_ReverseOrder(t *testing.T) {
	t.Parallel()

	m := mapping(t, "a", "p.a", "b", "p.q.b", "c", "p.c", "p", "p")
	got := m.reverseOrder()
	assert.Equal(t, []Entry{
		{Local: "b", Qualified: "p.q.b"},
		{Local: "c", Qualified: "p.c"},
		{Local: "a", Qualified: "p.a"},
	}, got)
}
