package edge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sqlschema"
	"github.com/syssam/strata/schema/edge"
)

// Test entity types for edge testing.
type (
	Country struct {
		Name     string
		Citizens strata.List[*Person]
	}
	Person struct {
		Name     string
		Country  *Country
		Passport *Passport
		Friends  strata.List[*Person]
		Pets     strata.List[Animal]
	}
	Passport struct {
		Number string
		Holder *Person
	}
	Animal interface{ Sound() string }
	Dog    struct{}
)

func (Dog) Sound() string { return "woof" }

func TestEdgeBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name: "many_to_one",
			build: func() *edge.Descriptor {
				return edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }).
					Columns("country").
					Required().
					Annotations(sqlschema.OnDelete(sqlschema.Cascade)).
					Comment("home country").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.Equal(t, "country", desc.Name)
				assert.Equal(t, "Country", desc.Target)
				assert.Equal(t, edge.M2O, desc.Rel)
				assert.True(t, desc.Owning())
				assert.True(t, desc.Required)
				assert.False(t, desc.Unique)
				assert.Equal(t, []string{"country"}, desc.Columns)
				assert.Equal(t, sqlschema.Cascade, desc.Annotation.OnDelete)
				assert.Equal(t, "home country", desc.Comment)
				assert.Equal(t, "*edge_test.Person", desc.Owner)
			},
		},
		{
			name: "one_to_one_owner",
			build: func() *edge.Descriptor {
				return edge.OneToOne("passport", "Passport", func(p *Person) **Passport { return &p.Passport }).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.True(t, desc.Owning())
				assert.True(t, desc.Unique)
			},
		},
		{
			name: "one_to_one_inverse",
			build: func() *edge.Descriptor {
				return edge.OneToOne("holder", "Person", func(p *Passport) **Person { return &p.Holder }).
					MappedBy("passport").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.False(t, desc.Owning())
				assert.Equal(t, "passport", desc.MappedBy)
			},
		},
		{
			name: "inverse_with_columns",
			build: func() *edge.Descriptor {
				return edge.OneToOne("holder", "Person", func(p *Passport) **Person { return &p.Holder }).
					MappedBy("passport").
					Columns("x").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "holder": the non-owning side cannot declare columns`)
			},
		},
		{
			name: "many_to_one_mapped_by",
			build: func() *edge.Descriptor {
				return edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }).
					MappedBy("citizens").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "country": MappedBy on a ManyToOne edge`)
			},
		},
		{
			name: "identifying",
			build: func() *edge.Descriptor {
				return edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }).
					PrimaryKey().
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.True(t, desc.PrimaryKey)
				assert.True(t, desc.Required)
			},
		},
		{
			name: "one_to_many",
			build: func() *edge.Descriptor {
				return edge.OneToMany("citizens", "Person", func(c *Country) *strata.List[*Person] { return &c.Citizens }).
					MappedBy("country").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.Equal(t, edge.O2M, desc.Rel)
				assert.False(t, desc.Owning())
			},
		},
		{
			name: "one_to_many_without_mapped_by",
			build: func() *edge.Descriptor {
				return edge.OneToMany("citizens", "Person", func(c *Country) *strata.List[*Person] { return &c.Citizens }).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "citizens": OneToMany requires MappedBy`)
			},
		},
		{
			name: "many_to_many",
			build: func() *edge.Descriptor {
				return edge.ManyToMany("friends", "Person", func(p *Person) *strata.List[*Person] { return &p.Friends }).
					JoinTable("friendships").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NoError(t, desc.Err)
				assert.True(t, desc.Owning())
				assert.Equal(t, "friendships", desc.JoinTable)
			},
		},
		{
			name: "many_to_many_inverse_with_table",
			build: func() *edge.Descriptor {
				return edge.ManyToMany("friendOf", "Person", func(p *Person) *strata.List[*Person] { return &p.Friends }).
					MappedBy("friends").
					JoinTable("x").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "friendOf": the non-owning side cannot declare a join table`)
			},
		},
		{
			name: "missing_target",
			build: func() *edge.Descriptor {
				return edge.ManyToOne("country", "", func(p *Person) **Country { return &p.Country }).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "country": missing target entity`)
			},
		},
		{
			name: "missing_accessor",
			build: func() *edge.Descriptor {
				return edge.ManyToOne[Person, *Country]("country", "Country", nil).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, `edge "country": missing accessor`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestSet(t *testing.T) {
	t.Parallel()

	desc := edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }).Descriptor()
	p := &Person{}
	italy := &Country{Name: "Italy"}
	require.NoError(t, desc.Set(p, italy))
	assert.Same(t, italy, p.Country)
	require.NoError(t, desc.Set(p, nil))
	assert.Nil(t, p.Country)

	err := desc.Set(p, &Passport{})
	assert.EqualError(t, err, `edge "country": *edge_test.Passport is not assignable to *edge_test.Country`)
	err = desc.Set(&Passport{}, italy)
	assert.EqualError(t, err, `edge "country": object is *edge_test.Passport, want *edge_test.Person`)
	assert.Error(t, desc.Bind(p, nil))
}

func TestBind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	desc := edge.ManyToMany("friends", "Person", func(p *Person) *strata.List[*Person] { return &p.Friends }).Descriptor()
	p := &Person{}
	calls := 0
	require.NoError(t, desc.Bind(p, func(context.Context) ([]any, error) {
		calls++
		return []any{&Person{Name: "a"}, &Person{Name: "b"}}, nil
	}))
	assert.False(t, p.Friends.Loaded())
	assert.Equal(t, 0, calls)
	n, err := p.Friends.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = p.Friends.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Error(t, desc.Set(p, nil))

	t.Run("Interface", func(t *testing.T) {
		desc := edge.ManyToMany("pets", "Animal", func(p *Person) *strata.List[Animal] { return &p.Pets }).Descriptor()
		p := &Person{}
		require.NoError(t, desc.Bind(p, func(context.Context) ([]any, error) {
			return []any{Dog{}}, nil
		}))
		pets, err := p.Pets.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, "woof", pets[0].Sound())

		require.NoError(t, desc.Bind(p, func(context.Context) ([]any, error) {
			return []any{&Country{}}, nil
		}))
		_, err = p.Pets.All(ctx)
		assert.EqualError(t, err, `edge "pets": *edge_test.Country is not assignable to edge_test.Animal`)
	})

	t.Run("LoaderError", func(t *testing.T) {
		boom := errors.New("boom")
		p := &Person{}
		require.NoError(t, desc.Bind(p, func(context.Context) ([]any, error) { return nil, boom }))
		_, err := p.Friends.Len(ctx)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRel(t *testing.T) {
	for want, desc := range map[edge.Rel]*edge.Descriptor{
		edge.M2O: edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }).Descriptor(),
		edge.O2O: edge.OneToOne("passport", "Passport", func(p *Person) **Passport { return &p.Passport }).Descriptor(),
		edge.O2M: edge.OneToMany("citizens", "Person", func(c *Country) *strata.List[*Person] { return &c.Citizens }).MappedBy("country").Descriptor(),
		edge.M2M: edge.ManyToMany("friends", "Person", func(p *Person) *strata.List[*Person] { return &p.Friends }).Descriptor(),
	} {
		assert.Equal(t, want, desc.Rel, desc.Name)
	}
	assert.Equal(t, "ManyToMany", edge.M2M.String())
	assert.Equal(t, "Unknown", edge.Rel(9).String())
	assert.True(t, edge.M2O.ToOne())
	assert.True(t, edge.O2O.ToOne())
	assert.True(t, edge.O2M.ToMany())
	assert.False(t, edge.O2M.ToOne())
	assert.Equal(t, edge.M2O, edge.O2M.Inverse())
	assert.Equal(t, edge.O2M, edge.M2O.Inverse())
	assert.Equal(t, edge.M2M, edge.M2M.Inverse())
}
