package mixin_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
)

type Post struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt time.Time
}

func TestSchemaBaseMixin(t *testing.T) {
	m := mixin.Schema[Post]{}
	assert.Nil(t, m.Fields())
	assert.Nil(t, m.Edges())
}

func TestTime(t *testing.T) {
	m := mixin.Time[Post]{
		Created: func(p *Post) *time.Time { return &p.CreatedAt },
		Updated: func(p *Post) *time.Time { return &p.UpdatedAt },
	}
	fields := m.Fields()
	require.Len(t, fields, 2)
	created, updated := fields[0].Descriptor(), fields[1].Descriptor()
	assert.Equal(t, "createdAt", created.Name)
	assert.Equal(t, field.TypeTime, created.Type)
	assert.Equal(t, "updatedAt", updated.Name)
	assert.Nil(t, m.Edges())

	var p Post
	require.NoError(t, created.Set(&p, int64(1000)))
	assert.Equal(t, time.UnixMilli(1000).UTC(), p.CreatedAt)
}

func TestSoftDelete(t *testing.T) {
	fields := mixin.SoftDelete[Post]{Deleted: func(p *Post) *time.Time { return &p.DeletedAt }}.Fields()
	require.Len(t, fields, 1)
	d := fields[0].Descriptor()
	assert.Equal(t, "deletedAt", d.Name)
	assert.True(t, d.Nullable)
	require.NoError(t, d.Err)
}

func TestMissingAccessor(t *testing.T) {
	fields := mixin.CreateTime[Post]{}.Fields()
	assert.Error(t, fields[0].Descriptor().Err)
}
