// Package mixin provides reusable sets of fields and edges.
//
// A mixin is shared by entities that do not share an inheritance parent.
// Its fields are declared on every entity that uses it, as if written there.
//
// Creating Custom Mixins:
//
// To create a custom mixin, embed Schema and override the methods you need:
//
//	type Audit[T any] struct {
//	    mixin.Schema[T]
//	    By func(*T) *string
//	}
//
//	func (m Audit[T]) Fields() []field.Field[T] {
//	    return []field.Field[T]{
//	        field.String("createdBy", m.By).Nullable(),
//	    }
//	}
//
// Using Mixins:
//
//	schema.Entity[User]("User").
//	    Mixin(mixin.Time[User]{
//	        Created: func(u *User) *time.Time { return &u.CreatedAt },
//	        Updated: func(u *User) *time.Time { return &u.UpdatedAt },
//	    })
package mixin

import (
	"time"

	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Mixin is a reusable set of declarations for entity type T.
type Mixin[T any] interface {
	Fields() []field.Field[T]
	Edges() []edge.Edge[T]
}

// Schema is the default implementation of Mixin.
// It should be embedded in all custom mixin definitions.
type Schema[T any] struct{}

// Fields returns the fields of the mixin.
func (Schema[T]) Fields() []field.Field[T] { return nil }

// Edges returns the edges of the mixin.
func (Schema[T]) Edges() []edge.Edge[T] { return nil }

// Time adds createdAt and updatedAt timestamp fields.
type Time[T any] struct {
	Schema[T]
	Created func(*T) *time.Time
	Updated func(*T) *time.Time
}

// Fields returns the time tracking fields.
func (m Time[T]) Fields() []field.Field[T] {
	return append(CreateTime[T]{Created: m.Created}.Fields(), UpdateTime[T]{Updated: m.Updated}.Fields()...)
}

// CreateTime adds only the createdAt timestamp field.
type CreateTime[T any] struct {
	Schema[T]
	Created func(*T) *time.Time
}

// Fields returns the createdAt field.
func (m CreateTime[T]) Fields() []field.Field[T] {
	return []field.Field[T]{
		field.Time("createdAt", m.Created).
			Comment("Timestamp when the entity was created"),
	}
}

// UpdateTime adds only the updatedAt timestamp field.
type UpdateTime[T any] struct {
	Schema[T]
	Updated func(*T) *time.Time
}

// Fields returns the updatedAt field.
func (m UpdateTime[T]) Fields() []field.Field[T] {
	return []field.Field[T]{
		field.Time("updatedAt", m.Updated).
			Comment("Timestamp when the entity was last updated"),
	}
}

// SoftDelete adds a nullable deletedAt field.
type SoftDelete[T any] struct {
	Schema[T]
	Deleted func(*T) *time.Time
}

// Fields returns the soft delete field.
func (m SoftDelete[T]) Fields() []field.Field[T] {
	return []field.Field[T]{
		field.Time("deletedAt", m.Deleted).
			Nullable().
			Comment("Timestamp when the entity was soft deleted (zero means not deleted)"),
	}
}

var (
	_ Mixin[struct{}] = Schema[struct{}]{}
	_ Mixin[struct{}] = Time[struct{}]{}
	_ Mixin[struct{}] = SoftDelete[struct{}]{}
)
