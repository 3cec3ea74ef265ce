package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type key string

const (
	orgIDKey       key = "org_id"
	actorKey       key = "actor"
	requestMetaKey key = "request_meta"
)

// Actor identifies who issued a request and under which role.
type Actor struct {
	ID   string
	Role string
}

func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(orgIDKey).(snowflake.ID)
	return id, ok
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// RequestMeta describes the HTTP request a change originated from.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey).(RequestMeta)
	return meta, ok
}
