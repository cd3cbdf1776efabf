package hub

import "context"

type subjectKey struct{}

// ContextWithSubject attaches the authenticated subject of a request, so
// sessions opened from it are labelled with it.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject set by ContextWithSubject.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}
