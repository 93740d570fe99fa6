package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "forgeloop_events"
	subjectPrefix = "forgeloop"

	// Event types
	EventTypeBuild     = "build"
	EventTypeIteration = "iteration"
)

// SubjectForRun returns the wildcard subject for all events of one build run.
// Example: "forgeloop.20260102-150405-shop.>"
func SubjectForRun(run string) string {
	return fmt.Sprintf("%s.%s.>", subjectPrefix, run)
}

// SubjectForEvent returns the subject for one event type of a run.
// Example: "forgeloop.20260102-150405-shop.iteration"
func SubjectForEvent(run, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, run, eventType)
}

// RunFromSubject extracts the run token of a subject built by SubjectForEvent.
func RunFromSubject(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, subjectPrefix+".")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	return rest[:i], true
}

// SetupStream creates or updates the stream holding every build event, kept
// for 30 days.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
}
